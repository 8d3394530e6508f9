package evaluation

import (
	"time"

	"github.com/medrecords/backend/internal/domain/entities"
)

// GoldenDocument is a labeled document text with its expected clinical type.
type GoldenDocument struct {
	ID           string                `json:"id"`
	Text         string                `json:"text"`
	ExpectedType entities.DocumentType `json:"expected_type"`
	Difficulty   string                `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the classification outcome for a single document.
type EvalResult struct {
	DocumentID    string                `json:"document_id"`
	ExpectedType  entities.DocumentType `json:"expected_type"`
	PredictedType entities.DocumentType `json:"predicted_type"`
	Difficulty    string                `json:"difficulty"`
	Correct       bool                  `json:"correct"`
	Latency       time.Duration         `json:"latency_ns"`
}

// EvalSummary holds aggregate metrics across the golden set.
type EvalSummary struct {
	TotalDocuments int                                    `json:"total_documents"`
	Correct        int                                    `json:"correct"`
	Accuracy       float64                                `json:"accuracy"`
	MacroF1        float64                                `json:"macro_f1"`
	AvgLatency     time.Duration                          `json:"avg_latency_ns"`
	ByType         map[entities.DocumentType]*TypeSummary `json:"by_type"`
	ByDifficulty   map[string]*DifficultySummary          `json:"by_difficulty"`
	Misclassified  []EvalResult                           `json:"misclassified,omitempty"`
}

// TypeSummary holds metrics for one expected document type.
type TypeSummary struct {
	Count     int     `json:"count"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// DifficultySummary holds accuracy per difficulty bucket.
type DifficultySummary struct {
	Count    int     `json:"count"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}
