package evaluation

import (
	"context"
	"slices"
	"time"

	"github.com/medrecords/backend/internal/domain/entities"
)

// Classifier assigns a clinical type to document text.
type Classifier interface {
	Classify(ctx context.Context, text string) entities.DocumentType
}

// Runner runs evaluation across a set of golden documents.
type Runner struct {
	classifier Classifier
}

func NewRunner(classifier Classifier) *Runner {
	return &Runner{classifier: classifier}
}

func (r *Runner) Run(ctx context.Context, docs []GoldenDocument) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalDocuments: len(docs),
		ByType:         make(map[entities.DocumentType]*TypeSummary),
		ByDifficulty:   make(map[string]*DifficultySummary),
	}

	results := make([]EvalResult, 0, len(docs))
	for _, gd := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		predicted := r.classifier.Classify(ctx, gd.Text)
		result := EvalResult{
			DocumentID:    gd.ID,
			ExpectedType:  gd.ExpectedType,
			PredictedType: predicted,
			Difficulty:    gd.Difficulty,
			Correct:       predicted == gd.ExpectedType,
			Latency:       time.Since(start),
		}

		results = append(results, result)
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary, results)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgLatency += res.Latency
	if res.Correct {
		s.Correct++
	} else {
		s.Misclassified = append(s.Misclassified, res)
	}

	ts, ok := s.ByType[res.ExpectedType]
	if !ok {
		ts = &TypeSummary{}
		s.ByType[res.ExpectedType] = ts
	}
	ts.Count++

	ds, ok := s.ByDifficulty[res.Difficulty]
	if !ok {
		ds = &DifficultySummary{}
		s.ByDifficulty[res.Difficulty] = ds
	}
	ds.Count++

	if res.Correct {
		ts.Correct++
		ds.Correct++
	}
}

func (r *Runner) finalizeSummary(s *EvalSummary, results []EvalResult) {
	if s.TotalDocuments > 0 {
		s.AvgLatency /= time.Duration(s.TotalDocuments)
	}
	s.Accuracy = Accuracy(s.Correct, s.TotalDocuments)
	s.MacroF1 = MacroF1(results)

	for t, ts := range s.ByType {
		ts.Accuracy = Accuracy(ts.Correct, ts.Count)
		ts.Precision, ts.Recall = PrecisionRecall(results, t)
		ts.F1 = F1(ts.Precision, ts.Recall)
	}
	for _, ds := range s.ByDifficulty {
		ds.Accuracy = Accuracy(ds.Correct, ds.Count)
	}
}

func sortedTypes(m map[entities.DocumentType]*TypeSummary) []entities.DocumentType {
	types := make([]entities.DocumentType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
