package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/medrecords/backend/internal/domain/entities"
)

func TestLoadGoldenDocuments_ValidFile(t *testing.T) {
	content := `[
		{"id": "d1", "text": "Hemoglobin 13.2 g/dL (ref 12-16)", "expected_type": "lab_report", "difficulty": "easy"},
		{"id": "d2", "text": "Rx: Amoxicillin 500mg TID x 7 days", "expected_type": "prescription", "difficulty": "medium"}
	]`
	path := writeTempFile(t, content)

	docs, err := LoadGoldenDocuments(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "d1" {
		t.Errorf("expected id d1, got %s", docs[0].ID)
	}
	if docs[0].ExpectedType != entities.DocumentTypeLabReport {
		t.Errorf("expected type lab_report, got %s", docs[0].ExpectedType)
	}
	if docs[1].Difficulty != "medium" {
		t.Errorf("expected difficulty medium, got %s", docs[1].Difficulty)
	}
}

func TestLoadGoldenDocuments_InvalidFile(t *testing.T) {
	_, err := LoadGoldenDocuments("/nonexistent/path.json")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadGoldenDocuments_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, `not valid json`)
	_, err := LoadGoldenDocuments(path)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestValidateGoldenDocuments(t *testing.T) {
	valid := GoldenDocument{ID: "d1", Text: "CBC results", ExpectedType: entities.DocumentTypeLabReport, Difficulty: "easy"}

	tests := []struct {
		name    string
		docs    []GoldenDocument
		wantErr bool
	}{
		{"valid", []GoldenDocument{valid}, false},
		{"missing id", []GoldenDocument{{Text: "x", ExpectedType: entities.DocumentTypeLabReport, Difficulty: "easy"}}, true},
		{"blank text", []GoldenDocument{{ID: "d1", Text: "  ", ExpectedType: entities.DocumentTypeLabReport, Difficulty: "easy"}}, true},
		{"unknown type", []GoldenDocument{{ID: "d1", Text: "x", ExpectedType: "invoice", Difficulty: "easy"}}, true},
		{"bad difficulty", []GoldenDocument{{ID: "d1", Text: "x", ExpectedType: entities.DocumentTypeLabReport, Difficulty: "impossible"}}, true},
		{"duplicate id", []GoldenDocument{valid, valid}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGoldenDocuments(tt.docs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGoldenDocuments() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestShippedGoldenSetIsValid(t *testing.T) {
	docs, err := LoadGoldenDocuments(filepath.Join("..", "..", "config", "golden_documents.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateGoldenDocuments(docs); err != nil {
		t.Fatalf("shipped golden set is invalid: %v", err)
	}
	covered := make(map[entities.DocumentType]bool)
	for _, d := range docs {
		covered[d.ExpectedType] = true
	}
	for _, typ := range entities.AllDocumentTypes() {
		if !covered[typ] {
			t.Errorf("golden set has no %s document", typ)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
