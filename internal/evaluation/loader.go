package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadGoldenDocuments reads and parses a golden document set from a JSON file.
func LoadGoldenDocuments(path string) ([]GoldenDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden documents file: %w", err)
	}

	var docs []GoldenDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse golden documents: %w", err)
	}

	return docs, nil
}

var validDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

// ValidateGoldenDocuments checks that all golden documents have required fields and valid values.
func ValidateGoldenDocuments(docs []GoldenDocument) error {
	seen := make(map[string]struct{}, len(docs))

	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document at index %d: missing id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("document at index %d: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}

		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("document %q: missing text", d.ID)
		}
		if !d.ExpectedType.IsValid() {
			return fmt.Errorf("document %q: invalid expected_type %q", d.ID, d.ExpectedType)
		}
		if !validDifficulties[d.Difficulty] {
			return fmt.Errorf("document %q: invalid difficulty %q (must be easy/medium/hard)", d.ID, d.Difficulty)
		}
	}

	return nil
}
