package pipeline

import (
	"context"
	"strings"

	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/infrastructure/observability"
)

const (
	defaultClassificationPrefix = 1000
	classificationMaxTokens     = 20
	classificationTemperature   = 0.1
)

// DocumentClassifier determines the clinical type of a document from the start of its text.
type DocumentClassifier struct {
	backend     providers.GenerativeBackend
	prefixChars int
	instruction string
}

// NewDocumentClassifier creates a classifier reading at most prefixChars characters.
func NewDocumentClassifier(backend providers.GenerativeBackend, prefixChars int) *DocumentClassifier {
	if prefixChars <= 0 {
		prefixChars = defaultClassificationPrefix
	}
	return &DocumentClassifier{
		backend:     backend,
		prefixChars: prefixChars,
		instruction: classificationInstruction(),
	}
}

// Classify never fails; unrecognised answers and backend errors yield entities.DefaultDocumentType.
func (c *DocumentClassifier) Classify(ctx context.Context, text string) entities.DocumentType {
	prefix := truncateRunes(text, c.prefixChars)

	if t, ok := entities.ParseDocumentType(prefix); ok {
		return t
	}
	if c.backend == nil || strings.TrimSpace(prefix) == "" {
		return entities.DefaultDocumentType
	}

	logger := observability.LoggerFromContext(ctx)

	answer, err := c.backend.Complete(ctx, providers.CompletionRequest{
		SystemInstruction: c.instruction,
		UserContent:       prefix,
		MaxOutputTokens:   classificationMaxTokens,
		Temperature:       classificationTemperature,
	})
	if err != nil {
		logger.Warn().Err(err).Str("fallback", string(entities.DefaultDocumentType)).
			Msg("Document classification failed")
		return entities.DefaultDocumentType
	}

	t, ok := entities.ParseDocumentType(answer)
	if !ok {
		logger.Warn().Str("answer", truncateRunes(answer, 80)).Str("fallback", string(entities.DefaultDocumentType)).
			Msg("Unrecognised document type")
		return entities.DefaultDocumentType
	}
	return t
}

func classificationInstruction() string {
	names := make([]string, 0, len(entities.AllDocumentTypes()))
	for _, t := range entities.AllDocumentTypes() {
		names = append(names, string(t))
	}
	return "You classify clinical documents. Reply with exactly one of the following type names and nothing else: " +
		strings.Join(names, ", ") + "."
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
