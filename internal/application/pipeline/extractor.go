package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

const (
	extractionMaxTokens   = 2000
	extractionTemperature = 0.2
)

// StructuredExtractor turns document text into type-specific structured data.
type StructuredExtractor struct {
	backend  providers.GenerativeBackend
	registry *SchemaRegistry
}

// NewStructuredExtractor creates an extractor using the given registry.
func NewStructuredExtractor(backend providers.GenerativeBackend, registry *SchemaRegistry) *StructuredExtractor {
	return &StructuredExtractor{backend: backend, registry: registry}
}

// Extract makes exactly one backend call. Failures are reported on the result,
// never returned: backend errors carry an EXTERNAL cause and unparseable replies a
// MALFORMED_OUTPUT cause with the raw reply kept. Missing schema fields are listed
// but do not fail the extraction.
func (e *StructuredExtractor) Extract(ctx context.Context, text string, docType entities.DocumentType) *entities.StructuredExtraction {
	schema := e.registry.TemplateFor(docType)
	result := &entities.StructuredExtraction{DocumentType: schema.DocumentType}

	if e.backend == nil {
		return failExtraction(result, apperrors.NewExternalError("no generative backend configured", nil))
	}

	reply, err := e.backend.Complete(ctx, providers.CompletionRequest{
		SystemInstruction: schema.Instruction,
		UserContent:       text,
		Structured:        true,
		MaxOutputTokens:   extractionMaxTokens,
		Temperature:       extractionTemperature,
	})
	if err != nil {
		return failExtraction(result, apperrors.NewExternalError("structured extraction request failed", err))
	}

	fields, err := parseObject(reply)
	if err != nil {
		result.RawModelOutput = reply
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("document_type", string(schema.DocumentType)).
			Int("reply_length", len(reply)).
			Msg("Structured extraction reply could not be parsed")
		return failExtraction(result, apperrors.NewMalformedOutputError("structured extraction reply is not a JSON object", err))
	}

	result.Fields = fields
	result.Success = true
	result.MissingFields = missingFields(schema, fields)
	return result
}

func failExtraction(result *entities.StructuredExtraction, cause *apperrors.AppError) *entities.StructuredExtraction {
	result.Success = false
	result.Error = cause.Error()
	result.Cause = cause
	return result
}

// parseObject strips a Markdown code fence and requires a top-level JSON object.
func parseObject(reply string) (entities.Value, error) {
	cleaned := stripCodeFence(reply)
	if cleaned == "" {
		return entities.Value{}, fmt.Errorf("empty reply")
	}
	v, err := entities.ParseValue([]byte(cleaned))
	if err != nil {
		return entities.Value{}, err
	}
	if !v.IsMapping() {
		return entities.Value{}, fmt.Errorf("reply is a %s, not an object", v.Kind)
	}
	return v, nil
}

func stripCodeFence(s string) string {
	cleaned := strings.TrimSpace(s)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func missingFields(schema *entities.ExtractionSchema, fields entities.Value) []string {
	var missing []string
	for _, name := range schema.FieldNames() {
		v, ok := fields.Get(name)
		if !ok || v.IsNull() {
			missing = append(missing, name)
		}
	}
	return missing
}
