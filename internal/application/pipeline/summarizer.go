package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/infrastructure/observability"
)

// SummaryFailedSentinel is stored in place of a summary when generation fails.
const SummaryFailedSentinel = "Summary generation failed."

const (
	defaultSummaryInputChars = 3000
	summaryMaxTokens         = 500
	reportSummaryMaxTokens   = 800
	summaryTemperature       = 0.3
)

const summaryInstruction = "You are a medical document summarizer. Write a concise, professional prose summary " +
	"of the structured clinical data from a %s. Lead with abnormal results and actionable items such as " +
	"follow-ups or medication changes. Do not add information that is not in the data."

const reportSummaryInstruction = "You are a medical document summarizer. Write a short narrative overview of the " +
	"patient's longitudinal medical summary for a treating clinician. Lead with critical information and " +
	"abnormal findings."

// Summarizer condenses structured data into prose.
type Summarizer struct {
	backend    providers.GenerativeBackend
	inputChars int
}

// NewSummarizer creates a summarizer that sends at most inputChars characters of data.
func NewSummarizer(backend providers.GenerativeBackend, inputChars int) *Summarizer {
	if inputChars <= 0 {
		inputChars = defaultSummaryInputChars
	}
	return &Summarizer{backend: backend, inputChars: inputChars}
}

// Summarize returns SummaryFailedSentinel instead of an error.
func (s *Summarizer) Summarize(ctx context.Context, data entities.Value, docType entities.DocumentType) string {
	payload, err := json.Marshal(data)
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("Failed to encode structured data for summary")
		return SummaryFailedSentinel
	}

	label := strings.ReplaceAll(string(docType), "_", " ")
	return s.complete(ctx, fmt.Sprintf(summaryInstruction, label), string(payload), summaryMaxTokens, docType)
}

// SummarizeReport writes a narrative overview of an aggregated patient report.
func (s *Summarizer) SummarizeReport(ctx context.Context, report *entities.PatientReport) string {
	entries := make([]entities.Entry, 0, len(report.Sections))
	for _, section := range report.Sections {
		entries = append(entries, entities.Entry{Key: section.Key, Value: section.Content})
	}
	payload, err := json.Marshal(entities.Mapping(entries...))
	if err != nil {
		return SummaryFailedSentinel
	}
	return s.complete(ctx, reportSummaryInstruction, string(payload), reportSummaryMaxTokens, "")
}

func (s *Summarizer) complete(ctx context.Context, instruction, content string, maxTokens int, docType entities.DocumentType) string {
	logger := observability.LoggerFromContext(ctx)
	if s.backend == nil {
		return SummaryFailedSentinel
	}

	reply, err := s.backend.Complete(ctx, providers.CompletionRequest{
		SystemInstruction: instruction,
		UserContent:       truncateWithEllipsis(content, s.inputChars),
		MaxOutputTokens:   maxTokens,
		Temperature:       summaryTemperature,
	})
	if err != nil {
		logger.Error().Err(err).Str("document_type", string(docType)).Msg("Summary generation failed")
		return SummaryFailedSentinel
	}

	summary := strings.TrimSpace(reply)
	if summary == "" {
		logger.Warn().Str("document_type", string(docType)).Msg("Summary generation returned empty text")
		return SummaryFailedSentinel
	}
	return summary
}

func truncateWithEllipsis(s string, n int) string {
	cut := truncateRunes(s, n)
	if len(cut) < len(s) {
		return cut + "..."
	}
	return s
}

var errSummaryFailed = errors.New(SummaryFailedSentinel)
