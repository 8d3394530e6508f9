package evaluation

import "fmt"

type GuardrailConfig struct {
	MinAccuracy       float64
	MinTypeAccuracy   float64
	MinSamplesPerType int
}

type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MinSamplesPerType <= 0 {
		config.MinSamplesPerType = 3
	}
	return &Guardrails{config: config}
}

// Violations lists every threshold the summary fails. Types with fewer than
// MinSamplesPerType golden documents are not checked individually.
func (g *Guardrails) Violations(s *EvalSummary) []string {
	var out []string
	if s.Accuracy < g.config.MinAccuracy {
		out = append(out, fmt.Sprintf("overall accuracy %.3f below %.3f", s.Accuracy, g.config.MinAccuracy))
	}
	for _, t := range sortedTypes(s.ByType) {
		ts := s.ByType[t]
		if ts.Count < g.config.MinSamplesPerType {
			continue
		}
		if ts.Accuracy < g.config.MinTypeAccuracy {
			out = append(out, fmt.Sprintf("%s accuracy %.3f below %.3f", t, ts.Accuracy, g.config.MinTypeAccuracy))
		}
	}
	return out
}
