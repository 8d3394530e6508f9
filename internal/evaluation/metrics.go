package evaluation

import "github.com/medrecords/backend/internal/domain/entities"

// Accuracy returns correct/total, or 0.0 when total is zero.
func Accuracy(correct, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(correct) / float64(total)
}

// PrecisionRecall computes precision and recall for one document type over a set of results.
// Precision is 0.0 when the type was never predicted; recall is 0.0 when it never occurs.
func PrecisionRecall(results []EvalResult, docType entities.DocumentType) (precision, recall float64) {
	var truePos, predicted, actual int
	for _, r := range results {
		if r.PredictedType == docType {
			predicted++
		}
		if r.ExpectedType == docType {
			actual++
			if r.PredictedType == docType {
				truePos++
			}
		}
	}
	return Accuracy(truePos, predicted), Accuracy(truePos, actual)
}

// F1 is the harmonic mean of precision and recall.
func F1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0.0
	}
	return 2 * precision * recall / (precision + recall)
}

// MacroF1 averages F1 over the types that occur in the expected labels.
func MacroF1(results []EvalResult) float64 {
	types := make(map[entities.DocumentType]struct{})
	for _, r := range results {
		types[r.ExpectedType] = struct{}{}
	}
	if len(types) == 0 {
		return 0.0
	}

	var sum float64
	for t := range types {
		sum += F1(PrecisionRecall(results, t))
	}
	return sum / float64(len(types))
}
