package booking

import "strings"

// PaymentComplete reports whether any of the known payment signals is present.
// Historical payload shapes encode payment differently, so the signals are
// OR'd: a structured payment record with a non-zero amount, external reference
// id or provider; an explicit "paid" status; or a non-empty free-text answer
// under a question mentioning "payment". The Q&A scan is a documented
// heuristic carried over from older payload shapes, not a guaranteed signal.
func PaymentComplete(rec *PaymentRecord, questions []QuestionAnswer) bool {
	if rec != nil {
		if rec.Amount != 0 || strings.TrimSpace(rec.ExternalID) != "" || strings.TrimSpace(rec.Provider) != "" {
			return true
		}
		if strings.EqualFold(strings.TrimSpace(rec.Status), "paid") {
			return true
		}
	}
	for _, qa := range questions {
		if strings.Contains(strings.ToLower(qa.Question), "payment") && strings.TrimSpace(qa.Answer) != "" {
			return true
		}
	}
	return false
}
