package booking

import "time"

// QuestionAnswer is one free-text question/answer pair collected at booking time.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// PaymentRecord is the structured payment block attached to an invitee, when present.
type PaymentRecord struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	ExternalID string  `json:"external_id"`
	Provider   string  `json:"provider"`
	Status     string  `json:"status"`
}

// Booking is the canonical record of one scheduled event plus its invitee,
// derived fresh from upstream payloads on every request. It is never persisted;
// the CRM record is the sole durable store.
type Booking struct {
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	StartTimeUTC *time.Time `json:"start_time_utc,omitempty"`
	Timezone     string     `json:"timezone"`
	SurveyDate   string     `json:"survey_date,omitempty"`
	LocalTime    string     `json:"local_time,omitempty"`
	Paid         bool       `json:"paid"`
	Amount       float64    `json:"amount,omitempty"`
	Currency     string     `json:"currency,omitempty"`
}

// SurveyDateFor derives the UTC calendar date (YYYY-MM-DD) of a start time.
// A nil start time yields the empty string; the survey date is never set
// independently of the start time.
func SurveyDateFor(start *time.Time) string {
	if start == nil {
		return ""
	}
	return start.UTC().Format("2006-01-02")
}

// LocalTimeFor formats the start time in the given IANA timezone for human
// consumption. Formatting is best-effort: an unknown zone or nil start yields
// the empty string and must not abort the caller.
func LocalTimeFor(start *time.Time, timezone string) string {
	if start == nil || timezone == "" {
		return ""
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return ""
	}
	return start.In(loc).Format("Mon, Jan 2 2006 at 3:04 PM MST")
}
