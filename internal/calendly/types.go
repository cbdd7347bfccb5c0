package calendly

import (
	"time"

	"github.com/surveyops/booking-sync/internal/booking"
)

// Event is a scheduled event resource.
type Event struct {
	URI       string     `json:"uri"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Timezone  string     `json:"timezone"`
}

// Invitee is one attendee of a scheduled event.
type Invitee struct {
	URI                 string                   `json:"uri"`
	Email               string                   `json:"email"`
	Name                string                   `json:"name"`
	Status              string                   `json:"status"`
	Timezone            string                   `json:"timezone"`
	QuestionsAndAnswers []booking.QuestionAnswer `json:"questions_and_answers"`
	Payment             *booking.PaymentRecord   `json:"payment"`
}

// Single resources arrive wrapped in {"resource": ...}; collections in
// {"collection": [...], "pagination": {...}}.
type resourceEnvelope[T any] struct {
	Resource T `json:"resource"`
}

type collectionEnvelope[T any] struct {
	Collection []T        `json:"collection"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	NextPage string `json:"next_page"`
}
