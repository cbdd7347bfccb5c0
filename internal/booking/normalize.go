package booking

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TriggerInviteeCreated is the only webhook event type this engine acts on.
const TriggerInviteeCreated = "invitee.created"

// Notification is the normalized form of one inbound booking notification.
// Invitee fields may already be populated (embedded variant) or require a
// follow-up fetch via InviteeURI (referenced variant).
type Notification struct {
	EventURI   string
	InviteeURI string
	Email      string
	Name       string
	Timezone   string
	Questions  []QuestionAnswer
	Payment    *PaymentRecord

	// Ignored marks notifications whose event type is not the supported
	// trigger. They are accepted as no-op successes so the upstream service
	// does not retry deliveries we will never act on.
	Ignored   bool
	EventType string
}

// webhookEnvelope is the booking service's native delivery shape:
// {"event": "invitee.created", "payload": {...}} with invitee fields embedded.
type webhookEnvelope struct {
	Event   string          `json:"event"`
	Payload *webhookPayload `json:"payload"`
}

type webhookPayload struct {
	Event               string           `json:"event"`
	Email               string           `json:"email"`
	Name                string           `json:"name"`
	FirstName           string           `json:"first_name"`
	LastName            string           `json:"last_name"`
	Timezone            string           `json:"timezone"`
	QuestionsAndAnswers []QuestionAnswer `json:"questions_and_answers"`
	Payment             *PaymentRecord   `json:"payment"`
}

// referencePayload is the compact relay shape: the caller already extracted
// the resource URIs and the invitee email.
type referencePayload struct {
	EventURI   string `json:"eventUri"`
	InviteeURI string `json:"inviteeUri"`
	Email      string `json:"email"`
}

// Normalize converts an inbound payload of either recognized shape into a
// Notification. Unknown event types normalize to an Ignored notification;
// a payload missing its event locator or invitee email fails with
// ErrMalformedPayload.
func Normalize(raw []byte) (*Notification, error) {
	var probe struct {
		Event    json.RawMessage `json:"event"`
		EventURI string          `json:"eventUri"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if strings.TrimSpace(probe.EventURI) != "" {
		return normalizeReference(raw)
	}
	if len(probe.Event) > 0 {
		return normalizeWebhook(raw)
	}
	return nil, fmt.Errorf("%w: no event locator", ErrMalformedPayload)
}

func normalizeWebhook(raw []byte) (*Notification, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Event != TriggerInviteeCreated {
		return &Notification{Ignored: true, EventType: env.Event}, nil
	}
	if env.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedPayload)
	}
	eventURI := strings.TrimSpace(env.Payload.Event)
	email := strings.TrimSpace(env.Payload.Email)
	if eventURI == "" {
		return nil, fmt.Errorf("%w: missing event uri", ErrMalformedPayload)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: missing invitee email", ErrMalformedPayload)
	}
	return &Notification{
		EventURI:  eventURI,
		Email:     email,
		Name:      inviteeName(env.Payload),
		Timezone:  strings.TrimSpace(env.Payload.Timezone),
		Questions: env.Payload.QuestionsAndAnswers,
		Payment:   env.Payload.Payment,
		EventType: env.Event,
	}, nil
}

func normalizeReference(raw []byte) (*Notification, error) {
	var ref referencePayload
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	eventURI := strings.TrimSpace(ref.EventURI)
	email := strings.TrimSpace(ref.Email)
	if eventURI == "" {
		return nil, fmt.Errorf("%w: missing event uri", ErrMalformedPayload)
	}
	if email == "" {
		return nil, fmt.Errorf("%w: missing invitee email", ErrMalformedPayload)
	}
	return &Notification{
		EventURI:   eventURI,
		InviteeURI: strings.TrimSpace(ref.InviteeURI),
		Email:      email,
		EventType:  TriggerInviteeCreated,
	}, nil
}

func inviteeName(p *webhookPayload) string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}
