package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyops/booking-sync/internal/booking"
	"github.com/surveyops/booking-sync/internal/calendly"
	"github.com/surveyops/booking-sync/internal/salesforce"
)

type fakeBookings struct {
	events        map[string]*calendly.Event
	invitees      map[string]*calendly.Invitee
	listed        []calendly.Event
	eventInvitees map[string][]calendly.Invitee
	eventErr      error
	listErr       error
	fetches       int
}

func (f *fakeBookings) Event(ctx context.Context, uri string) (*calendly.Event, error) {
	f.fetches++
	if f.eventErr != nil {
		return nil, f.eventErr
	}
	ev, ok := f.events[uri]
	if !ok {
		return nil, &calendly.APIError{Status: 404, Body: "no such event"}
	}
	return ev, nil
}

func (f *fakeBookings) Invitee(ctx context.Context, uri string) (*calendly.Invitee, error) {
	f.fetches++
	inv, ok := f.invitees[uri]
	if !ok {
		return nil, &calendly.APIError{Status: 404, Body: "no such invitee"}
	}
	return inv, nil
}

func (f *fakeBookings) ListEvents(ctx context.Context, minStart time.Time, status string) ([]calendly.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listed, nil
}

func (f *fakeBookings) EventInvitees(ctx context.Context, eventURI string) ([]calendly.Invitee, error) {
	return f.eventInvitees[eventURI], nil
}

// patchCall records one UpdateLeadSurvey invocation.
type patchCall struct {
	ID         string
	SurveyDate string
	Paid       bool
}

type fakeLeadStore struct {
	leads      map[string]*salesforce.Lead
	findMisses int
	findCalls  int
	patches    []patchCall
	patchErr   error
	findErr    error
}

func (f *fakeLeadStore) FindLeadByEmail(ctx context.Context, email string) (*salesforce.Lead, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.findCalls <= f.findMisses {
		return nil, nil
	}
	lead, ok := f.leads[email]
	if !ok {
		return nil, nil
	}
	return lead, nil
}

func (f *fakeLeadStore) UpdateLeadSurvey(ctx context.Context, id, surveyDate string, paid bool) error {
	if f.patchErr != nil {
		return f.patchErr
	}
	f.patches = append(f.patches, patchCall{ID: id, SurveyDate: surveyDate, Paid: paid})
	for _, lead := range f.leads {
		if lead.ID == id {
			lead.SurveyScheduled = surveyDate
			lead.SurveyPaymentComplete = paid
		}
	}
	return nil
}

func newTestEngine(bookings BookingService, crm CRM) *Engine {
	resolver := NewLeadResolver(crm, ResolverConfig{
		Sleep: func(ctx context.Context, d time.Duration) error { return nil },
	})
	return NewEngine(EngineConfig{
		Bookings: bookings,
		CRM:      crm,
		Resolver: resolver,
	})
}

func TestProcessNotificationWebhookHappyPath(t *testing.T) {
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	bookings := &fakeBookings{
		events: map[string]*calendly.Event{
			"https://x/ev1": {URI: "https://x/ev1", StartTime: &start},
		},
	}
	crm := &fakeLeadStore{
		leads: map[string]*salesforce.Lead{"a@b.com": {ID: "00Q1", Name: "Ada"}},
	}
	engine := newTestEngine(bookings, crm)

	n, err := booking.Normalize([]byte(`{
		"event": "invitee.created",
		"payload": {
			"event": "https://x/ev1",
			"email": "a@b.com",
			"questions_and_answers": [{"question": "Payment received?", "answer": "yes"}]
		}
	}`))
	require.NoError(t, err)

	res, err := engine.ProcessNotification(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, "00Q1", res.LeadID)
	assert.Equal(t, "2025-11-03", res.Booking.SurveyDate)
	assert.True(t, res.Booking.Paid)
	assert.Equal(t, "UTC", res.Booking.Timezone)

	require.Len(t, crm.patches, 1)
	assert.Equal(t, patchCall{ID: "00Q1", SurveyDate: "2025-11-03", Paid: true}, crm.patches[0])
	assert.Equal(t, 1, crm.findCalls)
}

func TestProcessNotificationReferencedVariant(t *testing.T) {
	start := time.Date(2025, 12, 1, 17, 30, 0, 0, time.UTC)
	bookings := &fakeBookings{
		events: map[string]*calendly.Event{
			"https://x/ev2": {URI: "https://x/ev2", StartTime: &start},
		},
		invitees: map[string]*calendly.Invitee{
			"https://x/ev2/invitees/i1": {
				Email:    "c@d.org",
				Name:     "Grace",
				Timezone: "America/Denver",
				Payment:  &booking.PaymentRecord{Amount: 150, Currency: "USD", Provider: "stripe"},
			},
		},
	}
	crm := &fakeLeadStore{
		leads: map[string]*salesforce.Lead{"c@d.org": {ID: "00Q2"}},
	}
	engine := newTestEngine(bookings, crm)

	n, err := booking.Normalize([]byte(`{"eventUri": "https://x/ev2", "inviteeUri": "https://x/ev2/invitees/i1", "email": "c@d.org"}`))
	require.NoError(t, err)

	res, err := engine.ProcessNotification(context.Background(), n)
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, "2025-12-01", res.Booking.SurveyDate)
	assert.Equal(t, "America/Denver", res.Booking.Timezone)
	assert.NotEmpty(t, res.Booking.LocalTime)
	assert.True(t, res.Booking.Paid)
	assert.Equal(t, 150.0, res.Booking.Amount)
	assert.Equal(t, "USD", res.Booking.Currency)
}

func TestProcessNotificationIgnored(t *testing.T) {
	bookings := &fakeBookings{}
	crm := &fakeLeadStore{}
	engine := newTestEngine(bookings, crm)

	res, err := engine.ProcessNotification(context.Background(), &booking.Notification{Ignored: true, EventType: "invitee.canceled"})
	require.NoError(t, err)
	assert.False(t, res.Processed)
	assert.Equal(t, "ignored_event_type", res.Reason)
	assert.Zero(t, bookings.fetches)
	assert.Zero(t, crm.findCalls)
}

func TestProcessNotificationLeadNotFoundKeepsBookingContext(t *testing.T) {
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	bookings := &fakeBookings{
		events: map[string]*calendly.Event{"https://x/ev1": {StartTime: &start}},
	}
	crm := &fakeLeadStore{}
	engine := newTestEngine(bookings, crm)

	res, err := engine.ProcessNotification(context.Background(), &booking.Notification{
		EventURI: "https://x/ev1",
		Email:    "ghost@b.com",
	})
	assert.ErrorIs(t, err, ErrLeadNotFound)
	// Five attempts; zero patch calls; computed booking preserved for the
	// failure response.
	assert.Equal(t, 5, crm.findCalls)
	assert.Empty(t, crm.patches)
	require.NotNil(t, res.Booking)
	assert.Equal(t, "ghost@b.com", res.Booking.Email)
	assert.Equal(t, "2025-11-03", res.Booking.SurveyDate)
}

func TestProcessNotificationBookingFetchError(t *testing.T) {
	bookings := &fakeBookings{eventErr: &calendly.APIError{Status: 500, Body: "flaky"}}
	crm := &fakeLeadStore{}
	engine := newTestEngine(bookings, crm)

	_, err := engine.ProcessNotification(context.Background(), &booking.Notification{
		EventURI: "https://x/ev1",
		Email:    "a@b.com",
	})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "booking", upstream.Service)
	assert.Equal(t, 500, upstream.Status)
	assert.Zero(t, crm.findCalls)
}

func TestProcessNotificationPatchError(t *testing.T) {
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	bookings := &fakeBookings{
		events: map[string]*calendly.Event{"https://x/ev1": {StartTime: &start}},
	}
	crm := &fakeLeadStore{
		leads:    map[string]*salesforce.Lead{"a@b.com": {ID: "00Q1"}},
		patchErr: &salesforce.APIError{Status: 400, Body: "INVALID_FIELD"},
	}
	engine := newTestEngine(bookings, crm)

	res, err := engine.ProcessNotification(context.Background(), &booking.Notification{
		EventURI: "https://x/ev1",
		Email:    "a@b.com",
	})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "crm-patch", upstream.Service)
	assert.Equal(t, "00Q1", res.LeadID)
}

func TestUpdateTwiceIdempotent(t *testing.T) {
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	bookings := &fakeBookings{
		events: map[string]*calendly.Event{"https://x/ev1": {StartTime: &start}},
	}
	crm := &fakeLeadStore{
		leads: map[string]*salesforce.Lead{"a@b.com": {ID: "00Q1"}},
	}
	engine := newTestEngine(bookings, crm)

	n := &booking.Notification{
		EventURI:  "https://x/ev1",
		Email:     "a@b.com",
		Questions: []booking.QuestionAnswer{{Question: "payment", Answer: "done"}},
	}

	_, err := engine.ProcessNotification(context.Background(), n)
	require.NoError(t, err)
	stateAfterFirst := *crm.leads["a@b.com"]

	_, err = engine.ProcessNotification(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, stateAfterFirst, *crm.leads["a@b.com"])
	assert.Len(t, crm.patches, 2)
	assert.Equal(t, crm.patches[0], crm.patches[1])
}

func TestBuildBookingNoStartTime(t *testing.T) {
	b := buildBooking(&booking.Notification{Email: "a@b.com"}, &calendly.Event{}, nil)
	assert.Nil(t, b.StartTimeUTC)
	assert.Empty(t, b.SurveyDate)
	assert.Equal(t, "UTC", b.Timezone)
}

func TestBuildBookingTimezoneFallbacks(t *testing.T) {
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	ev := &calendly.Event{StartTime: &start, Timezone: "Europe/Berlin"}

	b := buildBooking(&booking.Notification{Email: "a@b.com"}, ev, &calendly.Invitee{Timezone: "Asia/Tokyo"})
	assert.Equal(t, "Asia/Tokyo", b.Timezone)

	b = buildBooking(&booking.Notification{Email: "a@b.com"}, ev, nil)
	assert.Equal(t, "Europe/Berlin", b.Timezone)

	b = buildBooking(&booking.Notification{Email: "a@b.com", Timezone: "America/Chicago"}, &calendly.Event{StartTime: &start}, nil)
	assert.Equal(t, "America/Chicago", b.Timezone)
}

func TestBuildBookingBadTimezoneDegrades(t *testing.T) {
	start := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	ev := &calendly.Event{StartTime: &start}
	b := buildBooking(&booking.Notification{Email: "a@b.com", Timezone: "Not/AZone"}, ev, nil)
	// Machine-readable fields stay populated; only the human-readable local
	// time degrades.
	assert.Empty(t, b.LocalTime)
	assert.Equal(t, "2025-11-03", b.SurveyDate)
	assert.NotNil(t, b.StartTimeUTC)
}
