package booking

import "errors"

var (
	// ErrMalformedPayload is returned when no known extraction strategy can
	// locate the event URI or the invitee email in an inbound payload.
	ErrMalformedPayload = errors.New("malformed booking payload")
)
