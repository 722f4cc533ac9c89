// Package codec turns envelopes into wire frames and back.
package codec

import (
	"time"

	"github.com/dkeye/Arena/internal/domain"
	"github.com/goccy/go-json"
)

// Encode serializes one outbound envelope stamped with now.
func Encode(event string, data any, now time.Time) ([]byte, error) {
	return json.Marshal(domain.Envelope{
		Event:     event,
		Data:      data,
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
	})
}

// Decode parses an inbound frame. Event must be present.
func Decode(frame []byte) (domain.Inbound, error) {
	var in domain.Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return domain.Inbound{}, domain.Wrap(domain.CodeBadPayload, "malformed envelope", err)
	}
	if in.Event == "" {
		return domain.Inbound{}, domain.New(domain.CodeBadPayload, "missing event")
	}
	return in, nil
}

// DecodeData unmarshals the inbound data object into v. Empty data leaves v untouched.
func DecodeData(in domain.Inbound, v any) error {
	if len(in.Data) == 0 || string(in.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(in.Data, v); err != nil {
		return domain.Wrap(domain.CodeBadPayload, "malformed data for "+in.Event, err)
	}
	return nil
}

// ErrorData is the client-facing shape of a typed error.
type ErrorData struct {
	Code    domain.Code    `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func EncodeError(err error, now time.Time) ([]byte, error) {
	e := domain.AsError(err)
	msg := e.Message
	if e.Code == domain.CodeInternal {
		msg = "internal error"
	}
	return Encode(domain.EventError, ErrorData{Code: e.Code, Message: msg, Context: e.Context}, now)
}
