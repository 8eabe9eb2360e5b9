package gotoconnect

import "time"

// Call placement methods reported back to callers.
const (
	MethodAPI         = "api"
	MethodTelFallback = "tel_fallback"
)

// SendMessagePayload is the body of POST /messaging/v1/messages.
type SendMessagePayload struct {
	OwnerPhoneNumber    string   `json:"ownerPhoneNumber"`
	ContactPhoneNumbers []string `json:"contactPhoneNumbers"`
	Body                string   `json:"body"`
	UserKey             string   `json:"userKey,omitempty"`
}

// SendMessageResponse is the subset of the messaging response we use.
type SendMessageResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// MessageResult is what SendMessage reports.
type MessageResult struct {
	ID     string
	Status string
}

// CallPayload is the body of POST /calls/v2/calls.
type CallPayload struct {
	DialString string   `json:"dialString"`
	From       CallFrom `json:"from"`
	UserKey    string   `json:"userKey,omitempty"`
}

// CallFrom identifies the originating line.
type CallFrom struct {
	PhoneNumber string `json:"phoneNumber"`
}

// CallResponse is the subset of the call control response we use.
type CallResponse struct {
	CallID    string `json:"callId"`
	SessionID string `json:"sessionId,omitempty"`
}

// CallResult is what InitiateCall reports.
type CallResult struct {
	CallID    string
	SessionID string
	Method    string
	Timestamp time.Time
}
