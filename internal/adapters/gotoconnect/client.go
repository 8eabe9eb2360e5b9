// Package gotoconnect talks to the GoTo Connect messaging and call control APIs.
package gotoconnect

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/apperr"
)

const service = "goto"

// TokenSource hands out bearer tokens. *auth.TokenCache satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client struct holds the configuration for the GoTo Connect client.
type Client struct {
	httpClient  *resty.Client
	tokens      TokenSource
	callControl string
	now         func() time.Time
}

// NewClient creates a new GoTo Connect client.
// callControl is "api" to place calls through the REST API or "tel" to let the browser dial a tel: URI.
func NewClient(httpClient *resty.Client, tokens TokenSource, callControl string) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("GoTo http client cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("GoTo token source cannot be nil")
	}
	if callControl != "tel" {
		callControl = MethodAPI
	}
	log.Info().Str("baseURL", httpClient.BaseURL).Str("callControl", callControl).Msg("GoTo Connect client configured")
	return &Client{httpClient: httpClient, tokens: tokens, callControl: callControl, now: time.Now}, nil
}

// SendMessage sends body from ownerNumber to every recipient.
func (c *Client) SendMessage(ctx context.Context, ownerNumber string, recipients []string, body string) (*MessageResult, error) {
	if len(recipients) == 0 {
		return nil, &apperr.ValidationError{Field: "contactPhoneNumbers", Msg: "must contain at least one number"}
	}
	payload := SendMessagePayload{
		OwnerPhoneNumber:    ownerNumber,
		ContactPhoneNumbers: recipients,
		Body:                body,
	}

	log.Info().Str("owner", ownerNumber).Strs("contacts", recipients).Int("bodyLen", len(body)).Msg("Sending GoTo SMS")

	var out SendMessageResponse
	if err := c.post(ctx, "SendMessage", "/messaging/v1/messages", payload, &out); err != nil {
		return nil, err
	}

	status := out.Status
	if status == "" {
		status = "sent"
	}
	log.Info().Str("messageID", out.ID).Str("status", status).Msg("GoTo SMS sent successfully")
	return &MessageResult{ID: out.ID, Status: status}, nil
}

// InitiateCall asks GoTo to ring fromNumber's line and connect it to toNumber.
// With tel call control no request is made and the caller should dial a tel: URI instead.
func (c *Client) InitiateCall(ctx context.Context, fromNumber, toNumber, userID string) (*CallResult, error) {
	now := c.now().UTC()
	if c.callControl != MethodAPI {
		log.Info().Str("from", fromNumber).Str("to", toNumber).Msg("GoTo call control disabled, using tel fallback")
		return &CallResult{Method: MethodTelFallback, Timestamp: now}, nil
	}

	payload := CallPayload{
		DialString: toNumber,
		From:       CallFrom{PhoneNumber: fromNumber},
		UserKey:    userID,
	}

	log.Info().Str("from", fromNumber).Str("to", toNumber).Str("userID", userID).Msg("Initiating GoTo call")

	var out CallResponse
	if err := c.post(ctx, "InitiateCall", "/calls/v2/calls", payload, &out); err != nil {
		return nil, err
	}
	log.Info().Str("callID", out.CallID).Str("sessionID", out.SessionID).Msg("GoTo call initiated")
	return &CallResult{CallID: out.CallID, SessionID: out.SessionID, Method: MethodAPI, Timestamp: now}, nil
}

func (c *Client) post(ctx context.Context, op, url string, payload, result interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(payload).
		SetResult(result).
		Post(url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msgf("GoTo API: %s request failed", op)
		return &apperr.RemoteAPIError{Service: service, Op: op, Err: err}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		// Revoked or rotated token; the next call refreshes.
		c.tokens.Invalidate()
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		log.Error().Str("url", url).Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msgf("GoTo API: %s returned an error", op)
		return &apperr.RemoteAPIError{Service: service, Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
