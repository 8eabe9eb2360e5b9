// Package jobdiva talks to the JobDiva candidate API.
package jobdiva

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/apperr"
)

const service = "jobdiva"

// DefaultLoginExpiresIn is assumed when the login response omits expires_in.
const DefaultLoginExpiresIn = 3600 * time.Second

// TokenSource hands out bearer tokens. *auth.TokenCache satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// APIKey is a TokenSource for a static JobDiva API key.
type APIKey string

func (k APIKey) Token(ctx context.Context) (string, error) {
	if k == "" {
		return "", &apperr.AuthError{Service: service, Msg: "JobDiva credentials not configured"}
	}
	return string(k), nil
}

func (k APIKey) Invalidate() {}

// Client struct holds the configuration for the JobDiva client.
type Client struct {
	httpClient *resty.Client
	tokens     TokenSource
}

// NewClient creates a new JobDiva client.
func NewClient(httpClient *resty.Client, tokens TokenSource) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("JobDiva http client cannot be nil")
	}
	if tokens == nil {
		return nil, fmt.Errorf("JobDiva token source cannot be nil")
	}
	log.Info().Str("baseURL", httpClient.BaseURL).Msg("JobDiva client configured")
	return &Client{httpClient: httpClient, tokens: tokens}, nil
}

// CreateNote adds a note to a candidate's journal.
func (c *Client) CreateNote(ctx context.Context, candidateID, text string) (*NoteResult, error) {
	if candidateID == "" {
		return nil, &apperr.ValidationError{Field: "candidate_id", Msg: "is required"}
	}
	path := fmt.Sprintf("/apiv2/candidates/%s/notes", url.PathEscape(candidateID))

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.
		SetBody(NotePayload{NoteText: text}).
		SetResult(&noteResponse{}).
		Post(path)
	if err := c.check("CreateNote", path, resp, err); err != nil {
		return nil, err
	}

	out := resp.Result().(*noteResponse)
	noteID := idString(out.NoteID)
	if noteID == "" {
		noteID = idString(out.ID)
	}
	log.Info().Str("candidateID", candidateID).Str("noteID", noteID).Msg("Successfully created JobDiva note")
	return &NoteResult{NoteID: noteID}, nil
}

// FindCandidateByPhone returns the first candidate matching phone, or nil if none.
func (c *Client) FindCandidateByPhone(ctx context.Context, phone string) (*Candidate, error) {
	const path = "/apiv2/candidates/search"

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.
		SetBody(map[string]string{"phone": phone}).
		Post(path)
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		log.Info().Str("phone", phone).Msg("No JobDiva candidate found for phone")
		return nil, nil
	}
	if err := c.check("FindCandidateByPhone", path, resp, err); err != nil {
		return nil, err
	}

	candidate, err := parseSearch(resp.Body())
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Str("responseBody", resp.String()).Msg("JobDiva API: unreadable candidate search response")
		return nil, &apperr.RemoteAPIError{Service: service, Op: "FindCandidateByPhone", StatusCode: resp.StatusCode(), Body: resp.String(), Err: err}
	}
	if candidate == nil {
		log.Info().Str("phone", phone).Msg("No JobDiva candidate found for phone")
		return nil, nil
	}
	log.Info().Str("candidateID", candidate.ID).Str("phone", phone).Msg("Found JobDiva candidate by phone")
	return candidate, nil
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.httpClient.R().SetContext(ctx).SetAuthToken(token), nil
}

func (c *Client) check(op, path string, resp *resty.Response, err error) error {
	if err != nil {
		log.Error().Err(err).Str("url", path).Msgf("JobDiva API: %s request failed", op)
		return &apperr.RemoteAPIError{Service: service, Op: op, Err: err}
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.IsError() {
		log.Error().Str("url", path).Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msgf("JobDiva API: %s returned an error", op)
		return &apperr.RemoteAPIError{Service: service, Op: op, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
