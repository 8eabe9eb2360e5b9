package jobdiva

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/apperr"
)

// LoginRefresher obtains a JobDiva session token with username and password.
// Wrap it in an auth.TokenCache to share one token across requests.
type LoginRefresher struct {
	HTTP     *resty.Client
	Username string
	Password string
	ClientID string
}

// Refresh performs one POST /auth/login.
func (l *LoginRefresher) Refresh(ctx context.Context) (string, time.Duration, error) {
	if l.Username == "" || l.Password == "" {
		return "", 0, &apperr.AuthError{Service: service, Msg: "JobDiva credentials not configured"}
	}

	var body loginResponse
	resp, err := l.HTTP.R().
		SetContext(ctx).
		SetBody(loginPayload{Username: l.Username, Password: l.Password, ClientID: l.ClientID}).
		SetResult(&body).
		Post("/auth/login")
	if err != nil {
		log.Error().Err(err).Msg("JobDiva login request failed")
		return "", 0, &apperr.AuthError{Service: service, Msg: "login request failed", Err: err}
	}
	if resp.IsError() {
		log.Error().Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msg("JobDiva login returned an error")
		return "", 0, &apperr.AuthError{Service: service, Msg: "login failed", StatusCode: resp.StatusCode()}
	}

	token := body.AccessToken
	if token == "" {
		token = body.Token
	}
	if token == "" {
		return "", 0, &apperr.AuthError{Service: service, Msg: "login response missing token"}
	}
	expiresIn := DefaultLoginExpiresIn
	if body.ExpiresIn > 0 {
		expiresIn = time.Duration(body.ExpiresIn) * time.Second
	}
	log.Info().Dur("expiresIn", expiresIn).Msg("JobDiva session token obtained")
	return token, expiresIn, nil
}
