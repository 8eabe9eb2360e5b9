package auth

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"goto-jobdiva-bridge/internal/apperr"
)

// DefaultExpiresIn is assumed when the token response omits expires_in.
const DefaultExpiresIn = 300 * time.Second

// RefreshTokenGrant exchanges a long-lived refresh token for an access token
// using client-credential Basic auth (the GoTo Connect OAuth flow).
type RefreshTokenGrant struct {
	Service      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	HTTP         *resty.Client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Refresh performs exactly one POST to the token endpoint.
func (g *RefreshTokenGrant) Refresh(ctx context.Context) (string, time.Duration, error) {
	if g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "" {
		return "", 0, &apperr.AuthError{
			Service: g.Service,
			Msg:     "OAuth client id, client secret and refresh token must all be configured",
		}
	}

	var body tokenResponse
	resp, err := g.HTTP.R().
		SetContext(ctx).
		SetBasicAuth(g.ClientID, g.ClientSecret).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": g.RefreshToken,
		}).
		SetResult(&body).
		Post(g.TokenURL)
	if err != nil {
		log.Error().Err(err).Str("url", g.TokenURL).Msg("Token refresh request failed")
		return "", 0, &apperr.AuthError{Service: g.Service, Msg: "token refresh request failed", Err: err}
	}

	if resp.StatusCode() != 200 {
		log.Error().Str("url", g.TokenURL).Int("statusCode", resp.StatusCode()).Str("responseBody", resp.String()).Msg("Token refresh returned an error")
		return "", 0, &apperr.AuthError{
			Service:    g.Service,
			Msg:        "token refresh failed: " + resp.String(),
			StatusCode: resp.StatusCode(),
		}
	}

	if body.AccessToken == "" {
		log.Error().Str("url", g.TokenURL).Str("responseBody", resp.String()).Msg("Token refresh response missing access_token")
		return "", 0, &apperr.AuthError{Service: g.Service, Msg: "token refresh response missing access_token"}
	}

	expiresIn := DefaultExpiresIn
	if body.ExpiresIn > 0 {
		expiresIn = time.Duration(body.ExpiresIn) * time.Second
	}
	return body.AccessToken, expiresIn, nil
}
