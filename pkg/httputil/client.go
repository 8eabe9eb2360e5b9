package httputil

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds every outbound vendor call.
const DefaultTimeout = 10 * time.Second

// NewClient returns a Resty client with the bridge's common settings.
// Retries stay disabled: vendor failures surface to the caller as-is.
func NewClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "goto-jobdiva-bridge/1.0")
	if baseURL != "" {
		client.SetBaseURL(baseURL)
	}
	return client
}
