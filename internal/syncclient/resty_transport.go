// Package syncclient implements the sync reconciliation algorithm from
// spec.md §4.10 over the REST surface from spec.md §6, using resty as
// the HTTP transport.
package syncclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Transport wraps a resty.Client configured with the sync server's base
// URL and a held bearer token, mirroring MKhiriev-GoPassKeeper's
// httpServerAdapter client wrapper (internal/adapter/http.go) — the
// teacher's own HTTP client conventions are server-only and too thin to
// ground this on.
type Transport struct {
	client *resty.Client
	token  string
}

// NewTransport builds a Transport against baseURL with the given
// per-request timeout (spec.md §5: default 10s per HTTP call).
func NewTransport(baseURL string, timeout time.Duration) (*Transport, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := resty.New().SetBaseURL(base).SetTimeout(timeout)
	return &Transport{client: c}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("syncclient: empty base URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("syncclient: base URL must include host and scheme")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken stores the bearer token used for authenticated requests. An
// empty token means "no session held" (spec.md §4.10 step 1).
func (t *Transport) SetToken(token string) { t.token = strings.TrimSpace(token) }

// Token returns the currently held bearer token, if any.
func (t *Transport) Token() string { return t.token }

func (t *Transport) authenticated() *resty.Request {
	return t.client.R().SetHeader("Authorization", "Bearer "+t.token)
}
