package keeper

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// An Endpoint is a keeper service URL. Any path component is preserved, so a
// keeper mounted under a web path prefix is addressed by including the
// prefix in the endpoint.
type Endpoint string

// Healthy returns true if the endpoint answers its health check within the
// given timeout.
func (e Endpoint) Healthy(timeout time.Duration) bool {
	if e == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", e.prefix()+"health", nil)
	if err != nil {
		return false
	}

	r, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	r.Body.Close()

	return r.StatusCode == http.StatusOK
}

// prefix returns the URL prefix for the endpoint, normalized to carry a
// scheme and end with a single slash.
func (e Endpoint) prefix() string {
	u := string(e)
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}
