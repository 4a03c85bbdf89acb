package keeper

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

// TLSConfig controls how a client verifies https endpoints.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Intended for
	// deployments that run the keeper with a self-signed certificate.
	InsecureSkipVerify bool

	// CAFile is an optional PEM bundle of additional root certificates to
	// trust when verifying the keeper's certificate chain.
	CAFile string
}

// roundTripper returns a transport honoring the configuration, or nil when
// the default transport suffices.
func (tc TLSConfig) roundTripper() (http.RoundTripper, error) {
	if !tc.InsecureSkipVerify && tc.CAFile == "" {
		return nil, nil
	}

	cfg := &tls.Config{InsecureSkipVerify: tc.InsecureSkipVerify}
	if tc.CAFile != "" {
		pem, err := os.ReadFile(tc.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "unable to read ca bundle")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificates found in %s", tc.CAFile)
		}
		cfg.RootCAs = pool
	}

	return &http.Transport{TLSClientConfig: cfg}, nil
}
