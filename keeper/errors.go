package keeper

import "errors"

var (
	// ErrEmptyEndpoint is returned when a client is created without a
	// keeper endpoint.
	ErrEmptyEndpoint = errors.New("empty endpoint")

	// ErrNoToken is returned when a client is created without an access
	// token.
	ErrNoToken = errors.New("no access token")

	// ErrUnauthorized is returned when the keeper rejects the client's
	// access token.
	ErrUnauthorized = errors.New("access token rejected")

	// ErrLeaseTimeout is returned when no credential became free within the
	// requested wait window.
	ErrLeaseTimeout = errors.New("credential wait window elapsed")

	// ErrUnavailable is returned when the keeper cannot be reached, or when
	// it fails in a way that is neither a timeout nor an authorization
	// problem.
	ErrUnavailable = errors.New("credential service unavailable")

	// ErrMalformedResponse is returned when the keeper answers with a
	// success status but a body that cannot be understood.
	ErrMalformedResponse = errors.New("malformed credential service response")

	// ErrClaimOutstanding is returned when a client that already holds a
	// claim is asked for another. A client issues one claim at a time.
	ErrClaimOutstanding = errors.New("a credential claim is already outstanding")
)
