package registry

import (
	"context"
	"errors"
)

// ErrAuthentication wraps failures of the initial authentication exchange:
// unreachable registry, rejected credentials or denied scopes.
var ErrAuthentication = errors.New("registry authentication failed")

// ErrInvalidReference is returned for a repository or tag the registry
// naming rules reject. It is detected before any network activity.
var ErrInvalidReference = errors.New("invalid image reference")

// Authenticator opens an authenticated session with pull access to a set of
// repositories in a single exchange.
type Authenticator interface {
	Authenticate(ctx context.Context, repositories []string) (ManifestChecker, error)
}

// ManifestChecker reports whether a manifest exists. An error is returned
// only for faults; a missing manifest is (false, nil).
type ManifestChecker interface {
	ManifestExists(ctx context.Context, repository, tag string) (bool, error)
}
