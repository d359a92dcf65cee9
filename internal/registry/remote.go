package registry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	"github.com/ppiankov/buildstate/internal/candidate"
	"github.com/ppiankov/buildstate/internal/version"
)

// Options configures a Remote.
type Options struct {
	// Insecure allows plain HTTP connections to the registry.
	Insecure bool

	// Credentials used for the authentication exchange.
	Credentials Credentials

	// TLSConfig overrides the client TLS configuration. Nil keeps the defaults.
	TLSConfig *tls.Config

	// Transport overrides the base HTTP transport. Mostly for tests.
	Transport http.RoundTripper
}

// Remote talks to a single registry through go-containerregistry.
type Remote struct {
	Registry  name.Registry
	auth      authn.Authenticator
	transport http.RoundTripper
	insecure  bool
}

// New creates a Remote for the registry endpoint. Credentials are resolved
// here so that a broken credential file is reported before any network I/O.
func New(endpoint string, opts Options) (*Remote, error) {
	reg, err := ParseEndpoint(endpoint, opts.Insecure)
	if err != nil {
		return nil, err
	}
	auth, err := opts.Credentials.Authenticator(reg.RegistryStr())
	if err != nil {
		return nil, err
	}

	base := opts.Transport
	if base == nil {
		base = baseTransport(opts.TLSConfig)
	}
	rt := transport.NewLogger(transport.NewUserAgent(base, "buildstate/"+version.Version))

	return &Remote{
		Registry:  reg,
		auth:      auth,
		transport: rt,
		insecure:  reg.Scheme() == "http",
	}, nil
}

// Validate checks every candidate against the registry naming rules so a
// bad token aborts the batch regardless of what the registry holds.
func (r *Remote) Validate(items []candidate.Item) error {
	for _, item := range items {
		if _, err := r.tag(item.Image.Repository, item.Image.Tag); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate performs one token exchange requesting pull access to every
// repository. The returned checker reuses that token for all lookups.
func (r *Remote) Authenticate(ctx context.Context, repositories []string) (ManifestChecker, error) {
	scopes := make([]string, 0, len(repositories))
	for _, repo := range repositories {
		ref, err := r.repository(repo)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, ref.Scope(transport.PullScope))
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("authenticating", "registry", r.Registry.RegistryStr(), "scopes", scopes)
	rt, err := transport.NewWithContext(ctx, r.Registry, r.auth, r.transport, scopes)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAuthentication, r.Registry.RegistryStr(), err)
	}
	return &session{remote: r, transport: rt}, nil
}

func (r *Remote) repository(repo string) (name.Repository, error) {
	ref, err := name.NewRepository(r.Registry.RegistryStr()+"/"+repo, nameOpts(r.insecure)...)
	if err != nil {
		return name.Repository{}, fmt.Errorf("%w: repository %q: %w", ErrInvalidReference, repo, err)
	}
	return ref, nil
}

func (r *Remote) tag(repository, tag string) (name.Tag, error) {
	repo, err := r.repository(repository)
	if err != nil {
		return name.Tag{}, err
	}
	ref, err := name.NewTag(repo.Name()+":"+tag, nameOpts(r.insecure)...)
	if err != nil {
		return name.Tag{}, fmt.Errorf("%w: tag %q of %s: %w", ErrInvalidReference, tag, repository, err)
	}
	return ref, nil
}

// session is an authenticated view of a Remote.
type session struct {
	remote    *Remote
	transport http.RoundTripper
}

// ManifestExists issues a HEAD for repository:tag.
func (s *session) ManifestExists(ctx context.Context, repository, tag string) (bool, error) {
	ref, err := s.remote.tag(repository, tag)
	if err != nil {
		return false, err
	}

	_, err = remote.Head(ref, remote.WithContext(ctx), remote.WithTransport(s.transport))
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking manifest %s: %w", ref, err)
}

// isNotFound reports whether err means the manifest or repository is absent.
func isNotFound(err error) bool {
	var terr *transport.Error
	if !errors.As(err, &terr) {
		return false
	}
	if terr.StatusCode == http.StatusNotFound {
		return true
	}
	for _, d := range terr.Errors {
		if d.Code == transport.ManifestUnknownErrorCode || d.Code == transport.NameUnknownErrorCode {
			return true
		}
	}
	return false
}

func baseTransport(tlsConfig *tls.Config) http.RoundTripper {
	if tlsConfig == nil {
		return remote.DefaultTransport
	}
	t, ok := remote.DefaultTransport.(*http.Transport)
	if !ok {
		t = http.DefaultTransport.(*http.Transport)
	}
	t = t.Clone()
	t.TLSClientConfig = tlsConfig
	return t
}
