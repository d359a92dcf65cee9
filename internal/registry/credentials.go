package registry

import (
	"bytes"
	"fmt"

	"github.com/docker/cli/cli/config"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
)

// Credentials are the sources a registry login may be drawn from.
type Credentials struct {
	// Username and Password override everything else when both are set.
	Username string
	Password string

	// ConfigFile holds the raw contents of a docker config.json. Optional.
	ConfigFile []byte
}

// Authenticator picks the credentials to present to registryHost: the
// username/password pair first, then the matching entry of the config file,
// then anonymous access.
func (c Credentials) Authenticator(registryHost string) (authn.Authenticator, error) {
	if c.Username != "" && c.Password != "" {
		return &authn.Basic{Username: c.Username, Password: c.Password}, nil
	}
	if len(c.ConfigFile) == 0 {
		return authn.Anonymous, nil
	}

	cf, err := config.LoadFromReader(bytes.NewReader(c.ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("parsing docker config: %w", err)
	}

	// Docker Hub entries are keyed by the legacy index URL.
	key := registryHost
	if registryHost == name.DefaultRegistry {
		key = authn.DefaultAuthKey
	}
	ac, err := cf.GetAuthConfig(key)
	if err != nil {
		return nil, fmt.Errorf("reading credentials for registry %s: %w", registryHost, err)
	}

	cfg := authn.AuthConfig{
		Username:      ac.Username,
		Password:      ac.Password,
		Auth:          ac.Auth,
		IdentityToken: ac.IdentityToken,
		RegistryToken: ac.RegistryToken,
	}
	if cfg == (authn.AuthConfig{}) {
		return authn.Anonymous, nil
	}
	return authn.FromConfig(cfg), nil
}
