package config

import (
	"fmt"
	"time"
)

const (
	// EnvUsername holds the registry username. Read once at startup.
	EnvUsername = "REGISTRY_CRED_USR"

	// EnvPassword holds the registry password. Read once at startup.
	EnvPassword = "REGISTRY_CRED_PSW"

	// EnvPrefix prefixes environment overrides for flags, e.g. BUILDSTATE_REGISTRY.
	EnvPrefix = "BUILDSTATE"

	// DefaultTimeout bounds a whole query-registry run.
	DefaultTimeout = 2 * time.Minute
)

// Config holds runtime configuration for a query-registry run.
type Config struct {
	// Registry is the registry endpoint, optionally with scheme and port.
	Registry string

	// DockerConfig is the path to a docker config.json with credentials.
	DockerConfig string

	// Username and Password are the basic-auth override. Both must be set
	// to take effect.
	Username string
	Password string

	// Insecure allows plain HTTP connections to the registry.
	Insecure bool

	// CAFile, ClientCert and ClientKey configure TLS towards the registry.
	CAFile     string
	ClientCert string
	ClientKey  string

	// Timeout bounds the whole run. 0 means no deadline.
	Timeout time.Duration

	// MetricsFile receives Prometheus metrics in text format. Empty disables.
	MetricsFile string

	// Verbose enables debug logging.
	Verbose bool
}

// New creates a Config with default values.
func New() Config {
	return Config{
		Timeout: DefaultTimeout,
	}
}

// Validate checks the configuration before any network activity.
func (c Config) Validate() error {
	if c.Registry == "" {
		return fmt.Errorf("registry is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return ValidateTLSFlags(c.ClientCert, c.ClientKey)
}

// HasBasicAuth reports whether the username/password override is complete.
func (c Config) HasBasicAuth() bool {
	return c.Username != "" && c.Password != ""
}

// TLSEnabled returns true when any custom TLS material is configured.
func (c Config) TLSEnabled() bool {
	return c.CAFile != "" || (c.ClientCert != "" && c.ClientKey != "")
}

// ValidateTLSFlags requires the client certificate and key to be set together.
func ValidateTLSFlags(cert, key string) error {
	if (cert == "") != (key == "") {
		return fmt.Errorf("client certificate and key must be set together")
	}
	return nil
}
