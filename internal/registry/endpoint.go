package registry

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// ParseEndpoint turns a registry endpoint into a name.Registry. A scheme is
// optional; "http://" forces plain HTTP the same way insecure does.
//
// Examples:
//
//	ParseEndpoint("registry.example.com", false)        → https
//	ParseEndpoint("registry.internal:5000", true)       → http
//	ParseEndpoint("http://registry.internal:5000", false) → http
func ParseEndpoint(endpoint string, insecure bool) (name.Registry, error) {
	host := strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	switch {
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
		insecure = true
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
	}

	if host == "" {
		return name.Registry{}, fmt.Errorf("registry endpoint is empty")
	}
	if strings.Contains(host, "/") {
		return name.Registry{}, fmt.Errorf("registry endpoint %q must not contain a path", endpoint)
	}

	reg, err := name.NewRegistry(host, nameOpts(insecure)...)
	if err != nil {
		return name.Registry{}, fmt.Errorf("parsing registry endpoint %q: %w", endpoint, err)
	}
	return reg, nil
}

func nameOpts(insecure bool) []name.Option {
	opts := []name.Option{name.StrictValidation}
	if insecure {
		opts = append(opts, name.Insecure)
	}
	return opts
}
