package probe

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/buildstate/internal/registry"
)

// FakeRegistry implements registry.Authenticator and registry.ManifestChecker
// for testing. It records every call.
type FakeRegistry struct {
	mu       sync.Mutex
	images   map[string]bool
	failing  map[string]error
	AuthErr  error
	authArgs [][]string
	checked  []string
}

// NewFakeRegistry creates a fake holding the given "repository:tag" images.
func NewFakeRegistry(images ...string) *FakeRegistry {
	f := &FakeRegistry{
		images:  make(map[string]bool),
		failing: make(map[string]error),
	}
	for _, img := range images {
		f.images[img] = true
	}
	return f
}

// FailOn makes the existence check for "repository:tag" return err.
func (f *FakeRegistry) FailOn(image string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[image] = err
}

// Authenticate records the requested repositories.
func (f *FakeRegistry) Authenticate(_ context.Context, repositories []string) (registry.ManifestChecker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authArgs = append(f.authArgs, append([]string(nil), repositories...))
	if f.AuthErr != nil {
		return nil, fmt.Errorf("%w: %w", registry.ErrAuthentication, f.AuthErr)
	}
	return f, nil
}

// ManifestExists records the check and answers from the stored images.
func (f *FakeRegistry) ManifestExists(_ context.Context, repository, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	image := repository + ":" + tag
	f.checked = append(f.checked, image)
	if err, ok := f.failing[image]; ok {
		return false, err
	}
	return f.images[image], nil
}

// AuthCalls returns the repository sets passed to Authenticate.
func (f *FakeRegistry) AuthCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authArgs
}

// Checked returns the images checked, in order.
func (f *FakeRegistry) Checked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checked...)
}
