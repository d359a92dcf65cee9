package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/ppiankov/buildstate/internal/candidate"
	"github.com/ppiankov/buildstate/internal/metrics"
	"github.com/ppiankov/buildstate/internal/registry"
)

// ErrNoCandidates is returned when FindFirst is called with an empty list.
var ErrNoCandidates = errors.New("no candidates to probe")

// Prober finds the first candidate that already exists on a registry.
type Prober struct {
	Auth    registry.Authenticator
	Metrics *metrics.Counters
}

// NewProber creates a Prober. m may be nil.
func NewProber(auth registry.Authenticator, m *metrics.Counters) *Prober {
	return &Prober{Auth: auth, Metrics: m}
}

// FindFirst authenticates once for every repository in items, then checks
// items strictly in order and returns the first one whose manifest exists.
// It stops at the first hit. found is false when no item exists. Any auth or
// transport error aborts the run.
func (p *Prober) FindFirst(ctx context.Context, items []candidate.Item) (candidate.Item, bool, error) {
	logger := logr.FromContextOrDiscard(ctx).WithName("probe")
	if len(items) == 0 {
		return candidate.Item{}, false, ErrNoCandidates
	}

	repos := candidate.Repositories(items)
	checker, err := p.Auth.Authenticate(ctx, repos)
	p.Metrics.RecordAuth(err != nil)
	if err != nil {
		return candidate.Item{}, false, fmt.Errorf("authenticating for %d repositories: %w", len(repos), err)
	}
	logger.V(1).Info("authenticated", "repositories", repos)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return candidate.Item{}, false, err
		}

		exists, err := checker.ManifestExists(ctx, item.Image.Repository, item.Image.Tag)
		if err != nil {
			p.Metrics.RecordProbeError()
			return candidate.Item{}, false, fmt.Errorf("probing %s: %w", item.Image, err)
		}
		if exists {
			p.Metrics.RecordHit()
			logger.V(1).Info("found", "index", i, "image", item.Image.String(), "name", item.Name())
			return item, true, nil
		}
		p.Metrics.RecordMiss()
		logger.V(1).Info("absent", "index", i, "image", item.Image.String())
	}

	logger.V(1).Info("exhausted", "candidates", len(items))
	return candidate.Item{}, false, nil
}
