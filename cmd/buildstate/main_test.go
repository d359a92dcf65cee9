package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/ppiankov/buildstate/internal/candidate"
	"github.com/ppiankov/buildstate/internal/config"
	internalregistry "github.com/ppiankov/buildstate/internal/registry"
)

// startRegistry runs an in-memory registry seeded with refs.
func startRegistry(t *testing.T, refs ...string) string {
	t.Helper()
	srv := httptest.NewServer(registry.New())
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	for _, ref := range refs {
		img, err := random.Image(256, 1)
		if err != nil {
			t.Fatal(err)
		}
		tag, err := name.NewTag(host+"/"+ref, name.Insecure)
		if err != nil {
			t.Fatal(err)
		}
		if err := remote.Write(tag, img); err != nil {
			t.Fatalf("seeding %s: %v", ref, err)
		}
	}
	return host
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")

	var stdout, stderr bytes.Buffer
	root, err := newRootCmd()
	if err != nil {
		t.Fatalf("building command: %v", err)
	}
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestQueryRegistry_FixedRepository(t *testing.T) {
	host := startRegistry(t, "myrepo:v2")

	out, err := execute(t, "query-registry", "--insecure", "-r", host, "myrepo", "v1", "v2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "myrepo:v2" {
		t.Errorf("expected %q without newline, got %q", "myrepo:v2", out)
	}
}

func TestQueryRegistry_NoMatch(t *testing.T) {
	host := startRegistry(t)

	out, err := execute(t, "query-registry", "-r", "http://"+host, "a:1", "b:2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestQueryRegistry_Alias(t *testing.T) {
	host := startRegistry(t, "myrepo:v1", "myrepo:v2")

	out, err := execute(t, "query-registry", "-r", "http://"+host, "alias1=myrepo:v1", "alias2=myrepo:v2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "alias1" {
		t.Errorf("expected alias1, got %q", out)
	}
}

func TestQueryRegistry_ParseError(t *testing.T) {
	out, err := execute(t, "query-registry", "-r", "registry.invalid", "myrepo", "tag=with:colon")
	if !errors.Is(err, candidate.ErrRepositoryOverride) {
		t.Fatalf("expected ErrRepositoryOverride, got %v", err)
	}
	if !strings.Contains(err.Error(), "tag=with:colon") {
		t.Errorf("expected error to name the token, got %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestQueryRegistry_NoImages(t *testing.T) {
	_, err := execute(t, "query-registry", "-r", "registry.invalid")
	if !errors.Is(err, candidate.ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestQueryRegistry_RepositoryWithoutTags(t *testing.T) {
	out, err := execute(t, "query-registry", "-r", "registry.invalid", "myrepo")
	if err != nil {
		t.Fatalf("expected success for a repository without tags, got %v", err)
	}
	if out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestQueryRegistry_InvalidTagBeforeNetwork(t *testing.T) {
	inner := registry.New()
	seed := httptest.NewServer(inner)
	defer seed.Close()
	img, err := random.Image(256, 1)
	if err != nil {
		t.Fatal(err)
	}
	tag, err := name.NewTag(strings.TrimPrefix(seed.URL, "http://")+"/myrepo:v1", name.Insecure)
	if err != nil {
		t.Fatal(err)
	}
	if err := remote.Write(tag, img); err != nil {
		t.Fatal(err)
	}

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		inner.ServeHTTP(w, r)
	}))
	defer srv.Close()

	out, err := execute(t, "query-registry", "-r", srv.URL, "myrepo", "v0", "v+2", "v1")
	if !errors.Is(err, internalregistry.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("expected no registry requests, got %d", n)
	}
}

func TestQueryRegistry_RegistryRequired(t *testing.T) {
	t.Setenv("BUILDSTATE_REGISTRY", "")
	_, err := execute(t, "query-registry", "myrepo:v1")
	if err == nil || !strings.Contains(err.Error(), "registry is required") {
		t.Fatalf("expected missing registry error, got %v", err)
	}
}

func TestQueryRegistry_RegistryFromEnv(t *testing.T) {
	host := startRegistry(t, "app:abc")
	t.Setenv("BUILDSTATE_REGISTRY", "http://"+host)

	out, err := execute(t, "query-registry", "app:abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "app:abc" {
		t.Errorf("expected app:abc, got %q", out)
	}
}

func TestQueryRegistry_MissingDockerConfig(t *testing.T) {
	_, err := execute(t, "query-registry", "-r", "registry.invalid", "-c", filepath.Join(t.TempDir(), "missing.json"), "a:1")
	if err == nil || !strings.Contains(err.Error(), "reading docker config") {
		t.Fatalf("expected docker config error, got %v", err)
	}
}

func TestQueryRegistry_MetricsFile(t *testing.T) {
	host := startRegistry(t, "myrepo:v2")
	path := filepath.Join(t.TempDir(), "buildstate.prom")

	if _, err := execute(t, "query-registry", "-r", "http://"+host, "--metrics-file", path, "myrepo", "v1", "v2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "buildstate_manifest_checks_total 2") {
		t.Errorf("expected 2 manifest checks in metrics, got:\n%s", data)
	}
}

func TestQueryRegistry_Unreachable(t *testing.T) {
	srv := httptest.NewServer(registry.New())
	host := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	out, err := execute(t, "query-registry", "-r", "http://"+host, "myrepo:v1")
	if err == nil {
		t.Fatal("expected error for unreachable registry")
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"cancelled", context.Canceled, exitCancelled},
		{"wrapped cancel", fmt.Errorf("probing myrepo:v1: %w", context.Canceled), exitCancelled},
		{"deadline", context.DeadlineExceeded, 1},
		{"plain error", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRegistryOptions_BasicAuth(t *testing.T) {
	cfg := config.New()
	cfg.Username = "ci"
	opts, err := registryOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Credentials.Username != "" || opts.Credentials.Password != "" {
		t.Errorf("expected incomplete credentials to be dropped, got %+v", opts.Credentials)
	}

	cfg.Password = "s3cret"
	opts, err = registryOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Credentials.Username != "ci" || opts.Credentials.Password != "s3cret" {
		t.Errorf("expected basic credentials, got %+v", opts.Credentials)
	}
}
