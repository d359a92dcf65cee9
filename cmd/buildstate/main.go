package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/buildstate/internal/candidate"
	"github.com/ppiankov/buildstate/internal/config"
	"github.com/ppiankov/buildstate/internal/metrics"
	"github.com/ppiankov/buildstate/internal/probe"
	"github.com/ppiankov/buildstate/internal/registry"
	"github.com/ppiankov/buildstate/internal/tlsutil"
	"github.com/ppiankov/buildstate/internal/version"
)

// exitCancelled is returned when the run is interrupted by a signal.
const exitCancelled = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	} else {
		err = root.ExecuteContext(ctx)
	}
	stop()
	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}

// exitCode maps the command result to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return 1
	}
}

func newRootCmd() (*cobra.Command, error) {
	root := &cobra.Command{
		Use:          "buildstate",
		Short:        "Check a container registry for previously built images",
		Version:      version.Version,
		SilenceUsage: true,
	}

	query, err := newQueryRegistryCmd()
	if err != nil {
		return nil, err
	}
	root.AddCommand(query)

	return root, nil
}

func newQueryRegistryCmd() (*cobra.Command, error) {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "query-registry [flags] IMAGE...",
		Short: "Print the first candidate image that exists on the registry",
		Long: `Print the first candidate image that exists on the registry.

Candidates are either all full references, optionally aliased:

  buildstate query-registry -r registry.example.com app:abc123 latest=app:main

or a repository followed by bare tags, optionally aliased:

  buildstate query-registry -r registry.example.com app abc123 latest=main

Candidates are checked in order and the first existing one is printed without
a trailing newline. Nothing is printed when none exist.

Credentials are taken from ` + config.EnvUsername + `/` + config.EnvPassword + ` when both are set,
otherwise from the docker config given with --docker-config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runQuery(cmd.Context(), cfg, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	defaults := config.New()
	cmd.Flags().StringP("registry", "r", "", "registry host, optionally with scheme and port (required)")
	cmd.Flags().StringP("docker-config", "c", "", "path to a docker config.json holding registry credentials")
	cmd.Flags().Bool("insecure", false, "allow plain HTTP connections to the registry")
	cmd.Flags().String("ca-file", "", "path to a CA certificate bundle trusted for the registry")
	cmd.Flags().String("client-cert", "", "path to a client certificate for mutual TLS")
	cmd.Flags().String("client-key", "", "path to the client certificate's private key")
	cmd.Flags().Duration("timeout", defaults.Timeout, "deadline for the whole query (0 = none)")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this file after the run")
	cmd.Flags().BoolP("verbose", "v", false, "enable debug logging on stderr")

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("username", config.EnvUsername); err != nil {
		return nil, fmt.Errorf("binding %s: %w", config.EnvUsername, err)
	}
	if err := v.BindEnv("password", config.EnvPassword); err != nil {
		return nil, fmt.Errorf("binding %s: %w", config.EnvPassword, err)
	}

	return cmd, nil
}

func loadConfig(v *viper.Viper) config.Config {
	cfg := config.New()
	cfg.Registry = v.GetString("registry")
	cfg.DockerConfig = v.GetString("docker-config")
	cfg.Username = v.GetString("username")
	cfg.Password = v.GetString("password")
	cfg.Insecure = v.GetBool("insecure")
	cfg.CAFile = v.GetString("ca-file")
	cfg.ClientCert = v.GetString("client-cert")
	cfg.ClientKey = v.GetString("client-key")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.MetricsFile = v.GetString("metrics-file")
	cfg.Verbose = v.GetBool("verbose")
	return cfg
}

func runQuery(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	logger, flush := newLogger(stderr, cfg.Verbose)
	defer flush()
	logger = logger.WithValues("run", uuid.NewString())
	ctx = logr.NewContext(ctx, logger)

	items, err := candidate.Parse(args)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		logger.V(1).Info("no candidates to check")
		return nil
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	opts, err := registryOptions(cfg)
	if err != nil {
		return err
	}
	remote, err := registry.New(cfg.Registry, opts)
	if err != nil {
		return err
	}
	if err := remote.Validate(items); err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	m := metrics.NewCounters(promReg)
	if cfg.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.MetricsFile, promReg); err != nil {
				logger.Error(err, "failed to write metrics")
			}
		}()
	}

	logger.V(1).Info("querying registry", "registry", remote.Registry.RegistryStr(), "candidates", len(items))
	item, found, err := probe.NewProber(remote, m).FindFirst(ctx, items)
	if err != nil {
		return err
	}
	if !found {
		logger.V(1).Info("no candidate exists")
		return nil
	}

	if _, err := io.WriteString(stdout, item.Name()); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func registryOptions(cfg config.Config) (registry.Options, error) {
	opts := registry.Options{Insecure: cfg.Insecure}
	if cfg.HasBasicAuth() {
		opts.Credentials.Username = cfg.Username
		opts.Credentials.Password = cfg.Password
	}

	if cfg.DockerConfig != "" {
		data, err := os.ReadFile(cfg.DockerConfig)
		if err != nil {
			return registry.Options{}, fmt.Errorf("reading docker config: %w", err)
		}
		opts.Credentials.ConfigFile = data
	}

	if cfg.TLSEnabled() {
		tlsConfig, err := tlsutil.ClientConfig(cfg.CAFile, cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return registry.Options{}, fmt.Errorf("loading TLS configuration: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	return opts, nil
}
