package server

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	appserver "opendut-carl/internal/app/server"
	"opendut-carl/internal/application/services"
	"opendut-carl/internal/config"
	"opendut-carl/internal/resources"
)

// Options are the command line options of `carl serve`
type Options struct {
	ConfigPath string
	Memory     bool
	PgURI      string
	GRPCAddr   string
}

// AddFlags registers the options on fs
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigPath, "config", "", "Path to configuration file")
	fs.BoolVar(&o.Memory, "memory", false, "Keep resources in memory only")
	fs.StringVar(&o.PgURI, "pg-uri", "", "PostgreSQL connection URI (enables persistence)")
	fs.StringVar(&o.GRPCAddr, "grpc-addr", "", "gRPC server address (overrides config)")
}

// Config loads the configuration and applies the command line overrides
func (o *Options) Config() (*config.Config, error) {
	if o.Memory && o.PgURI != "" {
		return nil, errors.New("--memory and --pg-uri are mutually exclusive")
	}

	cfg, err := config.NewConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	switch {
	case o.Memory:
		cfg.Persistence.Enabled = false
	case o.PgURI != "":
		cfg.Persistence.Enabled = true
		cfg.Persistence.Database.URI = o.PgURI
	}
	if o.GRPCAddr != "" {
		cfg.Settings.GRPCAddr = o.GRPCAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "configuration validation failed")
	}
	return cfg, nil
}

// NewCommandCarl creates the root command of CARL
func NewCommandCarl(ctx context.Context) *cobra.Command {
	root := &cobra.Command{
		Use:           "carl",
		Short:         "CARL manages peers and clusters of an openDuT installation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewCommandServe(ctx))
	return root
}

// NewCommandServe creates the command starting the CARL server
func NewCommandServe(ctx context.Context) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Launch the CARL server",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return err
			}
			return Run(ctx, cfg, newLogger(cfg.Log.Level))
		},
	}

	opts.AddFlags(cmd.Flags())
	// klog flags (-v, --logtostderr, ...)
	cmd.Flags().AddGoFlagSet(flag.CommandLine)

	return cmd
}

// Run serves CARL until ctx is done
func Run(ctx context.Context, cfg *config.Config, logger logr.Logger) error {
	klog.Infof("Starting %s %s", cfg.App.Name, cfg.App.Version)

	manager, err := Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(context.Background()); err != nil {
			klog.Errorf("Failed to close resource store: %v", err)
		}
	}()

	unsubscribe := manager.Subscribe(func(changes resources.ChangeSet) {
		logger.V(1).Info("resources changed", "changes", len(changes), "kinds", changes.Kinds())
	})
	defer unsubscribe()

	svc := appserver.Services{
		Peers:    services.NewPeerService(manager),
		Clusters: services.NewClusterService(manager),
	}
	srv, err := appserver.SetupServer(cfg, manager, svc, logger)
	if err != nil {
		return errors.WithMessage(err, "failed to setup server")
	}

	lis, err := net.Listen("tcp", cfg.Settings.GRPCAddr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	return srv.Serve(ctx, lis)
}

// Connect creates the resource manager, retrying while the backend is unreachable
func Connect(ctx context.Context, cfg *config.Config, logger logr.Logger) (*resources.Manager, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.Startup.InitialInterval
	policy.MaxElapsedTime = cfg.Startup.MaxElapsed

	var attempt int
	connect := func() (*resources.Manager, error) {
		attempt++
		manager, err := resources.Create(ctx, cfg.Persistence, logger)
		if err == nil {
			return manager, nil
		}
		var connErr *resources.ConnectionError
		if !errors.As(err, &connErr) {
			return nil, backoff.Permanent(err)
		}
		klog.Warningf("Connecting %s storage failed (attempt %d): %v", connErr.Backend, attempt, connErr.Cause)
		return nil, err
	}

	manager, err := backoff.RetryWithData(connect,
		backoff.WithContext(backoff.WithMaxRetries(policy, cfg.Startup.ConnectRetries), ctx))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create resource store")
	}
	klog.Infof("Resource store ready (backend: %s)", manager.Backend())
	return manager, nil
}

func newLogger(level string) logr.Logger {
	switch strings.ToLower(level) {
	case "trace":
		stdr.SetVerbosity(2)
	case "debug":
		stdr.SetVerbosity(1)
	default:
		stdr.SetVerbosity(0)
	}
	return stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("carl")
}
