package config

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"opendut-carl/internal/infrastructure/repositories"
	"opendut-carl/internal/infrastructure/repositories/pg"
)

// Authentication types
const (
	AuthnTypeNone = "none"
	AuthnTypeTLS  = "tls"
)

// Client certificate verification modes
const (
	VerifyModeSkip          = "skip"
	VerifyModeCertsRequired = "certs-required"
	VerifyModeVerify        = "verify"
)

type (
	// Config is the configuration of CARL
	Config struct {
		App         `yaml:"app"`
		Settings    `yaml:"settings"`
		Log         `yaml:"logger"`
		Authn       `yaml:"authn"`
		Persistence repositories.PersistenceOptions `yaml:"persistence"`
		Startup     Startup                         `yaml:"startup"`
	}

	// App describes the running application
	App struct {
		Name    string `yaml:"name" env:"APP_NAME"`
		Version string `yaml:"version" env:"APP_VERSION"`
	}

	// Log configures logging
	Log struct {
		Level string `yaml:"log-level" env:"LOG_LEVEL"`
	}

	// Settings configures the network endpoints
	Settings struct {
		GRPCAddr  string  `yaml:"grpc-addr" env:"GRPC_ADDR"`
		RateLimit float64 `yaml:"rate-limit" env:"GRPC_RATE_LIMIT"`
		RateBurst int     `yaml:"rate-burst" env:"GRPC_RATE_BURST"`
	}

	// Authn configures transport security of the gRPC endpoint
	Authn struct {
		Type string   `yaml:"type" env:"AUTHN_TYPE"`
		TLS  TLSAuthn `yaml:"tls"`
	}

	// TLSAuthn holds the server certificate
	TLSAuthn struct {
		KeyFile  string    `yaml:"key-file" env:"TLS_KEY_FILE"`
		CertFile string    `yaml:"cert-file" env:"TLS_CERT_FILE"`
		Client   TLSClient `yaml:"client"`
	}

	// TLSClient configures verification of client certificates
	TLSClient struct {
		Verify  string   `yaml:"verify" env:"TLS_CLIENT_VERIFY"`
		CAFiles []string `yaml:"ca-files" env:"TLS_CLIENT_CA_FILES"`
	}

	// Startup controls how often connecting the resource store is retried
	Startup struct {
		ConnectRetries  uint64        `yaml:"connect-retries" env:"STARTUP_CONNECT_RETRIES"`
		InitialInterval time.Duration `yaml:"initial-interval" env:"STARTUP_INITIAL_INTERVAL"`
		MaxElapsed      time.Duration `yaml:"max-elapsed" env:"STARTUP_MAX_ELAPSED"`
	}
)

// NewConfig loads the configuration from path (if given) and the environment
func NewConfig(path string) (*Config, error) {
	cfg := &Config{}

	cfg.App.Name = "opendut-carl"
	cfg.App.Version = "v1.0.0"
	cfg.Log.Level = "info"
	cfg.Settings.GRPCAddr = ":8080"
	cfg.Settings.RateLimit = 100
	cfg.Settings.RateBurst = 200
	cfg.Authn.Type = AuthnTypeNone
	cfg.Authn.TLS.Client.Verify = VerifyModeSkip
	cfg.Persistence = repositories.Disabled()
	cfg.Persistence.Database = pg.DefaultConnectionConfig()
	cfg.Startup.ConnectRetries = 10
	cfg.Startup.InitialInterval = 500 * time.Millisecond
	cfg.Startup.MaxElapsed = 2 * time.Minute

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, errors.Wrap(err, "config error")
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "config error")
	}

	return cfg, nil
}

// GetTransportCredentials returns the gRPC server credentials for the configuration
func (c *Config) GetTransportCredentials() (credentials.TransportCredentials, error) {
	switch c.Authn.Type {
	case "", AuthnTypeNone:
		return insecure.NewCredentials(), nil

	case AuthnTypeTLS:
		cert, err := tls.LoadX509KeyPair(c.Authn.TLS.CertFile, c.Authn.TLS.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load server certificate")
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}

		switch c.Authn.TLS.Client.Verify {
		case "", VerifyModeSkip:
			tlsConfig.ClientAuth = tls.NoClientCert
		case VerifyModeCertsRequired:
			tlsConfig.ClientAuth = tls.RequireAnyClientCert
		case VerifyModeVerify:
			if len(c.Authn.TLS.Client.CAFiles) == 0 {
				return nil, errors.New("CA certificates are required for verify mode")
			}
			pool, err := loadCertPool(c.Authn.TLS.Client.CAFiles)
			if err != nil {
				return nil, err
			}
			tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
			tlsConfig.ClientCAs = pool
		default:
			return nil, errors.Errorf("unknown client verify mode: %s", c.Authn.TLS.Client.Verify)
		}
		return credentials.NewTLS(tlsConfig), nil

	default:
		return nil, errors.Errorf("unknown authentication type: %s", c.Authn.Type)
	}
}

func loadCertPool(files []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, file := range files {
		pem, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read CA certificate %s", file)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("failed to add CA certificate %s to pool", file)
		}
	}
	return pool, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Settings.GRPCAddr == "" {
		return errors.New("gRPC address is required")
	}
	if c.Settings.RateLimit < 0 || c.Settings.RateBurst < 0 {
		return errors.New("rate limit and burst must not be negative")
	}
	if err := c.Persistence.Validate(); err != nil {
		return errors.WithMessage(err, "persistence config validation failed")
	}
	if c.Startup.MaxElapsed < 0 || c.Startup.InitialInterval < 0 {
		return errors.New("startup intervals must not be negative")
	}
	return nil
}
