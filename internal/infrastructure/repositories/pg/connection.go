package pg

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ConnectionConfig holds PostgreSQL connection configuration
type ConnectionConfig struct {
	URI             string        `yaml:"url" env:"CARL_DATABASE_URL"`
	MaxConns        int32         `yaml:"max-conns" env:"CARL_DATABASE_MAX_CONNS"`
	MinConns        int32         `yaml:"min-conns" env:"CARL_DATABASE_MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max-conn-lifetime" env:"CARL_DATABASE_MAX_CONN_LIFETIME"`
	MaxConnIdleTime time.Duration `yaml:"max-conn-idle-time" env:"CARL_DATABASE_MAX_CONN_IDLE_TIME"`
	HealthInterval  time.Duration `yaml:"health-interval" env:"CARL_DATABASE_HEALTH_INTERVAL"`
	HealthTimeout   time.Duration `yaml:"health-timeout" env:"CARL_DATABASE_HEALTH_TIMEOUT"`
	Migrate         bool          `yaml:"migrate" env:"CARL_DATABASE_MIGRATE"`
}

// DefaultConnectionConfig returns production-ready defaults
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		HealthInterval:  30 * time.Second,
		HealthTimeout:   5 * time.Second,
		Migrate:         true,
	}
}

// ConnectionManager manages PostgreSQL connections with health monitoring
type ConnectionManager struct {
	config ConnectionConfig
	logger logr.Logger
	pool   atomic.Pointer[pgxpool.Pool]

	// Health monitoring
	stopHealth chan struct{}
	stopOnce   sync.Once
	isHealthy  atomic.Bool
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager(config ConnectionConfig, logger logr.Logger) *ConnectionManager {
	cm := &ConnectionManager{
		config:     config,
		logger:     logger.WithName("pg"),
		stopHealth: make(chan struct{}),
	}
	cm.isHealthy.Store(false)
	return cm
}

// Connect establishes the database connection with health monitoring
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(cm.config.URI)
	if err != nil {
		return errors.Wrap(err, "failed to parse connection URI")
	}

	poolConfig.MaxConns = cm.config.MaxConns
	poolConfig.MinConns = cm.config.MinConns
	poolConfig.MaxConnLifetime = cm.config.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cm.config.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cm.healthInterval()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return errors.Wrap(err, "failed to create connection pool")
	}

	// Ping releases its connection before returning, so Close cannot block on it
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return errors.Wrap(err, "failed to ping database")
	}

	cm.pool.Store(pool)
	cm.isHealthy.Store(true)
	cm.logger.Info("PostgreSQL connection established",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"maxConns", poolConfig.MaxConns)

	cm.startHealthMonitoring()
	return nil
}

// Close closes the connection pool and stops health monitoring
func (cm *ConnectionManager) Close() error {
	cm.stopOnce.Do(func() {
		close(cm.stopHealth)
	})

	if pool := cm.pool.Load(); pool != nil {
		pool.Close()
		cm.pool.Store(nil)
	}

	cm.isHealthy.Store(false)
	return nil
}

// Pool returns the current connection pool
func (cm *ConnectionManager) Pool() *pgxpool.Pool {
	return cm.pool.Load()
}

// IsHealthy returns the current health status
func (cm *ConnectionManager) IsHealthy() bool {
	return cm.isHealthy.Load()
}

// BeginTx starts a new transaction with the given options
func (cm *ConnectionManager) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	pool := cm.Pool()
	if pool == nil {
		return nil, errors.New("connection pool not initialized")
	}
	return pool.BeginTx(ctx, opts)
}

func (cm *ConnectionManager) healthInterval() time.Duration {
	if cm.config.HealthInterval <= 0 {
		return 30 * time.Second
	}
	return cm.config.HealthInterval
}

// startHealthMonitoring starts the health check routine
func (cm *ConnectionManager) startHealthMonitoring() {
	ticker := time.NewTicker(cm.healthInterval())

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cm.performHealthCheck()
			case <-cm.stopHealth:
				return
			}
		}
	}()
}

// performHealthCheck checks database connectivity
func (cm *ConnectionManager) performHealthCheck() {
	pool := cm.Pool()
	if pool == nil {
		cm.isHealthy.Store(false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.HealthTimeout)
	defer cancel()

	err := pool.Ping(ctx)
	wasHealthy := cm.isHealthy.Swap(err == nil)
	switch {
	case err != nil && wasHealthy:
		cm.logger.Error(err, "PostgreSQL health check failed")
	case err == nil && !wasHealthy:
		cm.logger.Info("PostgreSQL connection recovered")
	}
}

// HealthStatus returns detailed health information
func (cm *ConnectionManager) HealthStatus() HealthStatus {
	pool := cm.Pool()
	if pool == nil {
		return HealthStatus{
			IsHealthy: false,
			Error:     "connection pool not initialized",
			CheckedAt: time.Now(),
		}
	}

	stat := pool.Stat()
	return HealthStatus{
		IsHealthy:     cm.IsHealthy(),
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		CheckedAt:     time.Now(),
	}
}

// HealthStatus provides detailed connection pool health information
type HealthStatus struct {
	IsHealthy     bool      `json:"isHealthy"`
	TotalConns    int32     `json:"totalConns"`
	IdleConns     int32     `json:"idleConns"`
	AcquiredConns int32     `json:"acquiredConns"`
	Error         string    `json:"error,omitempty"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// String returns a human-readable health status
func (hs HealthStatus) String() string {
	status := "HEALTHY"
	if !hs.IsHealthy {
		status = "UNHEALTHY"
	}

	return fmt.Sprintf("PostgreSQL: %s (total:%d, idle:%d, acquired:%d) at %s",
		status, hs.TotalConns, hs.IdleConns, hs.AcquiredConns,
		hs.CheckedAt.Format(time.RFC3339))
}
