// Package postgres implements the domain repositories, the outbox store and
// the transaction port on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	// queryTimeout bounds every repository call so a stalled database cannot
	// block a caller indefinitely.
	queryTimeout = 5 * time.Second
)

var (
	credentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	passwordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
	dbNamePattern      = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// Connection manages the primary/replica database pair. Reads go through the
// resolver; transactions always run on the primary.
type Connection struct {
	ConnectionStringPrimary string
	ConnectionStringReplica string
	DatabaseName            string
	MigrationsPath          string
	Logger                  log.Logger
	MaxOpenConnections      int
	MaxIdleConnections      int

	mu       sync.RWMutex
	resolver dbresolver.DB
	primary  *sql.DB
}

func (conn *Connection) initDefaults() {
	if conn.Logger == nil {
		conn.Logger = log.NewNop()
	}

	if conn.MaxOpenConnections <= 0 {
		conn.MaxOpenConnections = defaultMaxOpenConns
	}

	if conn.MaxIdleConnections <= 0 {
		conn.MaxIdleConnections = defaultMaxIdleConns
	}
}

// Connect opens the primary and replica pools, runs pending migrations on the
// primary and verifies connectivity.
func (conn *Connection) Connect(ctx context.Context) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.initDefaults()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled before database connection: %w", err)
	}

	conn.Logger.Log(ctx, log.LevelInfo, "connecting to primary and replica databases")

	primary, err := sql.Open("pgx", conn.ConnectionStringPrimary)
	if err != nil {
		return fmt.Errorf("open primary database: %s", sanitizeConnError(err))
	}

	var success bool

	defer func() {
		if !success {
			primary.Close()
		}
	}()

	tunePool(primary, conn.MaxOpenConnections, conn.MaxIdleConnections)

	replicaDSN := conn.ConnectionStringReplica
	if replicaDSN == "" {
		replicaDSN = conn.ConnectionStringPrimary
	}

	replica, err := sql.Open("pgx", replicaDSN)
	if err != nil {
		return fmt.Errorf("open replica database: %s", sanitizeConnError(err))
	}

	defer func() {
		if !success {
			replica.Close()
		}
	}()

	tunePool(replica, conn.MaxOpenConnections, conn.MaxIdleConnections)

	resolver := dbresolver.New(
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithReplicaDBs(replica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	if conn.MigrationsPath != "" {
		if err := conn.runMigrations(ctx, primary); err != nil {
			return err
		}
	}

	if err := resolver.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	conn.resolver = resolver
	conn.primary = primary

	conn.Logger.Log(ctx, log.LevelInfo, "connected to postgres")

	success = true

	return nil
}

// Close releases database connection resources.
func (conn *Connection) Close() error {
	conn.mu.Lock()
	defer conn.mu.Unlock()

	if conn.resolver == nil {
		return nil
	}

	err := conn.resolver.Close()
	conn.resolver = nil
	conn.primary = nil

	return err
}

func tunePool(db *sql.DB, maxOpen, maxIdle int) {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
}

func (conn *Connection) runMigrations(ctx context.Context, primary *sql.DB) error {
	if !dbNamePattern.MatchString(conn.DatabaseName) {
		return fmt.Errorf("invalid database name: %q", conn.DatabaseName)
	}

	absPath, err := filepath.Abs(filepath.Clean(conn.MigrationsPath))
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}

	sourceURL := url.URL{Scheme: "file", Path: filepath.ToSlash(absPath)}

	driver, err := migratepg.WithInstance(primary, &migratepg.Config{
		DatabaseName: conn.DatabaseName,
		SchemaName:   "public",
	})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(sourceURL.String(), conn.DatabaseName, driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			conn.Logger.Log(ctx, log.LevelInfo, "no new migrations found")

			return nil
		}

		return fmt.Errorf("migration failed: %w", err)
	}

	conn.Logger.Log(ctx, log.LevelInfo, "migrations applied")

	return nil
}

func sanitizeConnError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := credentialsPattern.ReplaceAllString(err.Error(), "://***@")

	return passwordPattern.ReplaceAllString(sanitized, "${1}***")
}
