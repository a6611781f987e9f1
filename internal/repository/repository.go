package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

var (
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	ErrSessionNotFound        = errors.New("checkout session not found")
	ErrDuplicateCheckout      = errors.New("checkout for this idempotency key already exists")
	ErrStaleSession           = errors.New("checkout session was changed by another request")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a message waiting to be published. Payload is JSON.
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type RepoInterface interface {
	CreateSession(ctx context.Context, s *domain.CheckoutSession) error
	GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error)
	GetSessionByIdempotencyKey(ctx context.Context, userID, key string) (*domain.CheckoutSession, error)
	UpdateSession(ctx context.Context, s *domain.CheckoutSession, from domain.CheckoutStatus) error
	CompleteSession(ctx context.Context, s *domain.CheckoutSession, from domain.CheckoutStatus, event *OutboxEvent) error
	ListSessionsByStatus(ctx context.Context, status domain.CheckoutStatus, idleFor time.Duration, limit int) ([]*domain.CheckoutSession, error)
	AddEvent(ctx context.Context, e *OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
	Close() error
}

type Repository struct {
	db *sql.DB
}

const (
	maxOpenConns = 50
	maxIdleConns = 10
	connMaxIdle  = 5 * time.Minute
)

// DSN is the lib/pq connection string. TLS is left to the network.
func (c *Credentials) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

func NewRepository(ctx context.Context, cred *Credentials) (*Repository, error) {
	db, err := sql.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("open checkout database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping checkout database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdle)
	slog.InfoContext(ctx, "connected to postgres", slog.String("host", cred.Host), slog.String("db", cred.DBName))
	return &Repository{db: db}, nil
}

// RunMigrations applies the schema under MigrationsDirPath. Its version table is
// named for this service so the database can be shared.
func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{MigrationsTable: "checkout_schema_migrations"})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cred.MigrationsDirPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration source %s: %w", cred.MigrationsDirPath, err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping backs the readiness check.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
