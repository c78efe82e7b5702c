package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
	"github.com/mehmetkaplanceng-afk/ETUNI/migrations"
)

const testDBLockID int64 = 801234568

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// NewTestPool connects to TEST_DATABASE_URL or, when unset, to a throwaway
// postgres container. Tests are skipped when neither is reachable.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		containerOnce.Do(startContainer)
		if containerErr != nil {
			t.Skipf("skipping Postgres integration tests: %v", containerErr)
		}
		dsn = containerDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skipping Postgres integration tests: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
	})

	lockTestDB(t, pool)

	return pool
}

func startContainer() {
	ctx := context.Background()
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithDatabase("checkin"),
		postgres.WithUsername("checkin"),
		postgres.WithPassword("checkin"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		containerErr = err
		return
	}
	containerDSN, containerErr = container.ConnectionString(ctx, "sslmode=disable", "application_name=test")
}

func ApplyMigrations(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
}

func TruncateAll(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `TRUNCATE tickets, events, people CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func InsertEvent(t *testing.T, ctx context.Context, pool *pgxpool.Pool, title string) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(ctx,
		`INSERT INTO events (title) VALUES ($1) RETURNING id`,
		title,
	).Scan(&id); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return id
}

func InsertPerson(t *testing.T, ctx context.Context, pool *pgxpool.Pool, fullName, email string) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(ctx,
		`INSERT INTO people (full_name, email) VALUES ($1, $2) RETURNING id`,
		fullName, email,
	).Scan(&id); err != nil {
		t.Fatalf("insert person: %v", err)
	}
	return id
}

// InsertTicket stores ticket as given; an empty PersonID is stored as NULL.
func InsertTicket(t *testing.T, ctx context.Context, pool *pgxpool.Pool, ticket domain.Ticket) {
	t.Helper()
	var personID any
	if ticket.PersonID != "" {
		personID = ticket.PersonID
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	_, err := pool.Exec(ctx, `
INSERT INTO tickets (id, event_id, person_id, ticket_code, verified, status, scanned_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ticket.ID, ticket.EventID, personID, ticket.TicketCode, ticket.Verified, ticket.Status, ticket.ScannedAt, ticket.CreatedAt,
	)
	if err != nil {
		t.Fatalf("insert ticket: %v", err)
	}
}

func lockTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}
