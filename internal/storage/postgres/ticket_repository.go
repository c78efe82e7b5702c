package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

const ticketColumns = `id, event_id, person_id, ticket_code, verified, status, scanned_at, checked_in_by, created_at`

type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

func (r *TicketRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *TicketRepository) GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if !isUUID(ticketID) {
		return domain.Ticket{}, domain.ErrInvalidID
	}
	return r.getOne(ctx, "get ticket", `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID)
}

// GetTicketForUpdate must run inside WithTx; the row stays locked until commit.
func (r *TicketRepository) GetTicketForUpdate(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if !isUUID(ticketID) {
		return domain.Ticket{}, domain.ErrInvalidID
	}
	return r.getOne(ctx, "get ticket for update", `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, ticketID)
}

func (r *TicketRepository) GetTicketByCodeForUpdate(ctx context.Context, code string) (domain.Ticket, error) {
	return r.getOne(ctx, "get ticket by code", `SELECT `+ticketColumns+` FROM tickets WHERE ticket_code = $1 FOR UPDATE`, code)
}

func (r *TicketRepository) FindTicketByEventAndPerson(ctx context.Context, eventID, personID string) (*domain.Ticket, error) {
	return r.findByPair(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = $1 AND person_id = $2`, eventID, personID)
}

func (r *TicketRepository) FindTicketByEventAndPersonForUpdate(ctx context.Context, eventID, personID string) (*domain.Ticket, error) {
	return r.findByPair(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = $1 AND person_id = $2 FOR UPDATE`, eventID, personID)
}

func (r *TicketRepository) ListTicketsByPerson(ctx context.Context, personID string) ([]domain.Ticket, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE person_id = $1 ORDER BY created_at DESC, id`, personID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list tickets by person: %w", err)
	}
	tickets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Ticket, error) {
		return scanTicket(row)
	})
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list tickets by person: %w", err)
	}
	return tickets, nil
}

func (r *TicketRepository) TicketCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE ticket_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ticket code exists: %w", err)
	}
	return exists, nil
}

// CreateTicket inserts ticket. Violations of the code and (event, person) unique
// indexes come back as ErrTicketCodeTaken and ErrAlreadyJoined.
func (r *TicketRepository) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (id, event_id, person_id, ticket_code, verified, status, scanned_at, checked_in_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		ticket.ID,
		ticket.EventID,
		nullable(ticket.PersonID),
		ticket.TicketCode,
		ticket.Verified,
		string(ticket.Status),
		ticket.ScannedAt,
		nullable(ticket.CheckedInBy),
		ticket.CreatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, constraintTicketCode):
		return domain.ErrTicketCodeTaken
	case isUniqueViolation(err, constraintEventPerson):
		return domain.ErrAlreadyJoined
	case isForeignKeyViolation(err):
		if _, constraint := pgErrorCode(err); constraint == "tickets_person_id_fkey" {
			return domain.ErrPersonNotFound
		}
		return domain.ErrEventNotFound
	case isInvalidUUID(err):
		return domain.ErrInvalidID
	default:
		return fmt.Errorf("create ticket: %w", err)
	}
}

// MarkCheckedIn flips verified exactly once. A ticket that is already verified
// is left untouched and ErrAlreadyCheckedIn is returned.
func (r *TicketRepository) MarkCheckedIn(ctx context.Context, ticketID string, scannedAt time.Time, organizerID string) error {
	const stmt = `
UPDATE tickets
SET verified = TRUE, status = 'APPROVED', scanned_at = $2, checked_in_by = $3
WHERE id = $1 AND verified = FALSE`

	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, ticketID, scannedAt, nullable(organizerID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark checked in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyCheckedIn
	}
	return nil
}

func (r *TicketRepository) UpdateTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `UPDATE tickets SET status = $2 WHERE id = $1`, ticketID, string(status))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update ticket status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *TicketRepository) ListApplicants(ctx context.Context, eventID string, status domain.TicketStatus) ([]domain.Applicant, error) {
	const query = `
SELECT t.id, p.id, p.full_name, p.email, t.created_at, t.status
FROM tickets t
JOIN people p ON p.id = t.person_id
WHERE t.event_id = $1 AND t.status = $2
ORDER BY t.created_at, t.id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, eventID, string(status))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	applicants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Applicant, error) {
		var (
			a      domain.Applicant
			status string
		)
		if err := row.Scan(&a.TicketID, &a.PersonID, &a.FullName, &a.Email, &a.AppliedAt, &status); err != nil {
			return domain.Applicant{}, err
		}
		parsed, err := domain.ParseTicketStatus(status)
		if err != nil {
			return domain.Applicant{}, err
		}
		a.AppliedAt = a.AppliedAt.UTC()
		a.Status = parsed
		return a, nil
	})
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list applicants: %w", err)
	}
	return applicants, nil
}

func (r *TicketRepository) SummarizeEvent(ctx context.Context, eventID string) (domain.ReviewSummary, error) {
	const query = `
SELECT
	COUNT(*) FILTER (WHERE status = 'PENDING'),
	COUNT(*) FILTER (WHERE status = 'APPROVED'),
	COUNT(*) FILTER (WHERE status = 'REJECTED'),
	COUNT(*) FILTER (WHERE verified)
FROM tickets
WHERE event_id = $1`

	sum := domain.ReviewSummary{EventID: eventID}
	err := conn(ctx, r.pool).QueryRow(ctx, query, eventID).
		Scan(&sum.Pending, &sum.Approved, &sum.Rejected, &sum.CheckedIn)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ReviewSummary{}, domain.ErrInvalidID
		}
		return domain.ReviewSummary{}, fmt.Errorf("summarize event: %w", err)
	}
	return sum, nil
}

func (r *TicketRepository) getOne(ctx context.Context, op, query string, args ...any) (domain.Ticket, error) {
	t, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Ticket{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (r *TicketRepository) findByPair(ctx context.Context, query, eventID, personID string) (*domain.Ticket, error) {
	if !isUUID(eventID) || !isUUID(personID) {
		return nil, domain.ErrInvalidID
	}
	t, err := scanTicket(conn(ctx, r.pool).QueryRow(ctx, query, eventID, personID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ticket by event and person: %w", err)
	}
	return &t, nil
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var (
		t           domain.Ticket
		personID    *string
		checkedInBy *string
		status      string
	)
	err := row.Scan(&t.ID, &t.EventID, &personID, &t.TicketCode, &t.Verified, &status, &t.ScannedAt, &checkedInBy, &t.CreatedAt)
	if err != nil {
		return domain.Ticket{}, err
	}
	if t.Status, err = domain.ParseTicketStatus(status); err != nil {
		return domain.Ticket{}, err
	}
	if personID != nil {
		t.PersonID = *personID
	}
	if checkedInBy != nil {
		t.CheckedInBy = *checkedInBy
	}
	if t.ScannedAt != nil {
		at := t.ScannedAt.UTC()
		t.ScannedAt = &at
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
