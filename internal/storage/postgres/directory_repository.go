package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

// DirectoryRepository reads the events and people owned by the wider platform.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	if !isUUID(eventID) {
		return domain.Event{}, domain.ErrInvalidID
	}
	var (
		e      domain.Event
		status string
	)
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT id, title, status FROM events WHERE id = $1`, eventID).
		Scan(&e.ID, &e.Title, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	e.Status = domain.EventStatus(status)
	return e, nil
}

func (r *DirectoryRepository) GetPerson(ctx context.Context, personID string) (domain.Person, error) {
	if !isUUID(personID) {
		return domain.Person{}, domain.ErrInvalidID
	}
	var p domain.Person
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT id, full_name, email FROM people WHERE id = $1`, personID).
		Scan(&p.ID, &p.FullName, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Person{}, domain.ErrPersonNotFound
		}
		return domain.Person{}, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}
