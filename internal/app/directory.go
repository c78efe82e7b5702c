package app

import (
	"context"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

// Directory resolves the events and people this engine references but does not own.
type Directory interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	GetPerson(ctx context.Context, personID string) (domain.Person, error)
}
