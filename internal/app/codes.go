package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/metrics"
)

const (
	ticketCodeLength        = 8
	ticketCodeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultMaxCodeAttempts  = 8
	ticketCodeRejectionBase = 252 // largest multiple of len(alphabet) below 256
)

func newID() string {
	return uuid.NewString()
}

// codeGenerator draws a candidate ticket code.
type codeGenerator func() (string, error)

func randomTicketCode() (string, error) {
	out := make([]byte, 0, ticketCodeLength)
	buf := make([]byte, ticketCodeLength*2)
	for len(out) < ticketCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= ticketCodeRejectionBase {
				continue
			}
			out = append(out, ticketCodeAlphabet[int(b)%len(ticketCodeAlphabet)])
			if len(out) == ticketCodeLength {
				break
			}
		}
	}
	return string(out), nil
}

func isTicketCode(code string) bool {
	if len(code) != ticketCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

type ticketInserter interface {
	TicketCodeExists(ctx context.Context, code string) (bool, error)
	CreateTicket(ctx context.Context, ticket domain.Ticket) error
}

// insertWithFreshCode assigns ticket a code and inserts it. The existence check is
// only a hint; the unique index decides, and a lost race draws again.
func insertWithFreshCode(ctx context.Context, repo ticketInserter, gen codeGenerator, maxAttempts int, ticket domain.Ticket) (domain.Ticket, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := gen()
		if err != nil {
			return domain.Ticket{}, err
		}
		taken, err := repo.TicketCodeExists(ctx, code)
		if err != nil {
			return domain.Ticket{}, err
		}
		if taken {
			metrics.CodeCollisions.Inc()
			continue
		}

		ticket.TicketCode = code
		err = repo.CreateTicket(ctx, ticket)
		if errors.Is(err, domain.ErrTicketCodeTaken) {
			metrics.CodeCollisions.Inc()
			continue
		}
		if err != nil {
			return domain.Ticket{}, err
		}
		return ticket, nil
	}
	return domain.Ticket{}, fmt.Errorf("%w after %d attempts", domain.ErrTicketCodeExhausted, maxAttempts)
}
