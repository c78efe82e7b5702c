package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/clock"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/metrics"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/qrimage"
)

type IssuanceRepository interface {
	GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error)
	FindTicketByEventAndPerson(ctx context.Context, eventID, personID string) (*domain.Ticket, error)
	ListTicketsByPerson(ctx context.Context, personID string) ([]domain.Ticket, error)
	TicketCodeExists(ctx context.Context, code string) (bool, error)
	CreateTicket(ctx context.Context, ticket domain.Ticket) error
}

// TokenEncoder signs QR payloads.
type TokenEncoder interface {
	EncodeEvent(eventID string) (string, error)
	EncodeTicket(ticketID, ticketCode string) (string, error)
}

type IssuanceService struct {
	repo        IssuanceRepository
	directory   Directory
	encoder     TokenEncoder
	clock       clock.Clock
	logger      logrus.FieldLogger
	newCode     codeGenerator
	maxAttempts int
}

type IssuanceOption func(*IssuanceService)

// WithIssuanceLogger overrides the standard logrus logger.
func WithIssuanceLogger(l logrus.FieldLogger) IssuanceOption {
	return func(s *IssuanceService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxCodeAttempts bounds how many ticket codes are drawn before giving up.
func WithMaxCodeAttempts(n int) IssuanceOption {
	return func(s *IssuanceService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewIssuanceService(repo IssuanceRepository, directory Directory, encoder TokenEncoder, clk clock.Clock, opts ...IssuanceOption) *IssuanceService {
	svc := &IssuanceService{
		repo:        repo,
		directory:   directory,
		encoder:     encoder,
		clock:       clk,
		logger:      logrus.StandardLogger(),
		newCode:     randomTicketCode,
		maxAttempts: defaultMaxCodeAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type JoinInput struct {
	PersonID string
	EventID  string
}

// Join issues a PENDING ticket for the person on the event.
func (s *IssuanceService) Join(ctx context.Context, in JoinInput) (domain.Ticket, error) {
	if in.PersonID == "" || in.EventID == "" {
		return domain.Ticket{}, domain.ErrInvalidID
	}
	if _, err := s.directory.GetPerson(ctx, in.PersonID); err != nil {
		return domain.Ticket{}, err
	}
	if _, err := s.directory.GetEvent(ctx, in.EventID); err != nil {
		return domain.Ticket{}, err
	}

	existing, err := s.repo.FindTicketByEventAndPerson(ctx, in.EventID, in.PersonID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if existing != nil {
		return domain.Ticket{}, domain.ErrAlreadyJoined
	}

	now := s.clock.Now()
	ticket, err := insertWithFreshCode(ctx, s.repo, s.newCode, s.maxAttempts, domain.Ticket{
		ID:        newID(),
		EventID:   in.EventID,
		PersonID:  in.PersonID,
		Status:    domain.TicketStatusPending,
		Verified:  false,
		CreatedAt: now,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrAlreadyJoined) {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"event_id":  in.EventID,
				"person_id": in.PersonID,
			}).Error("join failed")
		}
		return domain.Ticket{}, err
	}

	metrics.TicketsIssued.WithLabelValues(metrics.SourceJoin).Inc()
	s.logger.WithFields(logrus.Fields{
		"ticket_id": ticket.ID,
		"event_id":  ticket.EventID,
		"person_id": ticket.PersonID,
	}).Info("ticket issued")
	return ticket, nil
}

// TicketToken returns the signed ticket-level token for an issued ticket.
func (s *IssuanceService) TicketToken(ctx context.Context, ticketID string) (string, error) {
	if ticketID == "" {
		return "", domain.ErrInvalidID
	}
	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return "", err
	}
	token, err := s.encoder.EncodeTicket(ticket.ID, ticket.TicketCode)
	if err != nil {
		return "", fmt.Errorf("encode ticket token: %w", err)
	}
	return token, nil
}

// IssueTicketImage renders the ticket-level token as a PNG QR code.
func (s *IssuanceService) IssueTicketImage(ctx context.Context, ticketID string) ([]byte, error) {
	token, err := s.TicketToken(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	return qrimage.PNG(token, qrimage.DefaultSize)
}

// EventToken returns the walk-up token printed at an event's entrance.
func (s *IssuanceService) EventToken(ctx context.Context, eventID string) (string, error) {
	if eventID == "" {
		return "", domain.ErrInvalidID
	}
	event, err := s.directory.GetEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	token, err := s.encoder.EncodeEvent(event.ID)
	if err != nil {
		return "", fmt.Errorf("encode event token: %w", err)
	}
	return token, nil
}

func (s *IssuanceService) IssueEventImage(ctx context.Context, eventID string) ([]byte, error) {
	token, err := s.EventToken(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return qrimage.PNG(token, qrimage.DefaultSize)
}

// TicketsForPerson lists a person's tickets, newest first.
func (s *IssuanceService) TicketsForPerson(ctx context.Context, personID string) ([]domain.Ticket, error) {
	if personID == "" {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.directory.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return s.repo.ListTicketsByPerson(ctx, personID)
}
