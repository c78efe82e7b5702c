package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

type ReviewRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTicketForUpdate(ctx context.Context, ticketID string) (domain.Ticket, error)
	UpdateTicketStatus(ctx context.Context, ticketID string, status domain.TicketStatus) error
	ListApplicants(ctx context.Context, eventID string, status domain.TicketStatus) ([]domain.Applicant, error)
	SummarizeEvent(ctx context.Context, eventID string) (domain.ReviewSummary, error)
}

type ReviewService struct {
	repo      ReviewRepository
	directory Directory
	logger    logrus.FieldLogger
}

func NewReviewService(repo ReviewRepository, directory Directory, logger logrus.FieldLogger) *ReviewService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReviewService{
		repo:      repo,
		directory: directory,
		logger:    logger,
	}
}

// ListPending returns the event's PENDING applicants, oldest application first.
func (s *ReviewService) ListPending(ctx context.Context, eventID string) ([]domain.Applicant, error) {
	if eventID == "" {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.directory.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListApplicants(ctx, eventID, domain.TicketStatusPending)
}

// Approve marks the ticket APPROVED. The holder still has to be scanned at the door.
func (s *ReviewService) Approve(ctx context.Context, ticketID string) (domain.Ticket, error) {
	return s.transition(ctx, ticketID, domain.ActionApprove)
}

func (s *ReviewService) Reject(ctx context.Context, ticketID string) (domain.Ticket, error) {
	return s.transition(ctx, ticketID, domain.ActionReject)
}

func (s *ReviewService) Summary(ctx context.Context, eventID string) (domain.ReviewSummary, error) {
	if eventID == "" {
		return domain.ReviewSummary{}, domain.ErrInvalidID
	}
	if _, err := s.directory.GetEvent(ctx, eventID); err != nil {
		return domain.ReviewSummary{}, err
	}
	return s.repo.SummarizeEvent(ctx, eventID)
}

func (s *ReviewService) transition(ctx context.Context, ticketID string, action domain.TicketAction) (domain.Ticket, error) {
	if ticketID == "" {
		return domain.Ticket{}, domain.ErrInvalidID
	}

	var (
		ticket  domain.Ticket
		changed bool
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		t, err := s.repo.GetTicketForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		next, err := t.Status.Apply(action)
		if err != nil {
			return err
		}
		ticket = t
		if next == t.Status {
			return nil
		}
		if err := s.repo.UpdateTicketStatus(txCtx, t.ID, next); err != nil {
			return err
		}
		ticket.Status = next
		changed = true
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}

	if changed {
		s.logger.WithFields(logrus.Fields{
			"ticket_id": ticket.ID,
			"event_id":  ticket.EventID,
			"action":    action.String(),
			"status":    string(ticket.Status),
		}).Info("applicant reviewed")
	}
	return ticket, nil
}
