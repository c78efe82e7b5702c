package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/clock"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/metrics"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/qrpayload"
)

type CheckInRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTicket(ctx context.Context, ticketID string) (domain.Ticket, error)
	GetTicketForUpdate(ctx context.Context, ticketID string) (domain.Ticket, error)
	GetTicketByCodeForUpdate(ctx context.Context, code string) (domain.Ticket, error)
	FindTicketByEventAndPersonForUpdate(ctx context.Context, eventID, personID string) (*domain.Ticket, error)
	MarkCheckedIn(ctx context.Context, ticketID string, scannedAt time.Time, organizerID string) error
	TicketCodeExists(ctx context.Context, code string) (bool, error)
	CreateTicket(ctx context.Context, ticket domain.Ticket) error
}

// TokenDecoder verifies scanned QR payloads.
type TokenDecoder interface {
	Decode(token string) (qrpayload.Payload, error)
}

// ScanObserver receives every scan outcome after the transaction has finished.
type ScanObserver interface {
	ObserveScan(ctx context.Context, audit domain.ScanAudit)
}

type CheckInService struct {
	repo        CheckInRepository
	directory   Directory
	decoder     TokenDecoder
	clock       clock.Clock
	logger      logrus.FieldLogger
	observer    ScanObserver
	newCode     codeGenerator
	maxAttempts int
}

type CheckInOption func(*CheckInService)

func WithCheckInLogger(l logrus.FieldLogger) CheckInOption {
	return func(s *CheckInService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScanObserver forwards scan outcomes to an audit sink.
func WithScanObserver(o ScanObserver) CheckInOption {
	return func(s *CheckInService) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithWalkUpCodeAttempts bounds code draws for tickets created at the door.
func WithWalkUpCodeAttempts(n int) CheckInOption {
	return func(s *CheckInService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewCheckInService(repo CheckInRepository, directory Directory, decoder TokenDecoder, clk clock.Clock, opts ...CheckInOption) *CheckInService {
	svc := &CheckInService{
		repo:        repo,
		directory:   directory,
		decoder:     decoder,
		clock:       clk,
		logger:      logrus.StandardLogger(),
		observer:    noopObserver{},
		newCode:     randomTicketCode,
		maxAttempts: defaultMaxCodeAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ScanInput struct {
	Token string
	// CurrentEventID is the event the scanning device is working; empty disables the guard.
	CurrentEventID string
	// PersonID identifies the bearer of an event-level (walk-up) token.
	PersonID    string
	OrganizerID string
}

// Scan validates a QR token and checks its bearer in.
// Business outcomes are reported in the result; only infrastructure failures are errors.
func (s *CheckInService) Scan(ctx context.Context, in ScanInput) (domain.ValidationResult, error) {
	payload, err := s.decoder.Decode(in.Token)
	if err != nil {
		res := domain.Reject(qrpayload.CodeOf(err))
		s.observe(ctx, domain.ScanMethodQR, in.OrganizerID, "", res)
		return res, nil
	}

	var (
		res      domain.ValidationResult
		ticketID string
	)
	switch p := payload.(type) {
	case qrpayload.TicketPayload:
		res, ticketID, err = s.scanTicket(ctx, p, in)
	case qrpayload.EventPayload:
		res, err = s.scanEvent(ctx, p, in)
		ticketID = res.TicketID
	default:
		res = domain.Reject(domain.CodeInvalid)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"op":               "scan",
			"current_event_id": in.CurrentEventID,
			"organizer_id":     in.OrganizerID,
		}).Error("scan failed")
		return domain.ValidationResult{}, err
	}

	// The audit keeps the ticket id even when the response withholds it.
	s.observe(ctx, domain.ScanMethodQR, in.OrganizerID, ticketID, res)
	return res, nil
}

// ValidateByCode checks a bearer in by the printed ticket code.
func (s *CheckInService) ValidateByCode(ctx context.Context, code, organizerID string) (domain.ValidationResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !isTicketCode(code) {
		res := domain.Reject(domain.CodeTicketNotFound)
		s.observe(ctx, domain.ScanMethodCode, organizerID, "", res)
		return res, nil
	}

	var (
		ticket domain.Ticket
		result domain.ResultCode
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		t, err := s.repo.GetTicketByCodeForUpdate(txCtx, code)
		if errors.Is(err, domain.ErrTicketNotFound) {
			result = domain.CodeTicketNotFound
			return nil
		}
		if err != nil {
			return err
		}
		ticket = t
		result, err = s.checkIn(txCtx, &ticket, organizerID)
		return err
	})
	if err == nil && result == domain.CodeTicketNotFound {
		res := domain.Reject(result)
		s.observe(ctx, domain.ScanMethodCode, organizerID, "", res)
		return res, nil
	}

	var res domain.ValidationResult
	if err == nil {
		res, err = s.describe(ctx, result, ticket)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"op":           "validate_code",
			"organizer_id": organizerID,
		}).Error("code validation failed")
		return domain.ValidationResult{}, err
	}

	s.observe(ctx, domain.ScanMethodCode, organizerID, ticket.ID, res)
	return res, nil
}

// scanTicket also returns the id of the ticket it loaded, which the result may omit.
func (s *CheckInService) scanTicket(ctx context.Context, p qrpayload.TicketPayload, in ScanInput) (domain.ValidationResult, string, error) {
	var (
		ticket domain.Ticket
		result domain.ResultCode
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		t, err := s.repo.GetTicketForUpdate(txCtx, p.TicketID)
		if errors.Is(err, domain.ErrTicketNotFound) || errors.Is(err, domain.ErrInvalidID) {
			result = domain.CodeTicketNotFound
			return nil
		}
		if err != nil {
			return err
		}
		ticket = t

		if in.CurrentEventID != "" && in.CurrentEventID != t.EventID {
			result = domain.CodeWrongEvent
			return nil
		}
		if t.TicketCode != p.TicketCode {
			result = domain.CodeTicketCodeMismatch
			return nil
		}
		result, err = s.checkIn(txCtx, &ticket, in.OrganizerID)
		return err
	})
	if err != nil {
		return domain.ValidationResult{}, "", err
	}
	if result == domain.CodeTicketNotFound {
		return domain.Reject(result), "", nil
	}
	res, err := s.describe(ctx, result, ticket)
	return res, ticket.ID, err
}

func (s *CheckInService) scanEvent(ctx context.Context, p qrpayload.EventPayload, in ScanInput) (domain.ValidationResult, error) {
	event, err := s.directory.GetEvent(ctx, p.EventID)
	if errors.Is(err, domain.ErrEventNotFound) || errors.Is(err, domain.ErrInvalidID) {
		return domain.Reject(domain.CodeEventNotFound), nil
	}
	if err != nil {
		return domain.ValidationResult{}, err
	}

	if in.CurrentEventID != "" && in.CurrentEventID != event.ID {
		res := domain.Reject(domain.CodeWrongEvent)
		res.EventID, res.EventTitle = event.ID, event.Title
		return res, nil
	}

	if in.PersonID != "" {
		if _, err := s.directory.GetPerson(ctx, in.PersonID); err != nil {
			if errors.Is(err, domain.ErrPersonNotFound) || errors.Is(err, domain.ErrInvalidID) {
				res := domain.Reject(domain.CodeUserNotFound)
				res.EventID, res.EventTitle = event.ID, event.Title
				return res, nil
			}
			return domain.ValidationResult{}, err
		}

		ticket, result, found, err := s.checkInExisting(ctx, event.ID, in.PersonID, in.OrganizerID)
		if err != nil {
			return domain.ValidationResult{}, err
		}
		if found {
			return s.describe(ctx, result, ticket)
		}
	}

	ticket, err := s.walkUp(ctx, event.ID, in.PersonID, in.OrganizerID)
	if errors.Is(err, domain.ErrAlreadyJoined) {
		// A concurrent walk-up for the same person won the insert.
		ticket, result, found, err := s.checkInExisting(ctx, event.ID, in.PersonID, in.OrganizerID)
		if err != nil {
			return domain.ValidationResult{}, err
		}
		if !found {
			return domain.ValidationResult{}, domain.ErrTicketNotFound
		}
		return s.describe(ctx, result, ticket)
	}
	if err != nil {
		return domain.ValidationResult{}, err
	}

	metrics.TicketsIssued.WithLabelValues(metrics.SourceWalkUp).Inc()
	s.logger.WithFields(logrus.Fields{
		"ticket_id":    ticket.ID,
		"event_id":     ticket.EventID,
		"organizer_id": in.OrganizerID,
	}).Info("walk-up ticket created at check-in")
	return s.describe(ctx, domain.CodeCheckInOK, ticket)
}

// checkInExisting checks in the person's ticket for the event if one exists.
// Only tickets already APPROVED may be checked in from an event-level token.
func (s *CheckInService) checkInExisting(ctx context.Context, eventID, personID, organizerID string) (domain.Ticket, domain.ResultCode, bool, error) {
	var (
		ticket domain.Ticket
		result domain.ResultCode
		found  bool
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		t, err := s.repo.FindTicketByEventAndPersonForUpdate(txCtx, eventID, personID)
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		found = true
		ticket = *t
		switch {
		case ticket.Verified:
			result = domain.CodeAlreadyCheckedIn
			return nil
		case ticket.Status != domain.TicketStatusApproved:
			result = domain.CodeNotApproved
			return nil
		}
		result, err = s.checkIn(txCtx, &ticket, organizerID)
		return err
	})
	if err != nil {
		return domain.Ticket{}, "", false, err
	}
	return ticket, result, found, nil
}

// checkIn runs inside the caller's transaction with the ticket row locked.
func (s *CheckInService) checkIn(txCtx context.Context, ticket *domain.Ticket, organizerID string) (domain.ResultCode, error) {
	if ticket.Verified {
		return domain.CodeAlreadyCheckedIn, nil
	}
	if err := ticket.CheckIn(s.clock.Now(), organizerID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return domain.CodeNotApproved, nil
		}
		return "", err
	}

	err := s.repo.MarkCheckedIn(txCtx, ticket.ID, *ticket.ScannedAt, organizerID)
	if errors.Is(err, domain.ErrAlreadyCheckedIn) {
		winner, err := s.repo.GetTicket(txCtx, ticket.ID)
		if err != nil {
			return "", err
		}
		*ticket = winner
		return domain.CodeAlreadyCheckedIn, nil
	}
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"ticket_id":    ticket.ID,
		"event_id":     ticket.EventID,
		"organizer_id": organizerID,
	}).Info("ticket checked in")
	return domain.CodeCheckInOK, nil
}

func (s *CheckInService) walkUp(ctx context.Context, eventID, personID, organizerID string) (domain.Ticket, error) {
	now := s.clock.Now()
	return insertWithFreshCode(ctx, s.repo, s.newCode, s.maxAttempts, domain.Ticket{
		ID:          newID(),
		EventID:     eventID,
		PersonID:    personID,
		Status:      domain.TicketStatusApproved,
		Verified:    true,
		ScannedAt:   &now,
		CreatedAt:   now,
		CheckedInBy: organizerID,
	})
}

// describe enriches a result with event and holder details. WRONG_EVENT reveals the
// ticket's real event so staff can redirect the bearer, but not the holder.
func (s *CheckInService) describe(ctx context.Context, code domain.ResultCode, ticket domain.Ticket) (domain.ValidationResult, error) {
	res := domain.ValidationResult{
		Valid:    code.Success(),
		Code:     code,
		TicketID: ticket.ID,
		EventID:  ticket.EventID,
	}
	if code.Success() {
		res.CheckedInAt = ticket.ScannedAt
	}

	event, err := s.directory.GetEvent(ctx, ticket.EventID)
	switch {
	case err == nil:
		res.EventTitle = event.Title
	case !errors.Is(err, domain.ErrEventNotFound):
		return domain.ValidationResult{}, err
	}

	if code == domain.CodeWrongEvent {
		res.TicketID = ""
		return res, nil
	}
	if ticket.PersonID == "" {
		return res, nil
	}
	person, err := s.directory.GetPerson(ctx, ticket.PersonID)
	switch {
	case err == nil:
		res.PersonID = person.ID
		res.PersonName = person.FullName
		res.PersonEmail = person.Email
	case !errors.Is(err, domain.ErrPersonNotFound):
		return domain.ValidationResult{}, err
	}
	return res, nil
}

func (s *CheckInService) observe(ctx context.Context, method domain.ScanMethod, organizerID, ticketID string, res domain.ValidationResult) {
	metrics.ScanOutcomes.WithLabelValues(string(method), string(res.Code)).Inc()
	s.observer.ObserveScan(ctx, domain.ScanAudit{
		Method:      method,
		Code:        res.Code,
		TicketID:    ticketID,
		EventID:     res.EventID,
		OrganizerID: organizerID,
		At:          s.clock.Now(),
	})
}

type noopObserver struct{}

func (noopObserver) ObserveScan(context.Context, domain.ScanAudit) {}
