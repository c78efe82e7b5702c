package domain

import (
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusApproved TicketStatus = "APPROVED"
	TicketStatusRejected TicketStatus = "REJECTED"
)

// TicketAction is anything that can move a ticket through its lifecycle.
type TicketAction int

const (
	ActionCheckIn TicketAction = iota + 1
	ActionApprove
	ActionReject
)

func (a TicketAction) String() string {
	switch a {
	case ActionCheckIn:
		return "check_in"
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Apply returns the status reached by applying a to s.
// APPROVED and REJECTED are terminal; repeating the action that reached them is a no-op.
func (s TicketStatus) Apply(a TicketAction) (TicketStatus, error) {
	switch s {
	case TicketStatusPending:
		switch a {
		case ActionCheckIn, ActionApprove:
			return TicketStatusApproved, nil
		case ActionReject:
			return TicketStatusRejected, nil
		}
	case TicketStatusApproved:
		switch a {
		case ActionCheckIn, ActionApprove:
			return TicketStatusApproved, nil
		case ActionReject:
			return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s)
		}
	case TicketStatusRejected:
		switch a {
		case ActionReject:
			return TicketStatusRejected, nil
		case ActionCheckIn, ActionApprove:
			return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s)
		}
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownStatus, string(s))
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s)
}

// ParseTicketStatus validates a stored status value.
func ParseTicketStatus(v string) (TicketStatus, error) {
	switch s := TicketStatus(v); s {
	case TicketStatusPending, TicketStatusApproved, TicketStatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, v)
	}
}

// Ticket is one person's right to attend one event (attendance record).
type Ticket struct {
	ID         string
	EventID    string
	PersonID   string // empty for anonymous walk-up check-ins
	TicketCode string
	Verified   bool
	Status     TicketStatus
	ScannedAt  *time.Time
	CreatedAt  time.Time
	// CheckedInBy is the organizer that performed the scan, kept for audit.
	CheckedInBy string
}

// CheckIn marks the ticket as verified at now.
// Callers must handle the already-verified case before calling.
func (t *Ticket) CheckIn(now time.Time, organizerID string) error {
	if t.Verified {
		return ErrAlreadyCheckedIn
	}
	next, err := t.Status.Apply(ActionCheckIn)
	if err != nil {
		return err
	}
	scanned := now
	t.Status = next
	t.Verified = true
	t.ScannedAt = &scanned
	t.CheckedInBy = organizerID
	return nil
}

// Applicant is a pending ticket as shown to event staff during review.
type Applicant struct {
	TicketID  string
	PersonID  string
	FullName  string
	Email     string
	AppliedAt time.Time
	Status    TicketStatus
}

// ReviewSummary counts an event's tickets by review outcome.
type ReviewSummary struct {
	EventID   string
	Pending   int
	Approved  int
	Rejected  int
	CheckedIn int
}
