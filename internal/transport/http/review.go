package http

import (
	"context"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

type PendingLister interface {
	ListPending(ctx context.Context, eventID string) ([]domain.Applicant, error)
}

type Reviewer interface {
	Approve(ctx context.Context, ticketID string) (domain.Ticket, error)
	Reject(ctx context.Context, ticketID string) (domain.Ticket, error)
}

type Summarizer interface {
	Summary(ctx context.Context, eventID string) (domain.ReviewSummary, error)
}

func HandleListPending(svc PendingLister, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicants, err := svc.ListPending(r.Context(), pathVar(r, "eventID"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, lo.Map(applicants, func(a domain.Applicant, _ int) applicantResponse {
			return applicantResponse{
				TicketID:  a.TicketID,
				PersonID:  a.PersonID,
				FullName:  a.FullName,
				Email:     a.Email,
				AppliedAt: a.AppliedAt,
				Status:    string(a.Status),
			}
		}))
	}
}

// HandleApprove and HandleReject answer with the ticket's resulting state.
func HandleApprove(svc Reviewer, logger logrus.FieldLogger) http.HandlerFunc {
	return handleReview(svc.Approve, logger)
}

func HandleReject(svc Reviewer, logger logrus.FieldLogger) http.HandlerFunc {
	return handleReview(svc.Reject, logger)
}

func handleReview(review func(ctx context.Context, ticketID string) (domain.Ticket, error), logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticket, err := review(r.Context(), pathVar(r, "ticketID"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newTicketResponse(ticket))
	}
}

func HandleSummary(svc Summarizer, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := svc.Summary(r.Context(), pathVar(r, "eventID"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, summaryResponse{
			EventID:   sum.EventID,
			Pending:   sum.Pending,
			Approved:  sum.Approved,
			Rejected:  sum.Rejected,
			CheckedIn: sum.CheckedIn,
		})
	}
}

type applicantResponse struct {
	TicketID  string    `json:"ticket_id"`
	PersonID  string    `json:"person_id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	AppliedAt time.Time `json:"applied_at"`
	Status    string    `json:"status"`
}

type summaryResponse struct {
	EventID   string `json:"event_id"`
	Pending   int    `json:"pending"`
	Approved  int    `json:"approved"`
	Rejected  int    `json:"rejected"`
	CheckedIn int    `json:"checked_in"`
}
