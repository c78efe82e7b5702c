package http

import (
	"context"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/app"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

// Joiner is the minimal interface needed to apply for an event.
type Joiner interface {
	Join(ctx context.Context, in app.JoinInput) (domain.Ticket, error)
}

type TicketImager interface {
	IssueTicketImage(ctx context.Context, ticketID string) ([]byte, error)
}

type EventImager interface {
	IssueEventImage(ctx context.Context, eventID string) ([]byte, error)
}

type TicketLister interface {
	TicketsForPerson(ctx context.Context, personID string) ([]domain.Ticket, error)
}

// HandleJoin issues a PENDING ticket for the person in the body.
func HandleJoin(svc Joiner, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequest
		if !decodeBody(w, r, &req) {
			return
		}

		ticket, err := svc.Join(r.Context(), app.JoinInput{
			PersonID: req.PersonID,
			EventID:  pathVar(r, "eventID"),
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, newTicketResponse(ticket))
	}
}

// HandleTicketQR renders the ticket-level QR code as a PNG.
func HandleTicketQR(svc TicketImager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, err := svc.IssueTicketImage(r.Context(), pathVar(r, "ticketID"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writePNG(w, img)
	}
}

// HandleEventQR renders the walk-up QR code displayed at an event's entrance.
func HandleEventQR(svc EventImager, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, err := svc.IssueEventImage(r.Context(), pathVar(r, "eventID"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writePNG(w, img)
	}
}

func HandleMyTickets(svc TicketLister, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tickets, err := svc.TicketsForPerson(r.Context(), pathVar(r, "personID"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, lo.Map(tickets, func(t domain.Ticket, _ int) ticketResponse {
			return newTicketResponse(t)
		}))
	}
}

// Tokens expire, so images must not be cached by browsers or proxies.
func writePNG(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

type joinRequest struct {
	PersonID string `json:"person_id" validate:"required"`
}

type ticketResponse struct {
	ID         string     `json:"id"`
	EventID    string     `json:"event_id"`
	PersonID   string     `json:"person_id,omitempty"`
	TicketCode string     `json:"ticket_code"`
	Status     string     `json:"status"`
	Verified   bool       `json:"verified"`
	ScannedAt  *time.Time `json:"scanned_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:         t.ID,
		EventID:    t.EventID,
		PersonID:   t.PersonID,
		TicketCode: t.TicketCode,
		Status:     string(t.Status),
		Verified:   t.Verified,
		ScannedAt:  t.ScannedAt,
		CreatedAt:  t.CreatedAt,
	}
}
