package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Services groups what the routes need. Each handler only sees the narrow
// interface it calls.
type Services struct {
	Issuance interface {
		Joiner
		TicketImager
		EventImager
		TicketLister
	}
	CheckIn interface {
		Scanner
		CodeValidator
	}
	Review interface {
		PendingLister
		Reviewer
		Summarizer
	}
	// DB is pinged by /health when set.
	DB Pinger
}

func NewRouter(svc Services, logger logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = NotFoundHandler()
	r.MethodNotAllowedHandler = MethodNotAllowedHandler()
	r.Use(Instrument)

	r.Handle("/health", HealthHandler(svc.DB, logger)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Handle("/events/{eventID}/join", HandleJoin(svc.Issuance, logger)).Methods(http.MethodPost)
	r.Handle("/events/{eventID}/qr", HandleEventQR(svc.Issuance, logger)).Methods(http.MethodGet)
	r.Handle("/tickets/{ticketID}/qr", HandleTicketQR(svc.Issuance, logger)).Methods(http.MethodGet)
	r.Handle("/people/{personID}/tickets", HandleMyTickets(svc.Issuance, logger)).Methods(http.MethodGet)

	r.Handle("/checkin/scan", HandleScan(svc.CheckIn, logger)).Methods(http.MethodPost)
	r.Handle("/checkin/validate-code", HandleValidateCode(svc.CheckIn, logger)).Methods(http.MethodPost)

	r.Handle("/events/{eventID}/applicants/pending", HandleListPending(svc.Review, logger)).Methods(http.MethodGet)
	r.Handle("/events/{eventID}/summary", HandleSummary(svc.Review, logger)).Methods(http.MethodGet)
	r.Handle("/tickets/{ticketID}/approve", HandleApprove(svc.Review, logger)).Methods(http.MethodPost)
	r.Handle("/tickets/{ticketID}/reject", HandleReject(svc.Review, logger)).Methods(http.MethodPost)

	return r
}
