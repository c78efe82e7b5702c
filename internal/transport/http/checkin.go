package http

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/app"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

type Scanner interface {
	Scan(ctx context.Context, in app.ScanInput) (domain.ValidationResult, error)
}

type CodeValidator interface {
	ValidateByCode(ctx context.Context, code, organizerID string) (domain.ValidationResult, error)
}

// HandleScan validates a scanned QR token. Refusals are ordinary 200 responses
// carrying valid=false and a result code.
func HandleScan(svc Scanner, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := svc.Scan(r.Context(), app.ScanInput{
			Token:          req.QRContent,
			CurrentEventID: req.CurrentEventID,
			PersonID:       req.PersonID,
			OrganizerID:    organizerID(r),
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newValidationResponse(res))
	}
}

// HandleValidateCode checks a bearer in by the code printed under the QR.
func HandleValidateCode(svc CodeValidator, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateCodeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := svc.ValidateByCode(r.Context(), req.TicketCode, organizerID(r))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, newValidationResponse(res))
	}
}

type scanRequest struct {
	QRContent      string `json:"qr_content" validate:"required"`
	CurrentEventID string `json:"current_event_id"`
	PersonID       string `json:"person_id"`
}

type validateCodeRequest struct {
	TicketCode string `json:"ticket_code" validate:"required"`
}

type validationResponse struct {
	Valid       bool       `json:"valid"`
	Code        string     `json:"code"`
	TicketID    string     `json:"ticket_id,omitempty"`
	EventID     string     `json:"event_id,omitempty"`
	EventTitle  string     `json:"event_title,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	PersonID    string     `json:"person_id,omitempty"`
	PersonName  string     `json:"person_name,omitempty"`
	PersonEmail string     `json:"person_email,omitempty"`
}

func newValidationResponse(res domain.ValidationResult) validationResponse {
	return validationResponse{
		Valid:       res.Valid,
		Code:        string(res.Code),
		TicketID:    res.TicketID,
		EventID:     res.EventID,
		EventTitle:  res.EventTitle,
		CheckedInAt: res.CheckedInAt,
		PersonID:    res.PersonID,
		PersonName:  res.PersonName,
		PersonEmail: res.PersonEmail,
	}
}
