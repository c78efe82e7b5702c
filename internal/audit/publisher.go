// Package audit streams check-in outcomes over watermill so they can be logged or
// forwarded without holding up the scanner.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

const TopicScanned = "checkin.scanned"

// ScanRecorded is the message body published for every scan.
type ScanRecorded struct {
	Method      string    `json:"method"`
	Code        string    `json:"code"`
	Valid       bool      `json:"valid"`
	TicketID    string    `json:"ticket_id,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
	OrganizerID string    `json:"organizer_id,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher implements the check-in service's scan observer.
type Publisher struct {
	pub    message.Publisher
	logger logrus.FieldLogger
}

func NewPublisher(pub message.Publisher, logger logrus.FieldLogger) *Publisher {
	return &Publisher{pub: pub, logger: logger}
}

// ObserveScan publishes the outcome. Failures are logged; the scan result stands.
func (p *Publisher) ObserveScan(ctx context.Context, a domain.ScanAudit) {
	payload, err := json.Marshal(ScanRecorded{
		Method:      string(a.Method),
		Code:        string(a.Code),
		Valid:       a.Code.Success(),
		TicketID:    a.TicketID,
		EventID:     a.EventID,
		OrganizerID: a.OrganizerID,
		At:          a.At,
	})
	if err != nil {
		p.logger.WithError(err).Error("marshal scan audit")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := p.pub.Publish(TopicScanned, msg); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"topic":     TopicScanned,
			"ticket_id": a.TicketID,
		}).Error("publish scan audit")
	}
}
