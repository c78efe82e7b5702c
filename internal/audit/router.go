package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/metrics"
)

const handlerAuditLog = "audit_log"

// NewRouter builds a watermill router that writes every scan message to logger.
func NewRouter(sub message.Subscriber, logger logrus.FieldLogger, wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(countMessages)

	router.AddNoPublisherHandler(handlerAuditLog, TopicScanned, sub, func(msg *message.Message) error {
		var rec ScanRecorded
		if err := json.Unmarshal(msg.Payload, &rec); err != nil {
			// A malformed message would be redelivered forever; drop it.
			logger.WithError(err).WithField("message_id", msg.UUID).Error("discarding malformed scan audit")
			return nil
		}

		entry := logger.WithFields(logrus.Fields{
			"audit":        "scan",
			"method":       rec.Method,
			"code":         rec.Code,
			"ticket_id":    rec.TicketID,
			"event_id":     rec.EventID,
			"organizer_id": rec.OrganizerID,
			"at":           rec.At,
		})
		if rec.Valid {
			entry.Info("check-in accepted")
		} else {
			entry.Warn("check-in refused")
		}
		return nil
	})

	return router, nil
}

// WaitRunning blocks until router has subscribed its handlers. Scans published
// before that are dropped by a non-persistent pub/sub.
func WaitRunning(ctx context.Context, router *message.Router) error {
	select {
	case <-router.Running():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func countMessages(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		labels := prometheus.Labels{
			"topic":   message.SubscribeTopicFromCtx(msg.Context()),
			"handler": message.HandlerNameFromCtx(msg.Context()),
		}
		msgs, err := next(msg)
		if err != nil {
			metrics.AuditMessagesFailed.With(labels).Inc()
		}
		metrics.AuditMessagesProcessed.With(labels).Inc()
		return msgs, err
	}
}
