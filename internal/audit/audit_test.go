package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func findEntry(hook *logtest.Hook, msg string) *logrus.Entry {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return e
		}
	}
	return nil
}

func TestAuditStream_LogsPublishedScans(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	wmLogger := NewLogger(logger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, wmLogger)
	router, err := NewRouter(pubSub, logger, wmLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()
	require.NoError(t, WaitRunning(context.Background(), router))

	publisher := NewPublisher(pubSub, logger)
	at := time.Date(2025, 5, 2, 14, 0, 0, 0, time.UTC)
	publisher.ObserveScan(context.Background(), domain.ScanAudit{
		Method: domain.ScanMethodQR, Code: domain.CodeCheckInOK,
		TicketID: "ticket-1", EventID: "event-1", OrganizerID: "staff-1", At: at,
	})
	publisher.ObserveScan(context.Background(), domain.ScanAudit{
		Method: domain.ScanMethodCode, Code: domain.CodeTicketNotFound, At: at,
	})

	require.Eventually(t, func() bool {
		return findEntry(hook, "check-in accepted") != nil && findEntry(hook, "check-in refused") != nil
	}, 5*time.Second, 10*time.Millisecond)

	accepted := findEntry(hook, "check-in accepted")
	assert.Equal(t, logrus.InfoLevel, accepted.Level)
	assert.Equal(t, "ticket-1", accepted.Data["ticket_id"])
	assert.Equal(t, "staff-1", accepted.Data["organizer_id"])

	refused := findEntry(hook, "check-in refused")
	assert.Equal(t, logrus.WarnLevel, refused.Level)
	assert.Equal(t, "TICKET_NOT_FOUND", refused.Data["code"])

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, router.Close())
	require.NoError(t, pubSub.Close())
}

func TestWaitRunning_GivesUpWithContext(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	wmLogger := NewLogger(logger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	router, err := NewRouter(pubSub, logger, wmLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, WaitRunning(ctx, router), context.Canceled)

	require.NoError(t, router.Close())
	require.NoError(t, pubSub.Close())
}

type failingPublisher struct{}

func (failingPublisher) Publish(string, ...*message.Message) error { return errors.New("broker down") }
func (failingPublisher) Close() error                              { return nil }

func TestPublisher_LogsPublishFailures(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	NewPublisher(failingPublisher{}, logger).ObserveScan(context.Background(), domain.ScanAudit{
		Method: domain.ScanMethodQR, Code: domain.CodeExpired,
	})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "publish scan audit", hook.LastEntry().Message)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestLogger_With(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	NewLogger(logger).With(map[string]interface{}{"topic": TopicScanned}).Info("subscribed", nil)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, TopicScanned, hook.LastEntry().Data["topic"])
	assert.Equal(t, "watermill", hook.LastEntry().Data["component"])
}
