package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/app"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/clock"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/qrpayload"
	"github.com/mehmetkaplanceng-afk/ETUNI/internal/testutil"
)

func TestTicketRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewTicketRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Date(2025, 5, 2, 14, 0, 0, 0, time.UTC)

	t.Run("CreateTicket round-trips and maps unique violations", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		eventID := testutil.InsertEvent(t, ctx, pool, "Spring Hackathon")
		personID := testutil.InsertPerson(t, ctx, pool, "Ada Lovelace", "ada@example.edu")

		ticket := domain.Ticket{
			ID: uuid.NewString(), EventID: eventID, PersonID: personID, TicketCode: "AB12CD34",
			Status: domain.TicketStatusPending, CreatedAt: now,
		}
		require.NoError(t, repo.CreateTicket(ctx, ticket))

		got, err := repo.GetTicket(ctx, ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, ticket, got)

		exists, err := repo.TicketCodeExists(ctx, "AB12CD34")
		require.NoError(t, err)
		assert.True(t, exists)

		sameCode := ticket
		sameCode.ID = uuid.NewString()
		sameCode.PersonID = testutil.InsertPerson(t, ctx, pool, "Alan Turing", "alan@example.edu")
		require.ErrorIs(t, repo.CreateTicket(ctx, sameCode), domain.ErrTicketCodeTaken)

		samePair := ticket
		samePair.ID = uuid.NewString()
		samePair.TicketCode = "ZZ99ZZ99"
		require.ErrorIs(t, repo.CreateTicket(ctx, samePair), domain.ErrAlreadyJoined)

		orphan := ticket
		orphan.ID = uuid.NewString()
		orphan.TicketCode = "QQ11QQ11"
		orphan.EventID = uuid.NewString()
		require.ErrorIs(t, repo.CreateTicket(ctx, orphan), domain.ErrEventNotFound)
	})

	t.Run("anonymous walk-ups do not collide on the pair index", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		eventID := testutil.InsertEvent(t, ctx, pool, "Open Day")

		for _, code := range []string{"WALKUP01", "WALKUP02"} {
			at := now
			require.NoError(t, repo.CreateTicket(ctx, domain.Ticket{
				ID: uuid.NewString(), EventID: eventID, TicketCode: code,
				Status: domain.TicketStatusApproved, Verified: true, ScannedAt: &at, CreatedAt: now,
			}))
		}
		sum, err := repo.SummarizeEvent(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.CheckedIn)
	})

	t.Run("lookups report missing and malformed ids", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		_, err := repo.GetTicket(ctx, uuid.NewString())
		require.ErrorIs(t, err, domain.ErrTicketNotFound)
		_, err = repo.GetTicket(ctx, "not-a-uuid")
		require.ErrorIs(t, err, domain.ErrInvalidID)

		err = repo.WithTx(ctx, func(txCtx context.Context) error {
			_, err := repo.GetTicketByCodeForUpdate(txCtx, "NOPE0000")
			return err
		})
		require.ErrorIs(t, err, domain.ErrTicketNotFound)

		found, err := repo.FindTicketByEventAndPerson(ctx, uuid.NewString(), uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("MarkCheckedIn only flips an unverified ticket", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		eventID := testutil.InsertEvent(t, ctx, pool, "Jazz Night")
		personID := testutil.InsertPerson(t, ctx, pool, "Grace Hopper", "grace@example.edu")
		ticketID := uuid.NewString()
		testutil.InsertTicket(t, ctx, pool, domain.Ticket{
			ID: ticketID, EventID: eventID, PersonID: personID, TicketCode: "GH000001",
			Status: domain.TicketStatusApproved, CreatedAt: now,
		})

		require.NoError(t, repo.MarkCheckedIn(ctx, ticketID, now, "staff-1"))
		require.ErrorIs(t, repo.MarkCheckedIn(ctx, ticketID, now.Add(time.Hour), "staff-2"), domain.ErrAlreadyCheckedIn)

		got, err := repo.GetTicket(ctx, ticketID)
		require.NoError(t, err)
		assert.True(t, got.Verified)
		require.NotNil(t, got.ScannedAt)
		assert.Equal(t, now, *got.ScannedAt)
		assert.Equal(t, "staff-1", got.CheckedInBy)
	})

	t.Run("verified implies approved at the schema level", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		eventID := testutil.InsertEvent(t, ctx, pool, "Chess Club")

		err := repo.CreateTicket(ctx, domain.Ticket{
			ID: uuid.NewString(), EventID: eventID, TicketCode: "BADROW01",
			Status: domain.TicketStatusPending, Verified: true, CreatedAt: now,
		})
		require.Error(t, err)
	})

	t.Run("ListApplicants orders by application time", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		eventID := testutil.InsertEvent(t, ctx, pool, "Robotics Demo")
		late := testutil.InsertPerson(t, ctx, pool, "Late Applicant", "late@example.edu")
		early := testutil.InsertPerson(t, ctx, pool, "Early Applicant", "early@example.edu")
		rejected := testutil.InsertPerson(t, ctx, pool, "Rejected Applicant", "no@example.edu")

		testutil.InsertTicket(t, ctx, pool, domain.Ticket{ID: uuid.NewString(), EventID: eventID, PersonID: late,
			TicketCode: "LATE0001", Status: domain.TicketStatusPending, CreatedAt: now.Add(time.Hour)})
		earlyID := uuid.NewString()
		testutil.InsertTicket(t, ctx, pool, domain.Ticket{ID: earlyID, EventID: eventID, PersonID: early,
			TicketCode: "EARLY001", Status: domain.TicketStatusPending, CreatedAt: now})
		testutil.InsertTicket(t, ctx, pool, domain.Ticket{ID: uuid.NewString(), EventID: eventID, PersonID: rejected,
			TicketCode: "REJECT01", Status: domain.TicketStatusRejected, CreatedAt: now})

		applicants, err := repo.ListApplicants(ctx, eventID, domain.TicketStatusPending)
		require.NoError(t, err)
		require.Len(t, applicants, 2)
		assert.Equal(t, domain.Applicant{
			TicketID: earlyID, PersonID: early, FullName: "Early Applicant", Email: "early@example.edu",
			AppliedAt: now, Status: domain.TicketStatusPending,
		}, applicants[0])
		assert.Equal(t, late, applicants[1].PersonID)

		require.NoError(t, repo.UpdateTicketStatus(ctx, earlyID, domain.TicketStatusApproved))
		sum, err := repo.SummarizeEvent(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReviewSummary{EventID: eventID, Pending: 1, Approved: 1, Rejected: 1}, sum)
	})
}

func TestCheckIn_ConcurrentScansAgainstPostgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	eventID := testutil.InsertEvent(t, ctx, pool, "Graduation")
	personID := testutil.InsertPerson(t, ctx, pool, "Ada Lovelace", "ada@example.edu")
	ticketID := uuid.NewString()
	testutil.InsertTicket(t, ctx, pool, domain.Ticket{
		ID: ticketID, EventID: eventID, PersonID: personID, TicketCode: "RACE0001",
		Status: domain.TicketStatusApproved, CreatedAt: time.Now().UTC(),
	})

	codec, err := qrpayload.NewCodec([]byte("integration-test-secret"), clock.NewSystem())
	require.NoError(t, err)
	token, err := codec.EncodeTicket(ticketID, "RACE0001")
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	svc := app.NewCheckInService(NewTicketRepository(pool), NewDirectoryRepository(pool), codec, clock.NewSystem(),
		app.WithCheckInLogger(logger))

	const scanners = 8
	var (
		mu     sync.Mutex
		counts = map[domain.ResultCode]int{}
		g      errgroup.Group
	)
	for i := 0; i < scanners; i++ {
		g.Go(func() error {
			res, err := svc.Scan(ctx, app.ScanInput{Token: token, CurrentEventID: eventID})
			if err != nil {
				return err
			}
			mu.Lock()
			counts[res.Code]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, counts[domain.CodeCheckInOK])
	assert.Equal(t, scanners-1, counts[domain.CodeAlreadyCheckedIn])
}
