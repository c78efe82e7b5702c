package app

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mehmetkaplanceng-afk/ETUNI/internal/domain"
)

// fakeStore is an in-memory stand-in for the postgres repositories. Transactions are
// serialized by txMu, which plays the part of the row locks.
type fakeStore struct {
	txMu sync.Mutex

	mu      sync.Mutex
	events  map[string]domain.Event
	people  map[string]domain.Person
	tickets map[string]domain.Ticket

	calls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:  make(map[string]domain.Event),
		people:  make(map[string]domain.Person),
		tickets: make(map[string]domain.Ticket),
	}
}

func (f *fakeStore) addEvent(e domain.Event) *fakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.ID] = e
	return f
}

func (f *fakeStore) addPerson(p domain.Person) *fakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.people[p.ID] = p
	return f
}

func (f *fakeStore) addTicket(t domain.Ticket) *fakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.ID] = t
	return f
}

func (f *fakeStore) ticket(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[id]
}

func (f *fakeStore) ticketCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets)
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (domain.Event, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeStore) GetPerson(_ context.Context, id string) (domain.Person, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.people[id]
	if !ok {
		return domain.Person{}, domain.ErrPersonNotFound
	}
	return p, nil
}

func (f *fakeStore) GetTicket(_ context.Context, id string) (domain.Ticket, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}
	return t, nil
}

func (f *fakeStore) GetTicketForUpdate(ctx context.Context, id string) (domain.Ticket, error) {
	return f.GetTicket(ctx, id)
}

func (f *fakeStore) GetTicketByCodeForUpdate(_ context.Context, code string) (domain.Ticket, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.TicketCode == code {
			return t, nil
		}
	}
	return domain.Ticket{}, domain.ErrTicketNotFound
}

func (f *fakeStore) FindTicketByEventAndPerson(_ context.Context, eventID, personID string) (*domain.Ticket, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.EventID == eventID && t.PersonID == personID {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindTicketByEventAndPersonForUpdate(ctx context.Context, eventID, personID string) (*domain.Ticket, error) {
	return f.FindTicketByEventAndPerson(ctx, eventID, personID)
}

func (f *fakeStore) ListTicketsByPerson(_ context.Context, personID string) ([]domain.Ticket, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.PersonID == personID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) TicketCodeExists(_ context.Context, code string) (bool, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.TicketCode == code {
			return true, nil
		}
	}
	return false, nil
}

// CreateTicket enforces the same unique constraints as the schema.
func (f *fakeStore) CreateTicket(_ context.Context, ticket domain.Ticket) error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.TicketCode == ticket.TicketCode {
			return domain.ErrTicketCodeTaken
		}
		if ticket.PersonID != "" && t.EventID == ticket.EventID && t.PersonID == ticket.PersonID {
			return domain.ErrAlreadyJoined
		}
	}
	f.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeStore) MarkCheckedIn(_ context.Context, id string, scannedAt time.Time, organizerID string) error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	if t.Verified {
		return domain.ErrAlreadyCheckedIn
	}
	at := scannedAt
	t.Verified = true
	t.Status = domain.TicketStatusApproved
	t.ScannedAt = &at
	t.CheckedInBy = organizerID
	f.tickets[id] = t
	return nil
}

func (f *fakeStore) UpdateTicketStatus(_ context.Context, id string, status domain.TicketStatus) error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	t.Status = status
	f.tickets[id] = t
	return nil
}

func (f *fakeStore) ListApplicants(_ context.Context, eventID string, status domain.TicketStatus) ([]domain.Applicant, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Applicant
	for _, t := range f.tickets {
		if t.EventID != eventID || t.Status != status || t.PersonID == "" {
			continue
		}
		p := f.people[t.PersonID]
		out = append(out, domain.Applicant{
			TicketID:  t.ID,
			PersonID:  t.PersonID,
			FullName:  p.FullName,
			Email:     p.Email,
			AppliedAt: t.CreatedAt,
			Status:    t.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedAt.Before(out[j].AppliedAt) })
	return out, nil
}

func (f *fakeStore) SummarizeEvent(_ context.Context, eventID string) (domain.ReviewSummary, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := domain.ReviewSummary{EventID: eventID}
	for _, t := range f.tickets {
		if t.EventID != eventID {
			continue
		}
		switch t.Status {
		case domain.TicketStatusPending:
			sum.Pending++
		case domain.TicketStatusApproved:
			sum.Approved++
		case domain.TicketStatusRejected:
			sum.Rejected++
		}
		if t.Verified {
			sum.CheckedIn++
		}
	}
	return sum, nil
}

// sequenceCodes returns a generator that yields codes in order, repeating the last.
func sequenceCodes(codes ...string) codeGenerator {
	var (
		mu sync.Mutex
		i  int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	audits []domain.ScanAudit
}

func (r *recordingObserver) ObserveScan(_ context.Context, a domain.ScanAudit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, a)
}

func (r *recordingObserver) all() []domain.ScanAudit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ScanAudit(nil), r.audits...)
}
