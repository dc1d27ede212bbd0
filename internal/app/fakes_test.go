package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"condo_collections/internal/domain/association"
	"condo_collections/internal/domain/delinquency"
	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/logger"
	"condo_collections/internal/infra/metrics"
	"condo_collections/internal/infra/retry"
	"condo_collections/internal/infra/templates"
)

var cycleTime = time.Date(2026, time.October, 18, 6, 0, 0, 0, time.UTC)

const period = "2026-10"

type fakeLedger struct {
	mu        sync.Mutex
	units     map[string]delinquency.UnitFinancialSnapshot
	order     []string
	charges   map[string][]delinquency.ChargeLine
	updates   []string
	failWrite map[string]bool
	readErr   error
}

func newFakeLedger(units ...delinquency.UnitFinancialSnapshot) *fakeLedger {
	l := &fakeLedger{
		units:     make(map[string]delinquency.UnitFinancialSnapshot),
		charges:   make(map[string][]delinquency.ChargeLine),
		failWrite: make(map[string]bool),
	}
	for _, u := range units {
		l.units[u.UnitID] = u
		l.order = append(l.order, u.UnitID)
	}
	return l
}

func (l *fakeLedger) GetAllUnitSnapshots(context.Context) ([]delinquency.UnitFinancialSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	out := make([]delinquency.UnitFinancialSnapshot, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.units[id])
	}
	return out, nil
}

func (l *fakeLedger) UpdateUnitStatus(_ context.Context, unitID string, s delinquency.LifecycleState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWrite[unitID] {
		return errors.New("ledger write timeout")
	}
	u, ok := l.units[unitID]
	if !ok {
		return delinquency.ErrUnitNotFound
	}
	u.CurrentStatus = s
	l.units[unitID] = u
	l.updates = append(l.updates, unitID)
	return nil
}

func (l *fakeLedger) GetBalanceBreakdown(_ context.Context, unitID string) ([]delinquency.ChargeLine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.charges[unitID], nil
}

func (l *fakeLedger) state(unitID string) delinquency.LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.units[unitID].CurrentStatus
}

func (l *fakeLedger) setOwed(unitID, owed string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.units[unitID]
	u.TotalOwed = decimal.RequireFromString(owed)
	l.units[unitID] = u
}

type fakeRecords struct {
	mu      sync.Mutex
	records []*notification.Record
}

func (r *fakeRecords) HasRecord(_ context.Context, unitID string, tier notification.NoticeTier, p string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.UnitID == unitID && rec.Tier == tier && rec.Period == p {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRecords) WriteRecord(_ context.Context, rec *notification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeRecords) ListRecordsForUnit(_ context.Context, unitID string) ([]*notification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Record
	for _, rec := range r.records {
		if rec.UnitID == unitID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRecords) forUnit(unitID string) []*notification.Record {
	out, _ := r.ListRecordsForUnit(context.Background(), unitID)
	return out
}

type fakeEvents struct {
	mu     sync.Mutex
	events []delinquency.EscalationEvent
	err    error
}

func (e *fakeEvents) AppendEvent(_ context.Context, ev delinquency.EscalationEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeEvents) ListEventsForUnit(_ context.Context, unitID string) ([]delinquency.EscalationEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []delinquency.EscalationEvent
	for _, ev := range e.events {
		if ev.UnitID == unitID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeContacts struct {
	contacts []*association.Contact
	err      error
}

func (c *fakeContacts) ListContacts(context.Context) ([]*association.Contact, error) {
	return c.contacts, c.err
}

type fakeCycles struct {
	mu   sync.Mutex
	runs []delinquency.CycleRun
}

func (c *fakeCycles) RecordCycle(_ context.Context, run *delinquency.CycleRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, *run)
	return nil
}

func (c *fakeCycles) LatestCycle(context.Context) (*delinquency.CycleRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.runs) == 0 {
		return nil, delinquency.ErrCycleNotFound
	}
	run := c.runs[len(c.runs)-1]
	return &run, nil
}

// fakeTransport records every successful message and fails for recipients
// listed in fail.
type fakeTransport struct {
	mu    sync.Mutex
	sent  []notification.Message
	calls map[string]int
	fail  map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{calls: make(map[string]int), fail: make(map[string]bool)}
}

func (t *fakeTransport) Send(_ context.Context, msg notification.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[msg.Recipient]++
	if t.fail[msg.Recipient] {
		return fmt.Errorf("relay refused %s", msg.Recipient)
	}
	t.sent = append(t.sent, msg)
	return nil
}

func (t *fakeTransport) to(recipient string) []notification.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []notification.Message
	for _, m := range t.sent {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	return out
}

func (t *fakeTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
	t.calls = make(map[string]int)
}

type fakePublisher struct {
	mu          sync.Mutex
	escalations []delinquency.EscalationEvent
	cycles      []delinquency.CycleRun
}

func (p *fakePublisher) PublishEscalation(_ context.Context, ev delinquency.EscalationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escalations = append(p.escalations, ev)
	return nil
}

func (p *fakePublisher) PublishCycle(_ context.Context, run delinquency.CycleRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles = append(p.cycles, run)
	return nil
}

const (
	boardEmail    = "treasurer@example.org"
	managerEmail  = "manager@example.org"
	attorneyEmail = "counsel@law.example"
	boardChatID   = "-100200300"
)

func defaultContacts() []*association.Contact {
	return []*association.Contact{
		{ID: 1, Name: "Pat", Email: boardEmail, Role: association.RoleTreasurer, IsActive: true},
		{ID: 2, Name: "Sam", Email: managerEmail, Role: association.RoleManager, IsActive: true},
		{ID: 3, Name: "Lee", Email: attorneyEmail, Role: association.RoleAttorney, IsActive: true},
	}
}

type harness struct {
	ledger    *fakeLedger
	records   *fakeRecords
	events    *fakeEvents
	contacts  *fakeContacts
	cycles    *fakeCycles
	mail      *fakeTransport
	chat      *fakeTransport
	publisher *fakePublisher
	svc       *CollectionService
}

func newHarness(t *testing.T, units ...delinquency.UnitFinancialSnapshot) *harness {
	t.Helper()
	catalog, err := templates.LoadCatalog("")
	require.NoError(t, err)

	h := &harness{
		ledger:    newFakeLedger(units...),
		records:   &fakeRecords{},
		events:    &fakeEvents{},
		contacts:  &fakeContacts{contacts: defaultContacts()},
		cycles:    &fakeCycles{},
		mail:      newFakeTransport(),
		chat:      newFakeTransport(),
		publisher: &fakePublisher{},
	}

	log := logger.Discard()
	rec := metrics.NoopRecorder{}
	dispatcher := NewDispatcher(DispatcherConfig{
		AssociationName: "Harbor View Condominium",
		Location:        time.UTC,
		Retry:           retry.Policy{MaxAttempts: 2},
		Timeout:         time.Second,
	}, h.records, h.ledger, h.events, h.mail, &BoardChat{Transport: h.chat, ChatID: boardChatID},
		templates.NewRenderer(catalog), rec, log)
	dispatcher.now = func() time.Time { return cycleTime }

	applier := NewApplier(h.ledger, h.events, h.publisher, rec, log)
	h.svc = NewCollectionService(h.ledger, h.contacts, h.cycles, applier, dispatcher, h.publisher, rec, log, 4)
	h.svc.now = func() time.Time { return cycleTime }
	return h
}

func (h *harness) run(t *testing.T) *CycleSummary {
	t.Helper()
	summary, err := h.svc.RunCycle(context.Background(), delinquency.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, summary)
	return summary
}

func unit(id, owed, charge string, state delinquency.LifecycleState) delinquency.UnitFinancialSnapshot {
	return delinquency.UnitFinancialSnapshot{
		UnitID:        id,
		UnitNumber:    "#" + id,
		OwnerName:     "Owner " + id,
		TotalOwed:     decimal.RequireFromString(owed),
		MonthlyCharge: decimal.RequireFromString(charge),
		CurrentStatus: state,
		ContactEmail:  id + "@owners.example",
	}
}

func statuses(results []notification.DispatchResult, kind notification.DispatchKind) []notification.DispatchStatus {
	var out []notification.DispatchStatus
	for _, r := range results {
		if r.Kind == kind {
			out = append(out, r.Status)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
