package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/domain/repository"
	"tripdesk-service/internal/infrastructure/lock"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/metrics"
	"tripdesk-service/pkg/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memBookingRepo struct {
	mu          sync.Mutex
	seq         int
	items       map[string]*entity.Booking
	commissions *memCommissionRepo
}

func newMemBookingRepo(commissions *memCommissionRepo) *memBookingRepo {
	return &memBookingRepo{items: make(map[string]*entity.Booking), commissions: commissions}
}

func (r *memBookingRepo) Create(ctx context.Context, b *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		r.seq++
		b.ID = fmt.Sprintf("bk-%d", r.seq)
	}
	b.Version = 1
	b.Recalculate()
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *memBookingRepo) FindByID(ctx context.Context, id string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, entity.NotFound("booking", id)
	}
	c := b.Clone()
	c.Recalculate()
	return c, nil
}

func (r *memBookingRepo) Update(ctx context.Context, b *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[b.ID]
	if !ok {
		return entity.NotFound("booking", b.ID)
	}
	if stored.Version != b.Version {
		return entity.ErrConcurrentModification
	}
	b.Recalculate()
	b.Version++
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *memBookingRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return entity.NotFound("booking", id)
	}
	delete(r.items, id)
	return nil
}

func (r *memBookingRepo) List(ctx context.Context, f repository.BookingFilter) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.items {
		if f.AgentID != "" && b.AgentID != f.AgentID {
			continue
		}
		if f.CustomerID != "" && b.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBookingRepo) FindOverlapping(ctx context.Context, q repository.OverlapQuery) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.items {
		if b.CustomerID != q.CustomerID || b.Destination != q.Destination || b.ID == q.ExcludeBookingID {
			continue
		}
		if !b.Status.BlocksDates() || !utils.RangesOverlap(b.StartDate, b.EndDate, q.StartDate, q.EndDate) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *memBookingRepo) FindCompletedWithoutCommission(ctx context.Context, limit int) ([]*entity.Booking, error) {
	r.mu.Lock()
	var candidates []*entity.Booking
	for _, b := range r.items {
		if b.Status == entity.BookingCompleted || b.Status == entity.BookingRefunded {
			candidates = append(candidates, b.Clone())
		}
	}
	r.mu.Unlock()

	var out []*entity.Booking
	for _, b := range candidates {
		if _, err := r.commissions.FindByBookingID(ctx, b.ID); errors.Is(err, entity.ErrNotFound) {
			out = append(out, b)
		}
	}
	return out, nil
}

// put stores a booking as-is, bypassing the engine
func (r *memBookingRepo) put(b *entity.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.ID] = b.Clone()
}

type memPaymentRepo struct {
	mu    sync.Mutex
	seq   int
	items []*entity.Payment
}

func (r *memPaymentRepo) Create(ctx context.Context, p *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	p.ID = fmt.Sprintf("pay-%d", r.seq)
	c := *p
	r.items = append(r.items, &c)
	return nil
}

func (r *memPaymentRepo) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID == id {
			c := *p
			return &c, nil
		}
	}
	return nil, entity.NotFound("payment", id)
}

func (r *memPaymentRepo) FindByBooking(ctx context.Context, bookingID string) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Payment
	for _, p := range r.items {
		if p.BookingID == bookingID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) FindRecentCompleted(ctx context.Context, bookingID string, amount decimal.Decimal, since time.Time) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Payment
	for i := len(r.items) - 1; i >= 0; i-- {
		p := r.items[i]
		if p.BookingID == bookingID && p.Status == entity.TransactionCompleted && !p.IsRefund() &&
			p.Amount.Equal(amount) && !p.CreatedAt.Before(since) {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) UpdateStatus(ctx context.Context, p *entity.Payment, from entity.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, stored := range r.items {
		if stored.ID == p.ID {
			if stored.Status != from {
				return entity.ErrConcurrentModification
			}
			c := *p
			r.items[i] = &c
			return nil
		}
	}
	return entity.NotFound("payment", p.ID)
}

func (r *memPaymentRepo) FindStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Payment
	for _, p := range r.items {
		if p.Status == entity.TransactionProcessing && p.CreatedAt.Before(cutoff) {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

type memCommissionRepo struct {
	mu         sync.Mutex
	seq        int
	items      map[string]*entity.Commission
	createErrs []error
	creates    int
	// onCreate runs once under the lock before the next insert
	onCreate func(items map[string]*entity.Commission)
}

func newMemCommissionRepo() *memCommissionRepo {
	return &memCommissionRepo{items: make(map[string]*entity.Commission)}
}

func (r *memCommissionRepo) Create(ctx context.Context, c *entity.Commission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.onCreate != nil {
		r.onCreate(r.items)
		r.onCreate = nil
	}
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		return err
	}
	for _, existing := range r.items {
		if existing.BookingID == c.BookingID {
			return entity.ErrDuplicateKey
		}
	}
	r.seq++
	r.creates++
	c.ID = fmt.Sprintf("com-%d", r.seq)
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memCommissionRepo) FindByID(ctx context.Context, id string) (*entity.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, entity.NotFound("commission", id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCommissionRepo) FindByBookingID(ctx context.Context, bookingID string) (*entity.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.BookingID == bookingID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, entity.NotFound("commission", bookingID)
}

func (r *memCommissionRepo) UpdateStatus(ctx context.Context, c *entity.Commission, from entity.CommissionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[c.ID]
	if !ok {
		return entity.NotFound("commission", c.ID)
	}
	if stored.Status != from {
		return entity.ErrConcurrentModification
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memCommissionRepo) List(ctx context.Context, f repository.CommissionFilter) ([]*entity.Commission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Commission
	for _, c := range r.items {
		if f.AgentID != "" && c.AgentID != f.AgentID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type memTierRepo struct {
	tiers []entity.CommissionTier
}

func (r *memTierRepo) ListActive(ctx context.Context) ([]entity.CommissionTier, error) {
	return r.tiers, nil
}

type memAgentRepo struct {
	mu     sync.Mutex
	agents map[string]*entity.Agent
}

func (r *memAgentRepo) GetByID(ctx context.Context, id string) (*entity.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, entity.NotFound("agent", id)
	}
	cp := *a
	return &cp, nil
}

func (r *memAgentRepo) AddEarnings(ctx context.Context, id string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return entity.NotFound("agent", id)
	}
	a.TotalEarnings = a.TotalEarnings.Add(amount)
	return nil
}

type memCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*entity.Customer
	tripErr   error
}

func (r *memCustomerRepo) FindByID(ctx context.Context, id string) (*entity.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, entity.NotFound("customer", id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCustomerRepo) RecordCompletedTrip(ctx context.Context, id string, amount decimal.Decimal, points int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tripErr != nil {
		return r.tripErr
	}
	c, ok := r.customers[id]
	if !ok {
		return entity.NotFound("customer", id)
	}
	c.TotalTrips++
	c.TotalSpent = c.TotalSpent.Add(amount)
	c.LoyaltyPoints += points
	c.LastTripAt = &at
	return nil
}

type memReferenceRepo struct {
	mu  sync.Mutex
	seq map[string]int64
}

func (r *memReferenceRepo) NextReference(ctx context.Context, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq == nil {
		r.seq = make(map[string]int64)
	}
	r.seq[prefix]++
	return utils.FormatReference(prefix, "20260301", r.seq[prefix]), nil
}

type stubGateway struct {
	mu      sync.Mutex
	decline bool
	err     error
	calls   int
}

func (g *stubGateway) Charge(ctx context.Context, req repository.ChargeRequest) (*repository.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.decline {
		return &repository.ChargeResult{Approved: false, DeclineReason: "card declined"}, nil
	}
	return &repository.ChargeResult{Approved: true, GatewayReference: "GW-" + req.TransactionID}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entity.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event entity.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []entity.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []entity.EventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	agentOne   = entity.Actor{ID: "agent-1"}
	agentTwo   = entity.Actor{ID: "agent-2"}
	backOffice = entity.Actor{ID: "manager-1", CanViewAll: true}
)

// engine wires every usecase over in-memory fakes
type engine struct {
	clock       *fakeClock
	bookings    *memBookingRepo
	payments    *memPaymentRepo
	commissions *memCommissionRepo
	agents      *memAgentRepo
	customers   *memCustomerRepo
	gateway     *stubGateway
	events      *recordingPublisher

	guard      *ConflictGuard
	lifecycle  *BookingLifecycle
	processor  *PaymentProcessor
	commission *CommissionEngine
	reconciler *Reconciler
}

func newEngine() *engine {
	e := &engine{
		clock:       newFakeClock(),
		payments:    &memPaymentRepo{},
		commissions: newMemCommissionRepo(),
		agents: &memAgentRepo{agents: map[string]*entity.Agent{
			"agent-1": {ID: "agent-1", Name: "Ayu"},
			"agent-2": {ID: "agent-2", Name: "Budi"},
		}},
		customers: &memCustomerRepo{customers: map[string]*entity.Customer{
			"cust-1": {ID: "cust-1", AgentID: "agent-1", Name: "Citra", Phone: "081234567890", Email: "citra@example.com"},
			"cust-2": {ID: "cust-2", AgentID: "agent-2", Name: "Dewi"},
		}},
		gateway: &stubGateway{},
		events:  &recordingPublisher{},
	}
	e.bookings = newMemBookingRepo(e.commissions)

	log := logger.NewNopLogger()
	m := metrics.NewNopMetrics()
	refs := &memReferenceRepo{}
	locker := lock.NewMemoryLocker()
	auth := OwnershipAuthorizer{}

	e.guard = NewConflictGuard(e.bookings, e.payments, DefaultDuplicatePaymentWindow, log).WithClock(e.clock.Now)
	e.commission = NewCommissionEngine(e.commissions, &memTierRepo{tiers: entity.DefaultCommissionTiers()}, e.agents,
		e.bookings, refs, auth, locker, e.events, decimal.NewFromInt(10000), log, m).WithClock(e.clock.Now)
	e.lifecycle = NewBookingLifecycle(e.bookings, e.customers, refs, e.guard, e.commission, auth, locker,
		e.events, "USD", log, m).WithClock(e.clock.Now)
	e.processor = NewPaymentProcessor(e.bookings, e.payments, refs, e.gateway, e.guard, auth, locker,
		e.events, log, m).WithClock(e.clock.Now)
	e.reconciler = NewReconciler(e.bookings, e.commission, e.processor, 15*time.Minute, log).WithClock(e.clock.Now)
	return e
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse(utils.DATE_LAYOUT, s)
	if err != nil {
		panic(err)
	}
	return t
}

func bookingInput(destination, start, end string) CreateBookingInput {
	return CreateBookingInput{
		CustomerID:  "cust-1",
		Destination: destination,
		StartDate:   date(start),
		EndDate:     date(end),
		Travelers:   2,
		Pricing: entity.Pricing{
			BasePrice:     dec("1000"),
			Taxes:         dec("100"),
			ServiceCharge: dec("0"),
			Discount:      dec("50"),
		},
	}
}

// capturedMinusRefunded is Σ captured charges − Σ refunds for a booking
func (e *engine) capturedMinusRefunded(bookingID string) decimal.Decimal {
	payments, _ := e.payments.FindByBooking(context.Background(), bookingID)
	total := decimal.Zero
	for _, p := range payments {
		switch {
		case p.IsRefund() && p.Status == entity.TransactionCompleted:
			total = total.Add(p.Amount)
		case !p.IsRefund() && (p.Status == entity.TransactionCompleted || p.Status == entity.TransactionRefunded):
			total = total.Add(p.Amount)
		}
	}
	return total
}

func ptr[T any](v T) *T {
	return &v
}
