// Package testkit wires every domain service over the in-memory store with a
// controllable clock. Used by service and handler tests.
package testkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appctx "columbarium/internal/core/context"
	"columbarium/internal/core/id"
	"columbarium/internal/core/numerator"
	"columbarium/internal/core/rules"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
	"columbarium/internal/domain/succession"
	"columbarium/internal/infrastructure/storage/memstore"
	"columbarium/pkg/logger"
)

// Env is a fully wired set of services.
type Env struct {
	Store     *memstore.Store
	Numerator *numerator.MockGenerator
	Audit     *memstore.AuditSink
	// Rejected holds events refused by FailAuditOn.
	Rejected  *RejectingSink

	Niches        *niche.Service
	Customers     *customer.Service
	Beneficiaries *beneficiary.Service
	Sales         *sale.Service
	Payments      *sale.PaymentService
	Maintenance   *payment.MaintenanceService
	Successions   *succession.Service

	now time.Time
	seq int
}

type options struct {
	policy *rules.SalePolicy
	months int
	start  time.Time
	failOn []audit.Action
}

// Option customises New.
type Option func(*options)

// WithPolicy installs a sale admission policy.
func WithPolicy(p *rules.SalePolicy) Option { return func(o *options) { o.policy = p } }

// WithMonths overrides the credit term.
func WithMonths(n int) Option { return func(o *options) { o.months = n } }

// WithStart sets the initial clock value.
func WithStart(t time.Time) Option { return func(o *options) { o.start = t } }

// FailAuditOn makes the audit sink refuse events with the given actions, so the
// surrounding transaction fails at its last step.
func FailAuditOn(actions ...audit.Action) Option {
	return func(o *options) { o.failOn = append(o.failOn, actions...) }
}

// ErrAuditRejected is returned by a sink configured with FailAuditOn.
var ErrAuditRejected = errors.New("audit sink rejected event")

// RejectingSink forwards events to the store sink unless their action is listed.
type RejectingSink struct {
	next   audit.Sink
	reject []audit.Action

	mu     sync.Mutex
	events []audit.Event
}

// Record implements audit.Sink.
func (r *RejectingSink) Record(ctx context.Context, e audit.Event) error {
	for _, a := range r.reject {
		if a == e.Action {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
			return ErrAuditRejected
		}
	}
	return r.next.Record(ctx, e)
}

// Events returns the refused events in order.
func (r *RejectingSink) Events() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...)
}

// DefaultStart is the clock value of a fresh Env.
var DefaultStart = time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)

// New builds an Env.
func New(opts ...Option) *Env {
	o := options{start: DefaultStart}
	for _, opt := range opts {
		opt(&o)
	}

	store := memstore.New()
	e := &Env{
		Store:     store,
		Numerator: &numerator.MockGenerator{},
		Audit:     store.Audit(),
		now:       o.start,
	}
	clock := func() time.Time { return e.now }
	e.Rejected = &RejectingSink{next: e.Audit, reject: o.failOn}
	var sink audit.Sink = e.Rejected

	e.Niches = niche.NewService(store.Niches(), store, sink)
	e.Customers = customer.NewService(store.Customers(), store, sink)
	e.Beneficiaries = beneficiary.NewService(store.Beneficiaries(), store.Niches(), store.Customers(), store, sink).
		WithClock(clock)

	cfg := sale.Config{
		Sales:         store.Sales(),
		Niches:        store.Niches(),
		Customers:     store.Customers(),
		Payments:      store.Payments(),
		Beneficiaries: e.Beneficiaries,
		Numerator:     e.Numerator,
		TxManager:     store,
		Audit:         sink,
		Policy:        o.policy,
		Months:        o.months,
		Clock:         clock,
	}
	e.Sales = sale.NewService(cfg)
	e.Payments = sale.NewPaymentService(cfg)
	e.Maintenance = payment.NewMaintenanceService(store.Payments(), store.Niches(), e.Numerator, store, sink).
		WithClock(clock)
	e.Successions = succession.NewService(succession.Config{
		Successions:   store.Successions(),
		Niches:        store.Niches(),
		Customers:     store.Customers(),
		Sales:         store.Sales(),
		Beneficiaries: e.Beneficiaries,
		TxManager:     store,
		Audit:         sink,
		Clock:         clock,
	})
	return e
}

// Now returns the current clock value.
func (e *Env) Now() time.Time { return e.now }

// Advance moves the clock forward.
func (e *Env) Advance(d time.Duration) { e.now = e.now.Add(d) }

// SetNow sets the clock.
func (e *Env) SetNow(t time.Time) { e.now = t }

// Ctx returns a context carrying a seller actor and a no-op logger.
func (e *Env) Ctx() context.Context {
	ctx := logger.WithLogger(context.Background(), logger.Nop())
	return appctx.WithUser(ctx, &appctx.UserContext{
		UserID:   "user-seller",
		Username: "seller",
		Role:     appctx.RoleSeller,
	})
}

// Niche registers an available niche with the given price.
func (e *Env) Niche(t testing.TB, price string) *niche.Niche {
	t.Helper()
	e.seq++
	n := niche.NewNiche("A", "1", 1, e.seq, niche.TypeMarble, types.MustMoney(price))
	require.NoError(t, e.Niches.Create(e.Ctx(), n))
	return n
}

// Customer registers an active customer.
func (e *Env) Customer(t testing.TB, first, last string) *customer.Customer {
	t.Helper()
	e.seq++
	c := customer.NewCustomer(first, last, fmt.Sprintf("55%08d", e.seq))
	require.NoError(t, e.Customers.Create(e.Ctx(), c))
	return c
}

// Heirs returns n valid beneficiary inputs with orders 1..n.
func Heirs(n int) []beneficiary.Input {
	names := []string{"Maria Lopez", "Juan Lopez", "Ana Lopez", "Pedro Lopez", "Luisa Lopez"}
	rels := []beneficiary.Relationship{"esposa", "hijo", "hija", "hermano", "nieta"}
	out := make([]beneficiary.Input, n)
	for i := range out {
		out[i] = beneficiary.Input{
			Name:         names[i%len(names)],
			Relationship: rels[i%len(rels)],
			Order:        i + 1,
		}
	}
	return out
}

// Designate gives nicheID three beneficiaries designated by customerID.
func (e *Env) Designate(t testing.TB, nicheID, customerID id.ID) []*beneficiary.Beneficiary {
	t.Helper()
	list, err := e.Beneficiaries.ReplaceForNiche(e.Ctx(), nicheID, customerID, Heirs(3))
	require.NoError(t, err)
	return list
}

// Sold creates a niche sold to a new customer for 35000 with 5000 down.
func (e *Env) Sold(t testing.TB) (*niche.Niche, *customer.Customer, *sale.Sale) {
	t.Helper()
	n := e.Niche(t, "35000")
	c := e.Customer(t, "Carlos", "Ramirez")
	e.Designate(t, n.ID, c.ID)
	res, err := e.Sales.CreateSale(e.Ctx(), n.ID, c.ID, types.MustMoney("35000"), types.MustMoney("5000"))
	require.NoError(t, err)
	return res.Niches[0], c, res.Sale
}
