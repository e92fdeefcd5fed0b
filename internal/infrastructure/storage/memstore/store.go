// Package memstore provides an in-memory transactional store implementing the
// domain repositories. A transaction snapshots the whole state and restores it
// when the unit of work fails, so it has the same all-or-nothing behaviour as
// the PostgreSQL store. It backs domain service tests and local demos.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/audit"
	"columbarium/internal/domain/auth"
	"columbarium/internal/domain/beneficiary"
	"columbarium/internal/domain/customer"
	"columbarium/internal/domain/niche"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
	"columbarium/internal/domain/succession"
)

type state struct {
	niches        map[id.ID]niche.Niche
	ownership     []niche.OwnershipEntry
	deceased      []niche.Deceased
	customers     map[id.ID]customer.Customer
	beneficiaries map[id.ID]beneficiary.Beneficiary
	sales         map[id.ID]sale.Sale
	refunds       []sale.Refund
	payments      []payment.Payment
	successions   []succession.Succession
	events        []audit.Event
	users         map[id.ID]auth.User
}

func newState() state {
	return state{
		niches:        map[id.ID]niche.Niche{},
		customers:     map[id.ID]customer.Customer{},
		beneficiaries: map[id.ID]beneficiary.Beneficiary{},
		sales:         map[id.ID]sale.Sale{},
		users:         map[id.ID]auth.User{},
	}
}

func (st state) clone() state {
	out := newState()
	for k, v := range st.niches {
		out.niches[k] = cloneNiche(v)
	}
	for k, v := range st.customers {
		out.customers[k] = cloneCustomer(v)
	}
	for k, v := range st.beneficiaries {
		out.beneficiaries[k] = cloneBeneficiary(v)
	}
	for k, v := range st.sales {
		out.sales[k] = cloneSale(v)
	}
	out.ownership = append([]niche.OwnershipEntry(nil), st.ownership...)
	for i := range out.ownership {
		out.ownership[i].EndDate = clonePtr(out.ownership[i].EndDate)
	}
	out.deceased = append([]niche.Deceased(nil), st.deceased...)
	out.refunds = append([]sale.Refund(nil), st.refunds...)
	out.payments = make([]payment.Payment, len(st.payments))
	for i, p := range st.payments {
		out.payments[i] = clonePayment(p)
	}
	out.successions = append([]succession.Succession(nil), st.successions...)
	out.events = append([]audit.Event(nil), st.events...)
	for k, v := range st.users {
		v.LastLoginAt = clonePtr(v.LastLoginAt)
		v.LockedUntil = clonePtr(v.LockedUntil)
		out.users[k] = v
	}
	return out
}

// Store is the in-memory database.
type Store struct {
	// txMu serialises units of work; mu guards state.
	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

type txKey struct{}

// RunInTransaction implements tx.Manager. On error the state is restored to
// what it was before fn started. Nested calls join the outer unit of work.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Niches returns the niche repository.
func (s *Store) Niches() *NicheRepo { return &NicheRepo{s: s} }

// Customers returns the customer repository.
func (s *Store) Customers() *CustomerRepo { return &CustomerRepo{s: s} }

// Beneficiaries returns the beneficiary ledger repository.
func (s *Store) Beneficiaries() *BeneficiaryRepo { return &BeneficiaryRepo{s: s} }

// Sales returns the sale repository.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

// Payments returns the payment repository.
func (s *Store) Payments() *PaymentRepo { return &PaymentRepo{s: s} }

// Successions returns the succession repository.
func (s *Store) Successions() *SuccessionRepo { return &SuccessionRepo{s: s} }

// Users returns the user repository.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Audit returns an audit sink whose entries roll back with the unit of work.
func (s *Store) Audit() *AuditSink { return &AuditSink{s: s} }

// AuditSink implements audit.Sink on the store state.
type AuditSink struct{ s *Store }

// Record implements audit.Sink.
func (a *AuditSink) Record(_ context.Context, e audit.Event) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.st.events = append(a.s.st.events, e)
	return nil
}

// Events returns the recorded events in order.
func (a *AuditSink) Events() []audit.Event {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return append([]audit.Event(nil), a.s.st.events...)
}

// Actions returns the recorded actions in order.
func (a *AuditSink) Actions() []audit.Action {
	events := a.Events()
	out := make([]audit.Action, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

// --- helpers ---

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func page[T any](items []T, f domain.ListFilter) domain.ListResult[T] {
	f.Normalize()
	total := len(items)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return domain.ListResult[T]{
		Items:      items[start:end],
		TotalCount: int64(total),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func sortByKey[T any](items []T, key func(T) string) {
	sort.SliceStable(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })
}
