package memstore

import (
	"context"
	"sort"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain/payment"
)

// PaymentRepo implements payment.Repository.
type PaymentRepo struct{ s *Store }

var _ payment.Repository = (*PaymentRepo)(nil)

func (r *PaymentRepo) Create(_ context.Context, p *payment.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.payments {
		if existing.ReceiptNumber == p.ReceiptNumber {
			return apperror.NewDuplicate("payment", "receipt_number", p.ReceiptNumber)
		}
	}
	r.s.st.payments = append(r.s.st.payments, clonePayment(*p))
	return nil
}

func (r *PaymentRepo) GetByID(_ context.Context, paymentID id.ID) (*payment.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.st.payments {
		if p.ID == paymentID {
			c := clonePayment(p)
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("payment", paymentID)
}

func (r *PaymentRepo) ListBySale(_ context.Context, saleID id.ID) ([]*payment.Payment, error) {
	out := r.filter(func(p payment.Payment) bool {
		sid := p.SaleID()
		return sid != nil && *sid == saleID
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (r *PaymentRepo) ListMaintenanceByNiche(_ context.Context, nicheID id.ID) ([]*payment.Payment, error) {
	out := r.filter(func(p payment.Payment) bool {
		m, ok := p.Variant.(payment.MaintenancePayment)
		return ok && m.NicheID == nicheID
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Variant.(payment.MaintenancePayment).Year > out[j].Variant.(payment.MaintenancePayment).Year
	})
	return out, nil
}

func (r *PaymentRepo) MaintenanceExists(_ context.Context, nicheID id.ID, year int) (bool, error) {
	out := r.filter(func(p payment.Payment) bool {
		m, ok := p.Variant.(payment.MaintenancePayment)
		return ok && p.Status == payment.StatusCompleted && m.NicheID == nicheID && m.Year == year
	})
	return len(out) > 0, nil
}

func (r *PaymentRepo) filter(keep func(payment.Payment) bool) []*payment.Payment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*payment.Payment
	for _, p := range r.s.st.payments {
		if keep(p) {
			c := clonePayment(p)
			out = append(out, &c)
		}
	}
	return out
}
