package memstore

import (
	"context"
	"slices"
	"sort"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/sale"
)

// SaleRepo implements sale.Repository.
type SaleRepo struct{ s *Store }

var _ sale.Repository = (*SaleRepo)(nil)

func (r *SaleRepo) Create(_ context.Context, s *sale.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.sales {
		if existing.Folio == s.Folio {
			return apperror.NewDuplicate("sale", "folio", s.Folio)
		}
	}
	r.s.st.sales[s.ID] = cloneSale(*s)
	return nil
}

func (r *SaleRepo) GetByID(_ context.Context, saleID id.ID) (*sale.Sale, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	s, ok := r.s.st.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	out := cloneSale(s)
	return &out, nil
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.GetByID(ctx, saleID)
}

func (r *SaleRepo) FindOpenByPrimaryNicheForUpdate(_ context.Context, nicheID id.ID) (*sale.Sale, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *sale.Sale
	for _, s := range r.s.st.sales {
		if s.Status == sale.StatusCancelled || s.NicheID != nicheID {
			continue
		}
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			c := cloneSale(s)
			found = &c
		}
	}
	return found, nil
}

func (r *SaleRepo) List(_ context.Context, f sale.ListFilter) (domain.ListResult[*sale.Sale], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var items []*sale.Sale
	for _, s := range r.s.st.sales {
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.CustomerID != nil && s.CurrentCustomerID != *f.CustomerID {
			continue
		}
		if f.NicheID != nil && !slices.Contains(s.NicheIDs, *f.NicheID) {
			continue
		}
		if f.Search != "" && !containsFold(s.Folio, f.Search) {
			continue
		}
		c := cloneSale(s)
		items = append(items, &c)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return page(items, f.ListFilter), nil
}

func (r *SaleRepo) Update(_ context.Context, s *sale.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.sales[s.ID]
	if !ok {
		return apperror.NewNotFound("sale", s.ID)
	}
	if current.Version != s.Version {
		return apperror.NewConcurrentModification("sales", s.ID)
	}
	s.SetVersion(s.Version + 1)
	r.s.st.sales[s.ID] = cloneSale(*s)
	return nil
}

func (r *SaleRepo) CreateRefund(_ context.Context, rf *sale.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.refunds = append(r.s.st.refunds, *rf)
	return nil
}

func (r *SaleRepo) ListRefunds(_ context.Context, saleID id.ID) ([]*sale.Refund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*sale.Refund
	for _, rf := range r.s.st.refunds {
		if rf.SaleID == saleID {
			c := rf
			out = append(out, &c)
		}
	}
	return out, nil
}
