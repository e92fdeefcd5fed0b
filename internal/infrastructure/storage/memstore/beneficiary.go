package memstore

import (
	"context"
	"sort"
	"strconv"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain/beneficiary"
)

// BeneficiaryRepo implements beneficiary.Repository.
type BeneficiaryRepo struct{ s *Store }

var _ beneficiary.Repository = (*BeneficiaryRepo)(nil)

func (r *BeneficiaryRepo) CreateMany(_ context.Context, list []*beneficiary.Beneficiary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	taken := make(map[id.ID]map[int]bool)
	for _, b := range r.s.st.beneficiaries {
		if b.IsActive {
			markPriority(taken, b.NicheID, b.Order)
		}
	}
	for _, b := range list {
		if !b.IsActive {
			continue
		}
		if taken[b.NicheID][b.Order] {
			return apperror.NewDuplicate("beneficiary", "priority", strconv.Itoa(b.Order))
		}
		markPriority(taken, b.NicheID, b.Order)
	}
	for _, b := range list {
		r.s.st.beneficiaries[b.ID] = cloneBeneficiary(*b)
	}
	return nil
}

// markPriority mirrors the partial unique index on active (niche, priority).
func markPriority(taken map[id.ID]map[int]bool, nicheID id.ID, order int) {
	if taken[nicheID] == nil {
		taken[nicheID] = make(map[int]bool)
	}
	taken[nicheID][order] = true
}

func (r *BeneficiaryRepo) GetByID(_ context.Context, beneficiaryID id.ID) (*beneficiary.Beneficiary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.st.beneficiaries[beneficiaryID]
	if !ok {
		return nil, apperror.NewNotFound("beneficiary", beneficiaryID)
	}
	out := cloneBeneficiary(b)
	return &out, nil
}

func (r *BeneficiaryRepo) Update(_ context.Context, b *beneficiary.Beneficiary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.beneficiaries[b.ID]; !ok {
		return apperror.NewNotFound("beneficiary", b.ID)
	}
	r.s.st.beneficiaries[b.ID] = cloneBeneficiary(*b)
	return nil
}

func (r *BeneficiaryRepo) ListByNiche(_ context.Context, nicheID id.ID, activeOnly bool) ([]*beneficiary.Beneficiary, error) {
	return r.filter(func(b beneficiary.Beneficiary) bool {
		return b.NicheID == nicheID && (!activeOnly || b.IsActive)
	}), nil
}

func (r *BeneficiaryRepo) ListActiveByNicheForUpdate(ctx context.Context, nicheID id.ID) ([]*beneficiary.Beneficiary, error) {
	return r.ListByNiche(ctx, nicheID, true)
}

func (r *BeneficiaryRepo) ListByDesignator(_ context.Context, customerID id.ID) ([]*beneficiary.Beneficiary, error) {
	return r.filter(func(b beneficiary.Beneficiary) bool { return b.DesignatedBy == customerID }), nil
}

func (r *BeneficiaryRepo) filter(keep func(beneficiary.Beneficiary) bool) []*beneficiary.Beneficiary {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*beneficiary.Beneficiary
	for _, b := range r.s.st.beneficiaries {
		if keep(b) {
			c := cloneBeneficiary(b)
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
