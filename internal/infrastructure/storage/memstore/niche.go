package memstore

import (
	"context"
	"sort"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/niche"
)

// NicheRepo implements niche.Repository.
type NicheRepo struct{ s *Store }

var _ niche.Repository = (*NicheRepo)(nil)

func (r *NicheRepo) Create(_ context.Context, n *niche.Niche) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.niches {
		if existing.Code == n.Code {
			return apperror.NewDuplicate("niche", "code", n.Code)
		}
	}
	r.s.st.niches[n.ID] = cloneNiche(*n)
	return nil
}

func (r *NicheRepo) GetByID(_ context.Context, nicheID id.ID) (*niche.Niche, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.load(nicheID)
}

func (r *NicheRepo) GetByCode(_ context.Context, code string) (*niche.Niche, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, n := range r.s.st.niches {
		if n.Code == code {
			return r.load(n.ID)
		}
	}
	return nil, apperror.NewNotFound("niche", code)
}

func (r *NicheRepo) GetForUpdate(ctx context.Context, nicheID id.ID) (*niche.Niche, error) {
	return r.GetByID(ctx, nicheID)
}

func (r *NicheRepo) load(nicheID id.ID) (*niche.Niche, error) {
	n, ok := r.s.st.niches[nicheID]
	if !ok {
		return nil, apperror.NewNotFound("niche", nicheID)
	}
	out := cloneNiche(n)
	out.History = r.history(nicheID)
	return &out, nil
}

func (r *NicheRepo) List(_ context.Context, f niche.ListFilter) (domain.ListResult[*niche.Niche], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var items []*niche.Niche
	for _, n := range r.s.st.niches {
		if f.Status != "" && n.Status != f.Status {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if f.Module != "" && n.Module != f.Module {
			continue
		}
		if f.Section != "" && n.Section != f.Section {
			continue
		}
		if f.Search != "" && !containsFold(n.Code, f.Search) {
			continue
		}
		c := cloneNiche(n)
		items = append(items, &c)
	}
	sortByKey(items, func(n *niche.Niche) string { return n.Code })
	return page(items, f.ListFilter), nil
}

func (r *NicheRepo) Stats(_ context.Context) (*niche.Stats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st := niche.NewStats()
	for _, n := range r.s.st.niches {
		st.Add(n.Status, n.Type, 1)
	}
	return st, nil
}

func (r *NicheRepo) Update(_ context.Context, n *niche.Niche) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.niches[n.ID]
	if !ok {
		return apperror.NewNotFound("niche", n.ID)
	}
	if current.Version != n.Version {
		return apperror.NewConcurrentModification("niches", n.ID)
	}
	n.SetVersion(n.Version + 1)
	r.s.st.niches[n.ID] = cloneNiche(*n)
	return nil
}

func (r *NicheRepo) SaveOwnership(_ context.Context, entries []niche.OwnershipEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range entries {
		e.EndDate = clonePtr(e.EndDate)
		replaced := false
		for i := range r.s.st.ownership {
			if r.s.st.ownership[i].ID == e.ID {
				r.s.st.ownership[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			r.s.st.ownership = append(r.s.st.ownership, e)
		}
	}
	return nil
}

func (r *NicheRepo) History(_ context.Context, nicheID id.ID) ([]niche.OwnershipEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.history(nicheID), nil
}

func (r *NicheRepo) history(nicheID id.ID) []niche.OwnershipEntry {
	var out []niche.OwnershipEntry
	for _, e := range r.s.st.ownership {
		if e.NicheID == nicheID {
			e.EndDate = clonePtr(e.EndDate)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (r *NicheRepo) CreateDeceased(_ context.Context, d *niche.Deceased) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.deceased = append(r.s.st.deceased, *d)
	return nil
}

func (r *NicheRepo) ListDeceased(_ context.Context, nicheID id.ID) ([]niche.Deceased, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []niche.Deceased
	for _, d := range r.s.st.deceased {
		if d.NicheID == nicheID {
			out = append(out, d)
		}
	}
	return out, nil
}
