package memstore

import (
	"context"
	"sort"

	"columbarium/internal/core/id"
	"columbarium/internal/domain/succession"
)

// SuccessionRepo implements succession.Repository.
type SuccessionRepo struct{ s *Store }

var _ succession.Repository = (*SuccessionRepo)(nil)

func (r *SuccessionRepo) Create(_ context.Context, rec *succession.Succession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.successions = append(r.s.st.successions, *rec)
	return nil
}

func (r *SuccessionRepo) ListByNiche(_ context.Context, nicheID id.ID) ([]*succession.Succession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*succession.Succession
	for _, rec := range r.s.st.successions {
		if rec.NicheID == nicheID {
			c := rec
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
