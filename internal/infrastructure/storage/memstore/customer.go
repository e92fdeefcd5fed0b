package memstore

import (
	"context"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/customer"
)

// CustomerRepo implements customer.Repository.
type CustomerRepo struct{ s *Store }

var _ customer.Repository = (*CustomerRepo)(nil)

func (r *CustomerRepo) Create(_ context.Context, c *customer.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkRFC(c); err != nil {
		return err
	}
	r.s.st.customers[c.ID] = cloneCustomer(*c)
	return nil
}

func (r *CustomerRepo) checkRFC(c *customer.Customer) error {
	if c.RFC == nil {
		return nil
	}
	for _, existing := range r.s.st.customers {
		if existing.ID != c.ID && existing.RFC != nil && *existing.RFC == *c.RFC {
			return apperror.NewDuplicate("customer", "rfc", *c.RFC)
		}
	}
	return nil
}

func (r *CustomerRepo) GetByID(_ context.Context, customerID id.ID) (*customer.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.st.customers[customerID]
	if !ok {
		return nil, apperror.NewNotFound("customer", customerID)
	}
	out := cloneCustomer(c)
	return &out, nil
}

func (r *CustomerRepo) GetForUpdate(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	return r.GetByID(ctx, customerID)
}

func (r *CustomerRepo) List(_ context.Context, f customer.ListFilter) (domain.ListResult[*customer.Customer], error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var items []*customer.Customer
	for _, c := range r.s.st.customers {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Search != "" {
			rfc := ""
			if c.RFC != nil {
				rfc = *c.RFC
			}
			if !containsFold(c.FullName()+" "+c.Phone+" "+c.Email+" "+rfc, f.Search) {
				continue
			}
		}
		out := cloneCustomer(c)
		items = append(items, &out)
	}
	sortByKey(items, func(c *customer.Customer) string { return c.LastName + " " + c.FirstName })
	return page(items, f.ListFilter), nil
}

func (r *CustomerRepo) Update(_ context.Context, c *customer.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.st.customers[c.ID]
	if !ok {
		return apperror.NewNotFound("customer", c.ID)
	}
	if current.Version != c.Version {
		return apperror.NewConcurrentModification("customers", c.ID)
	}
	if err := r.checkRFC(c); err != nil {
		return err
	}
	c.SetVersion(c.Version + 1)
	r.s.st.customers[c.ID] = cloneCustomer(*c)
	return nil
}

func (r *CustomerRepo) FindActiveByPhone(_ context.Context, phone string) ([]*customer.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*customer.Customer
	for _, c := range r.s.st.customers {
		if c.Status == customer.StatusActive && c.Phone == phone {
			cc := cloneCustomer(c)
			out = append(out, &cc)
		}
	}
	sortByKey(out, func(c *customer.Customer) string { return c.ID.String() })
	return out, nil
}
