package registry_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/customer"
	"columbarium/internal/infrastructure/storage/postgres"
)

// CustomerRepo implements customer.Repository.
type CustomerRepo struct {
	baseRepo[*customer.Customer]
}

var _ customer.Repository = (*CustomerRepo)(nil)

// NewCustomerRepo creates a new customer repository.
func NewCustomerRepo(txm *postgres.TxManager) *CustomerRepo {
	return &CustomerRepo{
		baseRepo: newBaseRepo(txm, "customers", "customer",
			postgres.ExtractDBColumns[customer.Customer](),
			func() *customer.Customer { return &customer.Customer{} }),
	}
}

func (r *CustomerRepo) Create(ctx context.Context, c *customer.Customer) error {
	return r.insert(ctx, c, rfcKey(c))
}

func (r *CustomerRepo) GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	return r.get(ctx, squirrel.Eq{"id": customerID}, false, customerID)
}

func (r *CustomerRepo) GetForUpdate(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	return r.get(ctx, squirrel.Eq{"id": customerID}, true, customerID)
}

// List matches Search against names, phone, email and RFC.
func (r *CustomerRepo) List(ctx context.Context, f customer.ListFilter) (domain.ListResult[*customer.Customer], error) {
	q := r.baseSelect()
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": f.Status})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"first_name || ' ' || last_name": pattern},
			squirrel.ILike{"phone": pattern},
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"rfc": pattern},
		})
	}
	return r.list(ctx, q, f.ListFilter, "last_name", "first_name")
}

func (r *CustomerRepo) Update(ctx context.Context, c *customer.Customer) error {
	if err := r.update(ctx, c, c.ID, c.Version); err != nil {
		return err
	}
	c.SetVersion(c.Version + 1)
	return nil
}

func (r *CustomerRepo) FindActiveByPhone(ctx context.Context, phone string) ([]*customer.Customer, error) {
	return r.selectAll(ctx, r.baseSelect().
		Where(squirrel.Eq{"status": customer.StatusActive, "phone": phone}).
		OrderBy("id").
		Suffix("FOR UPDATE"))
}

func rfcKey(c *customer.Customer) string {
	if c.RFC == nil {
		return ""
	}
	return *c.RFC
}
