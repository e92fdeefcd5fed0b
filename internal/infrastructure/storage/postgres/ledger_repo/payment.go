package ledger_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"columbarium/internal/core/id"
	"columbarium/internal/core/types"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/payment"
	"columbarium/internal/infrastructure/storage/postgres"
)

const paymentTable = "payments"

// paymentRow flattens the payment variants into one payments row.
// Columns that do not belong to the concept stay NULL.
type paymentRow struct {
	ID                  id.ID               `db:"id"`
	ReceiptNumber       string              `db:"receipt_number"`
	Concept             payment.Concept     `db:"concept"`
	CustomerID          id.ID               `db:"customer_id"`
	Amount              types.Money         `db:"amount"`
	Method              payment.Method      `db:"method"`
	PaidAt              time.Time           `db:"paid_at"`
	RegisteredBy        string              `db:"registered_by"`
	Status              payment.Status      `db:"status"`
	Notes               string              `db:"notes"`
	SaleID              *id.ID              `db:"sale_id"`
	NicheID             *id.ID              `db:"niche_id"`
	Year                *int                `db:"year"`
	Mode                *string             `db:"mode"`
	SpecificInstallment *int                `db:"specific_installment"`
	BalanceBefore       decimal.NullDecimal `db:"balance_before"`
	BalanceAfter        decimal.NullDecimal `db:"balance_after"`
	AppliedTo           []byte              `db:"applied_to"`
}

var paymentCols = postgres.ExtractDBColumns[paymentRow]()

func toPaymentRow(p *payment.Payment) (paymentRow, error) {
	row := paymentRow{
		ID:            p.ID,
		ReceiptNumber: p.ReceiptNumber,
		Concept:       p.Variant.Concept(),
		CustomerID:    p.CustomerID,
		Amount:        p.Amount,
		Method:        p.Method,
		PaidAt:        p.PaidAt,
		RegisteredBy:  p.RegisteredBy,
		Status:        p.Status,
		Notes:         p.Notes,
	}

	setBalance := func(b payment.BalanceSnapshot) {
		row.BalanceBefore = decimal.NewNullDecimal(b.Before)
		row.BalanceAfter = decimal.NewNullDecimal(b.After)
	}
	setInstallment := func(v payment.InstallmentPayment) error {
		saleID := v.SaleID
		mode := string(v.Mode)
		row.SaleID = &saleID
		row.Mode = &mode
		if v.SpecificInstallment > 0 {
			n := v.SpecificInstallment
			row.SpecificInstallment = &n
		}
		setBalance(v.Balance)
		applied, err := json.Marshal(v.AppliedTo)
		if err != nil {
			return fmt.Errorf("marshal applied lines: %w", err)
		}
		row.AppliedTo = applied
		return nil
	}

	switch v := p.Variant.(type) {
	case payment.DownPayment:
		saleID := v.SaleID
		row.SaleID = &saleID
		setBalance(v.Balance)
	case payment.MonthlyPayment:
		if err := setInstallment(v.InstallmentPayment); err != nil {
			return row, err
		}
	case payment.ExtraPayment:
		if err := setInstallment(v.InstallmentPayment); err != nil {
			return row, err
		}
	case payment.MaintenancePayment:
		nicheID, year := v.NicheID, v.Year
		row.NicheID = &nicheID
		row.Year = &year
	default:
		return row, fmt.Errorf("unsupported payment variant %T", p.Variant)
	}
	return row, nil
}

func (row *paymentRow) toPayment() (*payment.Payment, error) {
	p := &payment.Payment{
		ID:            row.ID,
		ReceiptNumber: row.ReceiptNumber,
		CustomerID:    row.CustomerID,
		Amount:        row.Amount,
		Method:        row.Method,
		PaidAt:        row.PaidAt,
		RegisteredBy:  row.RegisteredBy,
		Status:        row.Status,
		Notes:         row.Notes,
	}

	balance := payment.BalanceSnapshot{Before: row.BalanceBefore.Decimal, After: row.BalanceAfter.Decimal}
	var saleID id.ID
	if row.SaleID != nil {
		saleID = *row.SaleID
	}
	installment := func() (payment.InstallmentPayment, error) {
		v := payment.InstallmentPayment{SaleID: saleID, Balance: balance}
		if row.Mode != nil {
			v.Mode = amortization.Mode(*row.Mode)
		}
		if row.SpecificInstallment != nil {
			v.SpecificInstallment = *row.SpecificInstallment
		}
		if len(row.AppliedTo) > 0 {
			if err := json.Unmarshal(row.AppliedTo, &v.AppliedTo); err != nil {
				return v, fmt.Errorf("unmarshal applied lines: %w", err)
			}
		}
		return v, nil
	}

	switch row.Concept {
	case payment.ConceptDownPayment:
		p.Variant = payment.DownPayment{SaleID: saleID, Balance: balance}
	case payment.ConceptMonthly:
		v, err := installment()
		if err != nil {
			return nil, err
		}
		p.Variant = payment.MonthlyPayment{InstallmentPayment: v}
	case payment.ConceptExtra:
		v, err := installment()
		if err != nil {
			return nil, err
		}
		p.Variant = payment.ExtraPayment{InstallmentPayment: v}
	case payment.ConceptMaintenance:
		v := payment.MaintenancePayment{}
		if row.NicheID != nil {
			v.NicheID = *row.NicheID
		}
		if row.Year != nil {
			v.Year = *row.Year
		}
		p.Variant = v
	default:
		return nil, fmt.Errorf("unknown payment concept %q", row.Concept)
	}
	return p, nil
}

// PaymentRepo implements payment.Repository.
type PaymentRepo struct {
	txm *postgres.TxManager
}

var _ payment.Repository = (*PaymentRepo)(nil)

// NewPaymentRepo creates a new payment repository.
func NewPaymentRepo(txm *postgres.TxManager) *PaymentRepo {
	return &PaymentRepo{txm: txm}
}

func (r *PaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	row, err := toPaymentRow(p)
	if err != nil {
		return err
	}
	_, err = exec(ctx, r.txm.GetQuerier(ctx), Builder().
		Insert(paymentTable).
		Columns(paymentCols...).
		Values(postgres.RowValues(row, paymentCols)...))
	if err != nil {
		return postgres.MapError(err, "payment", p.ReceiptNumber, "insert payment")
	}
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, paymentID id.ID) (*payment.Payment, error) {
	sql, args, err := Builder().
		Select(paymentCols...).
		From(paymentTable).
		Where(squirrel.Eq{"id": paymentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row paymentRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "payment", paymentID, "get payment")
	}
	return row.toPayment()
}

func (r *PaymentRepo) ListBySale(ctx context.Context, saleID id.ID) ([]*payment.Payment, error) {
	return r.list(ctx, squirrel.Eq{"sale_id": saleID}, "paid_at", "id")
}

// ListMaintenanceByNiche returns maintenance payments, latest year first.
func (r *PaymentRepo) ListMaintenanceByNiche(ctx context.Context, nicheID id.ID) ([]*payment.Payment, error) {
	where := squirrel.Eq{"niche_id": nicheID, "concept": payment.ConceptMaintenance}
	return r.list(ctx, where, "year DESC", "paid_at DESC")
}

func (r *PaymentRepo) MaintenanceExists(ctx context.Context, nicheID id.ID, year int) (bool, error) {
	sql, args, err := Builder().
		Select("1").
		Prefix("SELECT EXISTS (").
		From(paymentTable).
		Where(squirrel.Eq{
			"niche_id": nicheID,
			"year":     year,
			"concept":  payment.ConceptMaintenance,
			"status":   payment.StatusCompleted,
		}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var exists bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check maintenance payment: %w", err)
	}
	return exists, nil
}

func (r *PaymentRepo) list(ctx context.Context, where squirrel.Sqlizer, orderBy ...string) ([]*payment.Payment, error) {
	var rows []*paymentRow
	if err := selectInto(ctx, r.txm.GetQuerier(ctx), &rows, Builder().
		Select(paymentCols...).
		From(paymentTable).
		Where(where).
		OrderBy(orderBy...)); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	out := make([]*payment.Payment, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPayment()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
