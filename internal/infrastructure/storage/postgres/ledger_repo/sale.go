package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"columbarium/internal/core/apperror"
	"columbarium/internal/core/id"
	"columbarium/internal/domain"
	"columbarium/internal/domain/amortization"
	"columbarium/internal/domain/payment"
	"columbarium/internal/domain/sale"
	"columbarium/internal/infrastructure/storage/postgres"
)

const (
	saleTable           = "sales"
	saleNichesTable     = "sale_niches"
	installmentTable    = "installments"
	installmentPayTable = "installment_payments"
	saleSuccessionTable = "sale_succession_history"
	refundTable         = "refunds"
)

// saleRow is the sales table row: the sale plus its flattened cancellation.
type saleRow struct {
	sale.Sale
	CancelledBy  *string             `db:"cancelled_by"`
	CancelledAt  *time.Time          `db:"cancelled_at"`
	CancelReason *string             `db:"cancel_reason"`
	RefundAmount decimal.NullDecimal `db:"refund_amount"`
	RefundMethod *string             `db:"refund_method"`
	RefundNotes  *string             `db:"refund_notes"`
}

func toSaleRow(s *sale.Sale) saleRow {
	row := saleRow{Sale: *s}
	if c := s.Cancellation; c != nil {
		method := string(c.RefundMethod)
		row.CancelledBy = &c.CancelledBy
		row.CancelledAt = &c.CancelledAt
		row.CancelReason = &c.Reason
		row.RefundAmount = decimal.NewNullDecimal(c.RefundAmount)
		row.RefundMethod = &method
		row.RefundNotes = &c.RefundNotes
	}
	return row
}

func (row *saleRow) toSale() *sale.Sale {
	s := row.Sale
	if row.CancelledAt != nil {
		c := &sale.Cancellation{CancelledAt: *row.CancelledAt}
		if row.CancelledBy != nil {
			c.CancelledBy = *row.CancelledBy
		}
		if row.CancelReason != nil {
			c.Reason = *row.CancelReason
		}
		if row.RefundAmount.Valid {
			c.RefundAmount = row.RefundAmount.Decimal
		}
		if row.RefundMethod != nil {
			c.RefundMethod = payment.Method(*row.RefundMethod)
		}
		if row.RefundNotes != nil {
			c.RefundNotes = *row.RefundNotes
		}
		s.Cancellation = c
	}
	return &s
}

// installmentRow is one installments row.
type installmentRow struct {
	SaleID id.ID `db:"sale_id"`
	amortization.Installment
}

// appliedRow is one installment_payments row.
type appliedRow struct {
	SaleID            id.ID `db:"sale_id"`
	InstallmentNumber int   `db:"installment_number"`
	amortization.AppliedPayment
}

var (
	saleCols        = postgres.ExtractDBColumns[saleRow]()
	installmentCols = postgres.ExtractDBColumns[installmentRow]()
	appliedCols     = postgres.ExtractDBColumns[appliedRow]()
	saleSuccCols    = postgres.ExtractDBColumns[sale.SuccessionEntry]()
	refundCols      = postgres.ExtractDBColumns[sale.Refund]()
)

// SaleRepo implements sale.Repository. A sale is stored across the sales,
// sale_niches, installments, installment_payments and
// sale_succession_history tables.
type SaleRepo struct {
	txm   *postgres.TxManager
	batch *postgres.BatchExecutor
}

var _ sale.Repository = (*SaleRepo)(nil)

// NewSaleRepo creates a new sale repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{txm: txm, batch: postgres.NewBatchExecutor(txm)}
}

func (r *SaleRepo) Create(ctx context.Context, s *sale.Sale) error {
	q := r.txm.GetQuerier(ctx)

	row := toSaleRow(s)
	if _, err := exec(ctx, q, Builder().Insert(saleTable).Columns(saleCols...).Values(postgres.RowValues(row, saleCols)...)); err != nil {
		return postgres.MapError(err, "sale", s.Folio, "insert sale")
	}

	nicheIDs := s.NicheIDs
	if len(nicheIDs) == 0 {
		nicheIDs = []id.ID{s.NicheID}
	}
	ins := Builder().Insert(saleNichesTable).Columns("sale_id", "niche_id", "position")
	for i, nicheID := range nicheIDs {
		ins = ins.Values(s.ID, nicheID, i+1)
	}
	if _, err := exec(ctx, q, ins); err != nil {
		return postgres.MapError(err, "sale", s.Folio, "insert sale niches")
	}

	queries := make([]postgres.BatchQuery, 0, len(s.Installments))
	for _, inst := range s.Installments {
		sql, args, err := Builder().
			Insert(installmentTable).
			Columns(installmentCols...).
			Values(postgres.RowValues(installmentRow{SaleID: s.ID, Installment: inst}, installmentCols)...).
			ToSql()
		if err != nil {
			return fmt.Errorf("build installment insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("insert installments: %w", err)
	}

	return r.saveChildren(ctx, s)
}

func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.load(ctx, squirrel.Eq{"s.id": saleID}, false, saleID)
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sale.Sale, error) {
	return r.load(ctx, squirrel.Eq{"s.id": saleID}, true, saleID)
}

// FindOpenByPrimaryNicheForUpdate returns the newest non-cancelled sale whose
// primary niche is nicheID.
func (r *SaleRepo) FindOpenByPrimaryNicheForUpdate(ctx context.Context, nicheID id.ID) (*sale.Sale, error) {
	where := squirrel.And{
		squirrel.Eq{"s.niche_id": nicheID},
		squirrel.NotEq{"s.status": sale.StatusCancelled},
	}
	s, err := r.load(ctx, where, true, nicheID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return s, err
}

func (r *SaleRepo) List(ctx context.Context, f sale.ListFilter) (domain.ListResult[*sale.Sale], error) {
	result := domain.ListResult[*sale.Sale]{Limit: f.Limit, Offset: f.Offset}
	q := r.txm.GetQuerier(ctx)

	sel := Builder().Select(prefixed("s", saleCols)...).From(saleTable + " s")
	if f.Status != "" {
		sel = sel.Where(squirrel.Eq{"s.status": f.Status})
	}
	if f.CustomerID != nil {
		sel = sel.Where(squirrel.Eq{"s.current_customer_id": *f.CustomerID})
	}
	if f.NicheID != nil {
		sel = sel.Where(squirrel.Expr("EXISTS (SELECT 1 FROM sale_niches sn WHERE sn.sale_id = s.id AND sn.niche_id = ?)", *f.NicheID))
	}
	if f.Search != "" {
		sel = sel.Where(squirrel.ILike{"s.folio": "%" + f.Search + "%"})
	}

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(sel, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count sales: %w", err)
	}

	sel = sel.OrderBy("s.created_at DESC")
	if f.Limit > 0 {
		sel = sel.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		sel = sel.Offset(uint64(f.Offset))
	}

	var rows []*saleRow
	if err := selectInto(ctx, q, &rows, sel); err != nil {
		return result, fmt.Errorf("list sales: %w", err)
	}

	result.Items = make([]*sale.Sale, 0, len(rows))
	for _, row := range rows {
		s := row.toSale()
		if err := r.loadChildren(ctx, s); err != nil {
			return result, err
		}
		result.Items = append(result.Items, s)
	}
	return result, nil
}

// Update writes the sale row with an optimistic version check, then the
// installment state, new applied payments and new succession entries.
func (r *SaleRepo) Update(ctx context.Context, s *sale.Sale) error {
	q := r.txm.GetQuerier(ctx)

	data := postgres.StructToMap(toSaleRow(s))
	set := make(map[string]any, len(saleCols))
	for _, col := range saleCols {
		switch col {
		case "id", "version", "created_at":
			continue
		}
		set[col] = data[col]
	}

	affected, err := exec(ctx, q, Builder().
		Update(saleTable).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": s.ID, "version": s.Version}))
	if err != nil {
		return postgres.MapError(err, "sale", s.Folio, "update sale")
	}
	if affected == 0 {
		return apperror.NewConcurrentModification(saleTable, s.ID)
	}

	queries := make([]postgres.BatchQuery, 0, len(s.Installments))
	for _, inst := range s.Installments {
		sql, args, err := Builder().
			Update(installmentTable).
			Set("amount_paid", inst.AmountPaid).
			Set("amount_remaining", inst.AmountRemaining).
			Set("status", inst.Status).
			Where(squirrel.Eq{"sale_id": s.ID, "number": inst.Number}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build installment update: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}
	if err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("update installments: %w", err)
	}

	if err := r.saveChildren(ctx, s); err != nil {
		return err
	}
	s.SetVersion(s.Version + 1)
	return nil
}

// saveChildren inserts applied payments and succession entries not yet stored.
func (r *SaleRepo) saveChildren(ctx context.Context, s *sale.Sale) error {
	q := r.txm.GetQuerier(ctx)

	applied := Builder().Insert(installmentPayTable).Columns(appliedCols...)
	n := 0
	for _, inst := range s.Installments {
		for _, p := range inst.Payments {
			applied = applied.Values(postgres.RowValues(appliedRow{SaleID: s.ID, InstallmentNumber: inst.Number, AppliedPayment: p}, appliedCols)...)
			n++
		}
	}
	if n > 0 {
		applied = applied.Suffix("ON CONFLICT (sale_id, installment_number, payment_id) DO NOTHING")
		if _, err := exec(ctx, q, applied); err != nil {
			return fmt.Errorf("insert applied payments: %w", err)
		}
	}

	if len(s.SuccessionHistory) > 0 {
		ins := Builder().Insert(saleSuccessionTable).Columns(saleSuccCols...)
		for _, e := range s.SuccessionHistory {
			ins = ins.Values(postgres.RowValues(e, saleSuccCols)...)
		}
		ins = ins.Suffix("ON CONFLICT (id) DO NOTHING")
		if _, err := exec(ctx, q, ins); err != nil {
			return fmt.Errorf("insert sale succession history: %w", err)
		}
	}
	return nil
}

// load reads one sale row matching where and its child tables.
func (r *SaleRepo) load(ctx context.Context, where squirrel.Sqlizer, forUpdate bool, key any) (*sale.Sale, error) {
	sel := Builder().
		Select(prefixed("s", saleCols)...).
		From(saleTable + " s").
		Where(where).
		OrderBy("s.created_at DESC").
		Limit(1)
	if forUpdate {
		sel = sel.Suffix("FOR UPDATE OF s")
	}

	sql, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row saleRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		return nil, postgres.MapError(err, "sale", key, "get sale")
	}

	s := row.toSale()
	if err := r.loadChildren(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SaleRepo) loadChildren(ctx context.Context, s *sale.Sale) error {
	q := r.txm.GetQuerier(ctx)

	var nicheIDs []id.ID
	if err := selectInto(ctx, q, &nicheIDs, Builder().
		Select("niche_id").
		From(saleNichesTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("position")); err != nil {
		return fmt.Errorf("load sale niches: %w", err)
	}
	s.NicheIDs = nicheIDs

	var installments []installmentRow
	if err := selectInto(ctx, q, &installments, Builder().
		Select(installmentCols...).
		From(installmentTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("number")); err != nil {
		return fmt.Errorf("load installments: %w", err)
	}

	var applied []appliedRow
	if err := selectInto(ctx, q, &applied, Builder().
		Select(appliedCols...).
		From(installmentPayTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("paid_on", "payment_id")); err != nil {
		return fmt.Errorf("load applied payments: %w", err)
	}

	byNumber := make(map[int][]amortization.AppliedPayment, len(installments))
	for _, a := range applied {
		byNumber[a.InstallmentNumber] = append(byNumber[a.InstallmentNumber], a.AppliedPayment)
	}
	s.Installments = make([]amortization.Installment, len(installments))
	for i, row := range installments {
		inst := row.Installment
		inst.Payments = byNumber[inst.Number]
		s.Installments[i] = inst
	}

	var history []sale.SuccessionEntry
	if err := selectInto(ctx, q, &history, Builder().
		Select(saleSuccCols...).
		From(saleSuccessionTable).
		Where(squirrel.Eq{"sale_id": s.ID}).
		OrderBy("date", "id")); err != nil {
		return fmt.Errorf("load sale succession history: %w", err)
	}
	s.SuccessionHistory = history
	return nil
}

func (r *SaleRepo) CreateRefund(ctx context.Context, rf *sale.Refund) error {
	_, err := exec(ctx, r.txm.GetQuerier(ctx), Builder().
		Insert(refundTable).
		Columns(refundCols...).
		Values(postgres.RowValues(rf, refundCols)...))
	if err != nil {
		return postgres.MapError(err, "refund", rf.ReceiptNumber, "insert refund")
	}
	return nil
}

func (r *SaleRepo) ListRefunds(ctx context.Context, saleID id.ID) ([]*sale.Refund, error) {
	var out []*sale.Refund
	if err := selectInto(ctx, r.txm.GetQuerier(ctx), &out, Builder().
		Select(refundCols...).
		From(refundTable).
		Where(squirrel.Eq{"sale_id": saleID}).
		OrderBy("refund_date")); err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}
	return out, nil
}
