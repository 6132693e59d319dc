package commitment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Raguls333/noolix-sub001/apperr"
	"github.com/Raguls333/noolix-sub001/db"
)

// Repository persists commitments. Every read is tenant scoped.
type Repository interface {
	Insert(ctx context.Context, c Commitment) error
	Get(ctx context.Context, scope Scope, id string) (Commitment, error)
	Update(ctx context.Context, c Commitment) error
	List(ctx context.Context, scope Scope, filter ListFilter) (ListResult, error)
	ListByRoot(ctx context.Context, scope Scope, rootID string) ([]Commitment, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool db.Querier
	qb   sq.StatementBuilderType
}

func NewRepository(pool db.Querier) *PGRepository {
	return &PGRepository{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var commitmentColumns = []string{
	"id", "org_id", "client_id", "client_name", "client_email", "COALESCE(client_company, '')",
	"title", "scope_title", "scope_description", "amount::text", "currency",
	"payment_terms", "milestones", "deliverables", "attachments",
	"approver", "re_approval_on_changes", "acceptance_required",
	"status", "version",
	"approval_sent_at", "approved_at", "delivered_at", "accepted_at",
	"root_commitment_id", "previous_commitment_id", "change_request_id",
	"created_by_user_id", "assigned_to_user_id", "created_at", "updated_at",
}

func (r *PGRepository) Insert(ctx context.Context, c Commitment) error {
	items, err := marshalItems(c)
	if err != nil {
		return err
	}

	const insertSQL = `
INSERT INTO commitments (
    id, org_id, client_id, client_name, client_email, client_company,
    title, scope_title, scope_description, amount, currency,
    payment_terms, milestones, deliverables, attachments,
    approver, re_approval_on_changes, acceptance_required,
    status, version,
    approval_sent_at, approved_at, delivered_at, accepted_at,
    root_commitment_id, previous_commitment_id, change_request_id,
    created_by_user_id, assigned_to_user_id, created_at, updated_at
) VALUES (
    $1, $2, $3, $4, $5, NULLIF($6, ''),
    $7, $8, $9, $10::numeric, $11,
    $12, $13, $14, $15,
    $16, $17, $18,
    $19, $20,
    $21, $22, $23, $24,
    $25, $26, $27,
    $28, $29, $30, $31
);
`

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, insertSQL,
		c.ID, c.OrgID, c.ClientID, c.Client.Name, c.Client.Email, c.Client.Company,
		c.Title, c.ScopeTitle, c.ScopeDescription, c.Amount.String(), c.Currency,
		items.terms, items.milestones, items.deliverables, items.attachments,
		c.Rules.Approver, c.Rules.ReApprovalOnChanges, c.Rules.AcceptanceRequired,
		c.Status, c.Version,
		c.ApprovalSentAt, c.ApprovedAt, c.DeliveredAt, c.AcceptedAt,
		c.RootCommitmentID, c.PreviousCommitmentID, c.ChangeRequestID,
		c.CreatedByUserID, c.AssignedToUserID, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return fmt.Errorf("commitment: insert: %w", err)
	}
	return nil
}

// Get fetches one commitment. Inside a transaction the row is locked until
// commit so concurrent transitions on it serialize.
func (r *PGRepository) Get(ctx context.Context, scope Scope, id string) (Commitment, error) {
	q := r.qb.Select(commitmentColumns...).From("commitments").
		Where(scopePredicate(scope)).
		Where(sq.Eq{"id": id})
	if _, inTx := db.TxFrom(ctx); inTx {
		q = q.Suffix("FOR UPDATE")
	}

	query, args, err := q.ToSql()
	if err != nil {
		return Commitment{}, fmt.Errorf("commitment: build get: %w", err)
	}

	c, err := scanCommitment(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Commitment{}, apperr.NotFound("commitment %s not found", id)
		}
		return Commitment{}, fmt.Errorf("commitment: get: %w", err)
	}
	return c, nil
}

// Update overwrites the mutable columns of c. The last writer wins.
func (r *PGRepository) Update(ctx context.Context, c Commitment) error {
	items, err := marshalItems(c)
	if err != nil {
		return err
	}

	const updateSQL = `
UPDATE commitments SET
    title = $3,
    scope_title = $4,
    scope_description = $5,
    amount = $6::numeric,
    currency = $7,
    payment_terms = $8,
    milestones = $9,
    deliverables = $10,
    attachments = $11,
    approver = $12,
    re_approval_on_changes = $13,
    acceptance_required = $14,
    status = $15,
    version = $16,
    approval_sent_at = $17,
    approved_at = $18,
    delivered_at = $19,
    accepted_at = $20,
    assigned_to_user_id = $21,
    updated_at = $22
WHERE org_id = $1 AND id = $2
`

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, updateSQL,
		c.OrgID, c.ID,
		c.Title, c.ScopeTitle, c.ScopeDescription, c.Amount.String(), c.Currency,
		items.terms, items.milestones, items.deliverables, items.attachments,
		c.Rules.Approver, c.Rules.ReApprovalOnChanges, c.Rules.AcceptanceRequired,
		c.Status, c.Version,
		c.ApprovalSentAt, c.ApprovedAt, c.DeliveredAt, c.AcceptedAt,
		c.AssignedToUserID, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("commitment: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("commitment %s not found", c.ID)
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, scope Scope, filter ListFilter) (ListResult, error) {
	where := sq.And{scopePredicate(scope)}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}
	if filter.ClientID != "" {
		where = append(where, sq.Eq{"client_id": filter.ClientID})
	}
	if filter.AssigneeID != "" {
		where = append(where, sq.Eq{"assigned_to_user_id": filter.AssigneeID})
	}

	countSQL, countArgs, err := r.qb.Select("COUNT(*)").From("commitments").Where(where).ToSql()
	if err != nil {
		return ListResult{}, fmt.Errorf("commitment: build count: %w", err)
	}
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("commitment: count: %w", err)
	}

	limit, offset := pageBounds(filter)
	query, args, err := r.qb.Select(commitmentColumns...).From("commitments").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return ListResult{}, fmt.Errorf("commitment: build list: %w", err)
	}

	items, err := r.collect(ctx, query, args...)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

func (r *PGRepository) ListByRoot(ctx context.Context, scope Scope, rootID string) ([]Commitment, error) {
	query, args, err := r.qb.Select(commitmentColumns...).From("commitments").
		Where(scopePredicate(scope)).
		Where(sq.Eq{"root_commitment_id": rootID}).
		OrderBy("version ASC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("commitment: build lineage: %w", err)
	}
	return r.collect(ctx, query, args...)
}

func (r *PGRepository) collect(ctx context.Context, query string, args ...any) ([]Commitment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("commitment: list: %w", err)
	}
	defer rows.Close()

	out := make([]Commitment, 0, 16)
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("commitment: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commitment: iterate: %w", err)
	}
	return out, nil
}

func scopePredicate(scope Scope) sq.Sqlizer {
	if scope.AssigneeID != "" {
		return sq.Eq{"org_id": scope.OrgID, "assigned_to_user_id": scope.AssigneeID}
	}
	return sq.Eq{"org_id": scope.OrgID}
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func pageBounds(f ListFilter) (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type itemColumns struct {
	terms, milestones, deliverables, attachments []byte
}

func marshalItems(c Commitment) (itemColumns, error) {
	var (
		out itemColumns
		err error
	)
	if out.terms, err = json.Marshal(nonNil(c.PaymentTerms)); err != nil {
		return itemColumns{}, fmt.Errorf("commitment: marshal payment terms: %w", err)
	}
	if out.milestones, err = json.Marshal(nonNil(c.Milestones)); err != nil {
		return itemColumns{}, fmt.Errorf("commitment: marshal milestones: %w", err)
	}
	if out.deliverables, err = json.Marshal(nonNil(c.Deliverables)); err != nil {
		return itemColumns{}, fmt.Errorf("commitment: marshal deliverables: %w", err)
	}
	if out.attachments, err = json.Marshal(nonNil(c.Attachments)); err != nil {
		return itemColumns{}, fmt.Errorf("commitment: marshal attachments: %w", err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanCommitment(row pgx.Row) (Commitment, error) {
	var (
		c                                            Commitment
		amount                                       string
		terms, milestones, deliverables, attachments []byte
	)
	err := row.Scan(
		&c.ID, &c.OrgID, &c.ClientID, &c.Client.Name, &c.Client.Email, &c.Client.Company,
		&c.Title, &c.ScopeTitle, &c.ScopeDescription, &amount, &c.Currency,
		&terms, &milestones, &deliverables, &attachments,
		&c.Rules.Approver, &c.Rules.ReApprovalOnChanges, &c.Rules.AcceptanceRequired,
		&c.Status, &c.Version,
		&c.ApprovalSentAt, &c.ApprovedAt, &c.DeliveredAt, &c.AcceptedAt,
		&c.RootCommitmentID, &c.PreviousCommitmentID, &c.ChangeRequestID,
		&c.CreatedByUserID, &c.AssignedToUserID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Commitment{}, err
	}

	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return Commitment{}, fmt.Errorf("commitment: decode amount: %w", err)
	}
	if err := json.Unmarshal(terms, &c.PaymentTerms); err != nil {
		return Commitment{}, fmt.Errorf("commitment: decode payment terms: %w", err)
	}
	if err := json.Unmarshal(milestones, &c.Milestones); err != nil {
		return Commitment{}, fmt.Errorf("commitment: decode milestones: %w", err)
	}
	if err := json.Unmarshal(deliverables, &c.Deliverables); err != nil {
		return Commitment{}, fmt.Errorf("commitment: decode deliverables: %w", err)
	}
	if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
		return Commitment{}, fmt.Errorf("commitment: decode attachments: %w", err)
	}
	return c, nil
}
