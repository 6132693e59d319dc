package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestInTx_CommitsOnSuccess(t *testing.T) {
	pool := &fakePool{}
	tr := NewTransactor(pool)

	var sawTx bool
	err := tr.InTx(context.Background(), func(ctx context.Context) error {
		_, sawTx = TxFrom(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !sawTx {
		t.Fatalf("expected transaction in callback context")
	}
	if !pool.tx.committed {
		t.Errorf("expected commit to be called")
	}
}

func TestInTx_RollsBackOnError(t *testing.T) {
	pool := &fakePool{}
	tr := NewTransactor(pool)
	boom := errors.New("boom")

	err := tr.InTx(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if pool.tx.committed {
		t.Errorf("expected commit to be skipped")
	}
	if !pool.tx.rolled {
		t.Errorf("expected rollback to be called")
	}
}

func TestInTx_JoinsOuterTransaction(t *testing.T) {
	pool := &fakePool{}
	tr := NewTransactor(pool)
	outer := &fakeTx{}

	ctx := WithTx(context.Background(), outer)
	err := tr.InTx(ctx, func(inner context.Context) error {
		tx, _ := TxFrom(inner)
		if tx != outer {
			t.Errorf("expected outer transaction to be reused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if pool.tx != nil {
		t.Errorf("expected no new transaction to begin")
	}
}

func TestConnFallsBackToQuerier(t *testing.T) {
	fallback := &fakeTx{}
	if got := Conn(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback querier")
	}
	tx := &fakeTx{}
	if got := Conn(WithTx(context.Background(), tx), fallback); got != tx {
		t.Fatalf("expected context transaction")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "change_requests_one_open_idx"}
	if !IsUniqueViolation(err, "change_requests_one_open_idx") {
		t.Errorf("expected named constraint to match")
	}
	if !IsUniqueViolation(err, "") {
		t.Errorf("expected any constraint to match")
	}
	if IsUniqueViolation(err, "secure_links_token_hash_key") {
		t.Errorf("expected other constraint not to match")
	}
	if IsUniqueViolation(errors.New("plain"), "") {
		t.Errorf("expected plain error not to match")
	}
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolled = true
	}
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
