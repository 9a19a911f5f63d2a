package sqladapter

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/bcomnes/dagrator"
)

// Func is a Migration written in Go. A nil UpFunc or DownFunc does nothing.
type Func struct {
	dagrator.Meta
	UpFunc   func(ctx context.Context, tx *sql.Tx) error
	DownFunc func(ctx context.Context, tx *sql.Tx) error
}

// NewFunc returns a Func migration.
func NewFunc(id uuid.UUID, description string, deps []uuid.UUID, up, down func(ctx context.Context, tx *sql.Tx) error) *Func {
	return &Func{
		Meta:     dagrator.NewMeta(id, description, deps...),
		UpFunc:   up,
		DownFunc: down,
	}
}

// Exec returns a function running the given statements, for use as UpFunc or
// DownFunc.
func Exec(statements ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range statements {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				return err
			}
		}
		return nil
	}
}

func (f *Func) Up(ctx context.Context, tx *sql.Tx) error {
	if f.UpFunc == nil {
		return nil
	}
	return f.UpFunc(ctx, tx)
}

func (f *Func) Down(ctx context.Context, tx *sql.Tx) error {
	if f.DownFunc == nil {
		return nil
	}
	return f.DownFunc(ctx, tx)
}
