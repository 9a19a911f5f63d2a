package cli

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bcomnes/dagrator"
	"github.com/bcomnes/dagrator/sqladapter"
)

// fieldError attaches slog fields to an error without changing its message.
type fieldError struct {
	err    error
	fields []any
}

func withFields(err error, fields ...any) error {
	if len(fields)%2 != 0 {
		panic("an even number of fields is required")
	}
	return &fieldError{err: err, fields: fields}
}

func (e *fieldError) Error() string { return e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

// LogError logs err with logger, rendering what is known about it as fields.
func LogError(logger *slog.Logger, err error) {
	logger.Error(err.Error(), errorAttrs(err)...)
}

// errorAttrs extracts structured fields from every known error in the chain.
func errorAttrs(err error) []any {
	var args []any

	var fe *fieldError
	if errors.As(err, &fe) {
		args = append(args, fe.fields...)
	}

	var (
		dupErr        *dagrator.DuplicateIDError
		unresolvedErr *dagrator.UnresolvedDependencyError
		cycleErr      *dagrator.CycleError
		unknownErr    *dagrator.UnknownMigrationError
		unregErr      *dagrator.AppliedUnregisteredError
		adapterErr    *dagrator.AdapterError
		bookErr       *dagrator.BookkeepingError
		sumErr        *sqladapter.ChecksumError
		pgErr         *pgconn.PgError
	)
	switch {
	case errors.As(err, &sumErr):
		args = append(args, "kind", "checksum", "id", sumErr.ID,
			"recorded", sumErr.Stored, "current", sumErr.Current)
	case errors.As(err, &dupErr):
		args = append(args, "kind", "duplicate_id", "id", dupErr.ID)
	case errors.As(err, &unresolvedErr):
		args = append(args, "kind", "unresolved_dependency",
			"id", unresolvedErr.ID, "missing", unresolvedErr.Missing)
	case errors.As(err, &cycleErr):
		args = append(args, "kind", "cycle", "length", len(cycleErr.Cycle))
	case errors.As(err, &unknownErr):
		args = append(args, "kind", "unknown_migration", "id", unknownErr.ID)
	case errors.As(err, &unregErr):
		args = append(args, "kind", "applied_unregistered", "count", len(unregErr.IDs))
	case errors.As(err, &bookErr):
		args = append(args, "kind", "bookkeeping", "id", bookErr.ID,
			"direction", bookErr.Direction.String(), "rolled_back", bookErr.RolledBack)
	case errors.As(err, &adapterErr):
		args = append(args, "kind", "adapter", "op", adapterErr.Op)
		if adapterErr.ID != uuid.Nil {
			args = append(args, "id", adapterErr.ID, "direction", adapterErr.Direction.String())
		}
	}

	if errors.As(err, &pgErr) {
		args = append(args, "sqlstate", pgErr.Code)
		if pgErr.Detail != "" {
			args = append(args, "detail", pgErr.Detail)
		}
		if pgErr.Hint != "" {
			args = append(args, "hint", pgErr.Hint)
		}
		if pgErr.Position != 0 {
			args = append(args, "position", pgErr.Position)
		}
		if pgErr.TableName != "" {
			args = append(args, "table", pgErr.TableName)
		}
		if pgErr.ConstraintName != "" {
			args = append(args, "constraint", pgErr.ConstraintName)
		}
	}

	return args
}
