package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bookkeeper-backend/application/ports"
	pkgerrors "bookkeeper-backend/pkg/errors"
	"bookkeeper-backend/pkg/observability"

	"go.uber.org/zap"
)

// SequenceStore keeps the last issued document number per sequence. The swap
// is one guarded statement: the update only lands when the stored value still
// matches, and an untouched row count means another issuer won the race.
type SequenceStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ ports.SequenceStore = (*SequenceStore)(nil)

// NewSequenceStore creates a SequenceStore.
func NewSequenceStore(db *sql.DB, logger *zap.Logger) *SequenceStore {
	return &SequenceStore{db: db, logger: logger}
}

// Last returns the last issued number of a sequence, empty when the sequence
// never issued one.
func (s *SequenceStore) Last(ctx context.Context, sequence string) (string, error) {
	var last string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_value FROM sequences WHERE name = $1`, sequence,
	).Scan(&last)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", pkgerrors.NewDatabaseError("failed to get sequence", err)
	}
	return last, nil
}

// CompareAndSwap commits next only when the stored value still equals last.
// A lost race surfaces as a Conflict error; callers re-read and retry.
func (s *SequenceStore) CompareAndSwap(ctx context.Context, sequence, last, next string) error {
	var (
		res sql.Result
		err error
	)
	if last == "" {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO sequences (name, last_value) VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, sequence, next)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE sequences SET last_value = $1
			WHERE name = $2 AND last_value = $3
		`, next, sequence, last)
	}
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to advance sequence", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError("failed to check sequence swap", err)
	}
	if affected == 0 {
		observability.ObserveSequenceConflict(backendName, sequence)
		return pkgerrors.NewConflictError(fmt.Sprintf("sequence %s advanced concurrently", sequence))
	}

	s.logger.Debug("sequence advanced",
		zap.String("sequence", sequence),
		zap.String("value", next),
	)
	return nil
}
