package repository

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

// chunkSize bounds the number of bind parameters per statement.
const chunkSize = 1000

// translateError maps serialization failures, deadlocks and unique
// violations onto domain.ErrPersistenceConflict.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrPersistenceConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrap(domain.ErrPersistenceConflict, err.Error())
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return errors.Wrap(domain.ErrPersistenceConflict, pgErr.Message)
		}
	}
	return err
}

func chunk[T any](items []T, size int) [][]T {
	chunks := make([][]T, 0, len(items)/size+1)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
