package reconcile

import (
	"context"

	"discovery-sync/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Verification outcomes.
const (
	VerifyMatched = "matched"
	VerifyShort   = "short"
	VerifySurplus = "surplus"
)

// Verification compares a table's row count with the number of records fetched.
type Verification struct {
	Table    string `json:"table"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
	Status   string `json:"status"`
}

// Verify counts the rows of table and compares them with expected.
// Fewer rows is logged as a warning. More rows is only informational because
// the mirror never deletes, so nodes gone upstream remain stored.
func Verify(ctx context.Context, db *gorm.DB, namespace, table string, expected int64, logger *zap.Logger) (Verification, error) {
	v := Verification{Table: table, Expected: expected}

	actual, err := database.CountRows(ctx, db, namespace, table)
	if err != nil {
		return v, err
	}
	v.Actual = actual

	fields := []zap.Field{
		zap.String("table", table),
		zap.Int64("expected", expected),
		zap.Int64("actual", actual),
	}
	switch {
	case actual < expected:
		v.Status = VerifyShort
		logger.Warn("Row count below fetched count", append(fields, zap.Int64("missing", expected-actual))...)
	case actual > expected:
		v.Status = VerifySurplus
		logger.Info("Row count above fetched count", append(fields, zap.Int64("extra", actual-expected))...)
	default:
		v.Status = VerifyMatched
		logger.Info("Row count verified", fields...)
	}
	return v, nil
}
