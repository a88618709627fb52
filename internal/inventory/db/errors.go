package db

import (
	"errors"
	"fmt"
	"strings"

	"ms-reservation/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// MySQL error numbers for duplicate keys, foreign keys and check constraints.
var mysqlConstraintErrors = map[uint16]bool{
	1062: true,
	1216: true,
	1217: true,
	1451: true,
	1452: true,
	3819: true,
}

// translateError maps driver constraint failures onto models.ErrIntegrityViolation
// and wraps everything else with the failing step.
func translateError(step string, err error) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w: %w", step, models.ErrIntegrityViolation, err)
	}
	return fmt.Errorf("%s: %w", step, err)
}

func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 23: integrity_constraint_violation
		return pqErr.Code.Class() == "23"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlConstraintErrors[myErr.Number]
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "constraint violation")
}
