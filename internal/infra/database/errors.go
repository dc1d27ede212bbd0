package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// isUniqueViolation recognizes primary key and unique constraint failures
// from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
