// Package sqlxrepos implements the core repository interfaces on PostgreSQL
// via sqlx.
package sqlxrepos

import (
	"strconv"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
