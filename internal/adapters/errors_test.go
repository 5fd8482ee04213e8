package adapters

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func Test_IsTransientConflict_ClassifiesDriverErrors(t *testing.T) {
	testCases := []struct {
		description string
		err         error
		expected    bool
	}{
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pgx serialization failure wrapped", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"pq deadlock", &pq.Error{Code: "40P01"}, true},
		{"pq lock not available joined", errors.Join(errors.New("exec"), &pq.Error{Code: "55P03"}), true},
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsTransientConflict(tc.err))
		})
	}
}

func Test_SQLState_ReturnsCode(t *testing.T) {
	assert.Equal(t, "23505", SQLState(&pq.Error{Code: "23505"}))
	assert.Equal(t, "", SQLState(errors.New("boom")))
}
