package pgstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"deadlock", &pgconn.PgError{Code: sqlStateDeadlockDetected}, true},
		{"serialization", &pgconn.PgError{Code: sqlStateSerializationFailure}, true},
		{"wrapped deadlock", fmt.Errorf("identify: %w", &pgconn.PgError{Code: sqlStateDeadlockDetected}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
