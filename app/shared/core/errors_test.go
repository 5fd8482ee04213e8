package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

func Test_Failure_UnwrapsToItsKind(t *testing.T) {
	failure := core.Conflict(core.ReasonNotAvailable).ForItem(3)

	assert.ErrorIs(t, failure, core.ErrConflict)
	assert.NotErrorIs(t, failure, core.ErrNotFound)
	assert.EqualError(t, failure, "conflict: not available (item 3)")
}

func Test_Failure_ForLoan_DoesNotMutateTheOriginal(t *testing.T) {
	base := core.Conflict(core.ReasonAlreadyReturned)

	named := base.ForLoan(42)

	assert.Equal(t, int64(0), base.LoanID)
	assert.Equal(t, int64(42), named.LoanID)
	assert.EqualError(t, named, "conflict: already returned (loan 42)")
}

func Test_Internal(t *testing.T) {
	t.Run("wraps infrastructure errors", func(t *testing.T) {
		err := core.Internal(errors.New("connection reset"))

		assert.ErrorIs(t, err, core.ErrInternal)
	})

	t.Run("keeps business failures as they are", func(t *testing.T) {
		failure := core.NotFound(core.ReasonLoanNotFound)

		err := core.Internal(failure)

		assert.Same(t, failure, err)
		assert.NotErrorIs(t, err, core.ErrInternal)
	})

	t.Run("keeps the context error visible", func(t *testing.T) {
		err := core.Internal(context.Canceled)

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, core.Internal(nil))
	})
}

func Test_ParseOperation(t *testing.T) {
	op, err := core.ParseOperation("return")
	assert.NoError(t, err)
	assert.Equal(t, core.OperationReturn, op)

	_, err = core.ParseOperation("renew")
	assert.ErrorIs(t, err, core.ErrUnknownOperation)
}

func Test_LockKeys(t *testing.T) {
	assert.Equal(t, "member:7", core.MemberLockKey(7))
	assert.Equal(t, "request:borrow:abc", core.RequestLockKey(core.OperationBorrow, "abc"))
	assert.Equal(t, "loan:request:", core.ResultCachePrefix(core.OperationBorrow))
	assert.Equal(t, "return:request:", core.ResultCachePrefix(core.OperationReturn))
}
