package core

import (
	"errors"
	"strconv"
)

// Operation scopes request ids: the same id may be used once for a borrow and once for a return.
type Operation string

const (
	OperationBorrow Operation = "borrow"
	OperationReturn Operation = "return"
)

var ErrUnknownOperation = errors.New("unknown operation")

// ParseOperation accepts "borrow" and "return".
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OperationBorrow, OperationReturn:
		return op, nil
	default:
		return "", errors.Join(ErrUnknownOperation, errors.New(strconv.Quote(s)))
	}
}

// ReturnPair names one loan to return and the item it is expected to be for.
type ReturnPair struct {
	LoanID int64 `json:"loan_id"`
	ItemID int64 `json:"item_id"`
}

// MemberLockKey is the mutex key serializing all borrows and returns of one member.
func MemberLockKey(memberID int64) string {
	return "member:" + strconv.FormatInt(memberID, 10)
}

// RequestLockKey is the mutex key held while a request id is being executed.
func RequestLockKey(op Operation, requestID string) string {
	return "request:" + string(op) + ":" + requestID
}

// ResultCachePrefix is the idempotency cache key prefix for results of the given operation.
func ResultCachePrefix(op Operation) string {
	switch op {
	case OperationReturn:
		return "return:request:"
	default:
		return "loan:request:"
	}
}
