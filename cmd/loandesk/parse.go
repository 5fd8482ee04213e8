package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

var ErrInvalidReturnPair = errors.New("return pair must look like LOAN_ID:ITEM_ID")

// parseReturnPairs turns "5001:101" flag values into return pairs, keeping their order.
func parseReturnPairs(values []string) ([]core.ReturnPair, error) {
	pairs := make([]core.ReturnPair, 0, len(values))

	for _, value := range values {
		loanPart, itemPart, found := strings.Cut(value, ":")
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReturnPair, value)
		}

		loanID, err := strconv.ParseInt(strings.TrimSpace(loanPart), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReturnPair, value)
		}

		itemID, err := strconv.ParseInt(strings.TrimSpace(itemPart), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidReturnPair, value)
		}

		pairs = append(pairs, core.ReturnPair{LoanID: loanID, ItemID: itemID})
	}

	return pairs, nil
}

// requestOutput is what borrow, return and outcome print.
type requestOutput struct {
	Operation core.Operation  `json:"operation"`
	RequestID string          `json:"request_id"`
	Replayed  bool            `json:"replayed"`
	Result    core.LoanResult `json:"result"`
}

func printJSON(w io.Writer, v any) error {
	encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

var ErrInvalidID = errors.New("id must be a positive integer")

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	return id, nil
}
