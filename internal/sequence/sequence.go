// Package sequence allocates gap-free, human readable document numbers.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Document prefixes.
const (
	PrefixInvoice    = "INV"
	PrefixPO         = "PO"
	PrefixGRN        = "GRN"
	PrefixPayment    = "PAY"
	PrefixJournal    = "JE"
	PrefixCustomer   = "CUST"
	PrefixRegister   = "REG"
	PrefixAdjustment = "ADJ"
	PrefixReturn     = "RET"
)

// TxRepository increments the counter row for a prefix inside the caller's transaction.
type TxRepository interface {
	Increment(ctx context.Context, prefix string) (int64, error)
}

// ErrInvalidPrefix is returned for empty or non upper-case prefixes.
var ErrInvalidPrefix = shared.NewError(shared.KindValidation, "sequence: prefix must be upper-case letters")

// Next allocates the next number for prefix. The number is only durable if the surrounding
// transaction commits.
func Next(ctx context.Context, repo TxRepository, prefix string) (string, error) {
	if !validPrefix(prefix) {
		return "", ErrInvalidPrefix
	}
	n, err := repo.Increment(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("sequence: increment %s: %w", prefix, err)
	}
	return Format(prefix, n), nil
}

// Format renders PREFIX-0001. Values past 9999 widen naturally.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%04d", prefix, n)
}

// Parse splits a document number into its prefix and counter.
func Parse(number string) (string, int64, error) {
	idx := strings.LastIndex(number, "-")
	if idx <= 0 || idx == len(number)-1 {
		return "", 0, shared.Validation("sequence: malformed number %q", number)
	}
	n, err := strconv.ParseInt(number[idx+1:], 10, 64)
	if err != nil || n <= 0 {
		return "", 0, shared.Validation("sequence: malformed number %q", number)
	}
	return number[:idx], n, nil
}

func validPrefix(prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, r := range prefix {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
