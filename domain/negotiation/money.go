package negotiation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a money value in integer cents. Keeping prices integral makes
// the total-rent invariant exact: no float tolerance is ever needed.
type Amount int64

var ErrInvalidAmount = errors.New("invalid money amount")

// ParseAmount parses a decimal string such as "3606" or "901.50" into cents.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: more than two decimal places in %q", ErrInvalidAmount, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if w > (math.MaxInt64-f)/100 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}

	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return Amount(cents), nil
}

// String formats the amount as a decimal with two places, e.g. "901.50".
func (a Amount) String() string {
	cents := int64(a)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// EqualSplit divides total into n shares that sum to total exactly.
// The division remainder goes to the first share so the invariant holds
// from the very first allocation.
func EqualSplit(total Amount, n int) []Amount {
	if n <= 0 {
		return nil
	}
	base := total / Amount(n)
	shares := make([]Amount, n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += total - base*Amount(n)
	return shares
}
