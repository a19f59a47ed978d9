// Package authenticity rejects catalog items that look fabricated. It errs
// on the side of rejection: an affiliate URL pointing at a product that
// does not exist is worse than one fewer option.
package authenticity

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
)

// Rejection reasons, also used as metric labels.
const (
	ReasonMockPrefix = "mock_prefix"
	ReasonIDFormat   = "id_format"
	ReasonName       = "name"
	ReasonPrice      = "price"
)

const (
	minIDLen   = 6
	maxIDLen   = 12
	minNameLen = 4
	maxPrice   = 1000
)

var mockPrefixes = []string{"10315", "12345", "99999", "walmart-", "mock-", "test-"}

// Item is the view of a product the filter needs.
type Item struct {
	ID    string
	Name  string
	Price float64
}

// Rejection describes why an item or identifier was refused.
type Rejection struct {
	ID     string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("product %q rejected: %s", r.ID, r.Reason)
}

func (r *Rejection) Unwrap() error {
	return apperrors.ErrInvalidSelection
}

// Accept reports whether item may be offered to a user.
func Accept(item Item) bool {
	return Check(item) == nil
}

// Check returns nil for an acceptable item or a *Rejection naming the first
// failed rule.
func Check(item Item) error {
	if err := ValidateID(item.ID); err != nil {
		return err
	}
	if len(strings.TrimSpace(item.Name)) < minNameLen {
		return &Rejection{ID: item.ID, Reason: ReasonName}
	}
	if item.Price <= 0 || item.Price >= maxPrice {
		return &Rejection{ID: item.ID, Reason: ReasonPrice}
	}
	return nil
}

// ValidateID applies the identifier rules alone. Cart selections are checked
// this way because name and price there come from the client.
func ValidateID(id string) error {
	lower := strings.ToLower(id)
	for _, p := range mockPrefixes {
		if strings.HasPrefix(lower, p) {
			return &Rejection{ID: id, Reason: ReasonMockPrefix}
		}
	}
	if len(id) < minIDLen || len(id) > maxIDLen || !IsDigits(id) {
		return &Rejection{ID: id, Reason: ReasonIDFormat}
	}
	return nil
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
