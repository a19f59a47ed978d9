// Package cart turns user selections into a priced cart and the retailer's
// add-to-cart deep link.
package cart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/authenticity"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/shopspring/decimal"
)

// AffiliateBase is the retailer's add-to-cart endpoint. The offers value is
// appended without URL encoding; the retailer parses '|' and ',' literally.
const AffiliateBase = "https://affil.walmart.com/cart/addToCart?offers="

// SelectionError names the product that failed validation.
type SelectionError struct {
	ProductID string
	Reason    string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q: %s", e.ProductID, e.Reason)
}

func (e *SelectionError) Unwrap() error {
	return apperrors.ErrInvalidSelection
}

// Assembly is the result of Assemble.
type Assembly struct {
	Lines        []grocery.CartLine
	Total        float64
	AffiliateURL string
}

// Assemble validates every selection and prices the cart. A single bad
// product id fails the whole call; nothing is dropped silently.
func Assemble(selections []grocery.SelectedProduct) (Assembly, error) {
	if len(selections) == 0 {
		return Assembly{}, apperrors.New(apperrors.ErrInvalidInput, 400, "no products selected")
	}
	lines := make([]grocery.CartLine, 0, len(selections))
	total := decimal.Zero
	for _, sel := range selections {
		if err := authenticity.ValidateID(sel.ProductID); err != nil {
			var rej *authenticity.Rejection
			reason := err.Error()
			if errors.As(err, &rej) {
				reason = rej.Reason
			}
			return Assembly{}, &SelectionError{ProductID: sel.ProductID, Reason: reason}
		}
		if sel.Price < 0 || math.IsNaN(sel.Price) || math.IsInf(sel.Price, 0) {
			return Assembly{}, &SelectionError{ProductID: sel.ProductID, Reason: "price"}
		}
		qty := EffectiveQuantity(sel.Quantity)
		lines = append(lines, grocery.CartLine{
			IngredientName: sel.IngredientName,
			ProductID:      sel.ProductID,
			Name:           sel.Name,
			Price:          sel.Price,
			Quantity:       qty,
		})
		total = total.Add(decimal.NewFromFloat(sel.Price).Mul(decimal.NewFromInt(int64(qty))))
	}
	return Assembly{
		Lines:        lines,
		Total:        total.RoundBank(2).InexactFloat64(),
		AffiliateURL: AffiliateURL(lines),
	}, nil
}

// EffectiveQuantity is 1 for a missing, non-numeric or non-positive
// quantity, and the integer floor otherwise (never below 1).
func EffectiveQuantity(q grocery.Quantity) int {
	if !q.Set || math.IsNaN(q.Value) || q.Value <= 0 {
		return 1
	}
	if q.Value >= math.MaxInt32 {
		return math.MaxInt32
	}
	if n := int(math.Floor(q.Value)); n >= 1 {
		return n
	}
	return 1
}

// AffiliateURL renders lines as sku|qty pairs in order.
func AffiliateURL(lines []grocery.CartLine) string {
	var b strings.Builder
	b.WriteString(AffiliateBase)
	for i, l := range lines {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.ProductID)
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(l.Quantity))
	}
	return b.String()
}

// Offer is one sku|qty pair.
type Offer struct {
	ProductID string
	Quantity  int
}

// ParseOffers reads the offers list back out of an affiliate URL.
func ParseOffers(affiliateURL string) ([]Offer, error) {
	raw, ok := strings.CutPrefix(affiliateURL, AffiliateBase)
	if !ok {
		return nil, fmt.Errorf("not an affiliate cart url: %q", affiliateURL)
	}
	if raw == "" {
		return nil, nil
	}
	pairs := strings.Split(raw, ",")
	offers := make([]Offer, 0, len(pairs))
	for _, p := range pairs {
		id, qty, ok := strings.Cut(p, "|")
		if !ok {
			return nil, fmt.Errorf("malformed offer %q", p)
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			return nil, fmt.Errorf("malformed quantity in offer %q: %w", p, err)
		}
		offers = append(offers, Offer{ProductID: id, Quantity: n})
	}
	return offers, nil
}
