package cart

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Assemble
// ---------------------------------------------------------------------------

func TestAssembleQuantityNormalization(t *testing.T) {
	var sels []grocery.SelectedProduct
	body := `[
		{"product_id":"123456789","price":2.00,"quantity":3},
		{"product_id":"987654321","price":1.49,"quantity":"2"},
		{"product_id":"555555555","price":0.99,"quantity":0}
	]`
	if err := json.Unmarshal([]byte(body), &sels); err != nil {
		t.Fatalf("decoding selections: %v", err)
	}

	a, err := Assemble(sels)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var qty []int
	for _, l := range a.Lines {
		qty = append(qty, l.Quantity)
	}
	if diff := cmp.Diff([]int{3, 2, 1}, qty); diff != "" {
		t.Errorf("quantities (-want +got):\n%s", diff)
	}
	if a.Total != 9.97 {
		t.Errorf("total = %v, want 9.97", a.Total)
	}
	want := "https://affil.walmart.com/cart/addToCart?offers=123456789|3,987654321|2,555555555|1"
	if a.AffiliateURL != want {
		t.Errorf("url = %q, want %q", a.AffiliateURL, want)
	}
}

func TestAssembleFirstOptionEachIngredient(t *testing.T) {
	ids := []string{"123456789", "223456789", "523456789", "723456789", "823456789"}
	var sels []grocery.SelectedProduct
	for _, id := range ids {
		sels = append(sels, grocery.SelectedProduct{ProductID: id, Price: 1, Quantity: grocery.Q(1)})
	}
	a, err := Assemble(sels)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := "https://affil.walmart.com/cart/addToCart?offers=123456789|1,223456789|1,523456789|1,723456789|1,823456789|1"
	if a.AffiliateURL != want {
		t.Errorf("url = %q\nwant  %q", a.AffiliateURL, want)
	}
	if a.Total != 5 {
		t.Errorf("total = %v, want 5", a.Total)
	}
}

func TestAssembleRejectsFabricatedIDs(t *testing.T) {
	tests := []struct {
		id     string
		reason string
	}{
		{"10315777", "mock_prefix"},
		{"12345678", "mock_prefix"},
		{"999991234", "mock_prefix"},
		{"WALMART-1", "mock_prefix"},
		{"mock-42", "mock_prefix"},
		{"test-1234567", "mock_prefix"},
		{"12ab5678", "id_format"},
		{"12", "id_format"},
		{"1234567890123", "id_format"},
		{"", "id_format"},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			sels := []grocery.SelectedProduct{
				{ProductID: "123456789", Price: 2, Quantity: grocery.Q(1)},
				{ProductID: tc.id, Price: 1, Quantity: grocery.Q(1)},
			}
			_, err := Assemble(sels)
			if !errors.Is(err, apperrors.ErrInvalidSelection) {
				t.Fatalf("err = %v, want ErrInvalidSelection", err)
			}
			var sel *SelectionError
			if !errors.As(err, &sel) {
				t.Fatalf("err %T is not a *SelectionError", err)
			}
			if sel.ProductID != tc.id || sel.Reason != tc.reason {
				t.Errorf("got %+v, want id %q reason %q", sel, tc.id, tc.reason)
			}
		})
	}
}

func TestAssembleRejectsBadPrice(t *testing.T) {
	for _, p := range []float64{-0.01, math.NaN(), math.Inf(1)} {
		_, err := Assemble([]grocery.SelectedProduct{{ProductID: "123456789", Price: p}})
		if !errors.Is(err, apperrors.ErrInvalidSelection) {
			t.Errorf("price %v: err = %v, want ErrInvalidSelection", p, err)
		}
	}
}

func TestAssembleEmptySelection(t *testing.T) {
	_, err := Assemble(nil)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestAssembleTotalRounding(t *testing.T) {
	sels := []grocery.SelectedProduct{
		{ProductID: "123456789", Price: 0.1, Quantity: grocery.Q(3)},
		{ProductID: "223456789", Price: 0.2, Quantity: grocery.Q(1)},
	}
	a, err := Assemble(sels)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if a.Total != 0.5 {
		t.Errorf("total = %v, want 0.5", a.Total)
	}
}

// ---------------------------------------------------------------------------
// Quantities and offers
// ---------------------------------------------------------------------------

func TestEffectiveQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   grocery.Quantity
		want int
	}{
		{"unset", grocery.Quantity{}, 1},
		{"zero", grocery.Q(0), 1},
		{"negative", grocery.Q(-4), 1},
		{"nan", grocery.Q(math.NaN()), 1},
		{"fraction below one", grocery.Q(0.5), 1},
		{"fraction", grocery.Q(2.7), 2},
		{"integer", grocery.Q(6), 6},
		{"huge", grocery.Q(1e12), math.MaxInt32},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveQuantity(tc.in); got != tc.want {
				t.Errorf("EffectiveQuantity(%+v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseOffersRoundTrip(t *testing.T) {
	lines := []grocery.CartLine{
		{ProductID: "123456789", Quantity: 3},
		{ProductID: "987654321", Quantity: 1},
	}
	offers, err := ParseOffers(AffiliateURL(lines))
	if err != nil {
		t.Fatalf("ParseOffers: %v", err)
	}
	want := []Offer{{"123456789", 3}, {"987654321", 1}}
	if diff := cmp.Diff(want, offers); diff != "" {
		t.Errorf("offers (-want +got):\n%s", diff)
	}
}

func TestParseOffersMalformed(t *testing.T) {
	for _, u := range []string{
		"https://example.com/cart?offers=1|1",
		AffiliateBase + "123456789",
		AffiliateBase + "123456789|x",
	} {
		if _, err := ParseOffers(u); err == nil {
			t.Errorf("ParseOffers(%q) succeeded", u)
		}
	}
}
