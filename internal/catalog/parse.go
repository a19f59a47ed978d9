package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/authenticity"
)

const (
	minItemIDLen = 6
	maxItemIDLen = 12
)

type searchResponse struct {
	Items []rawItem `json:"items"`
}

type rawItem struct {
	ItemID          json.RawMessage `json:"itemId"`
	Name            string          `json:"name"`
	SalePrice       json.RawMessage `json:"salePrice"`
	ThumbnailImage  string          `json:"thumbnailImage"`
	AvailableOnline *bool           `json:"availableOnline"`
}

// ParseItems decodes a search response body. Entries without a 6-12 digit
// itemId, a name or a numeric salePrice are skipped.
func ParseItems(body []byte) ([]Item, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	items := make([]Item, 0, len(resp.Items))
	for _, raw := range resp.Items {
		item, ok := raw.toItem()
		if ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r rawItem) toItem() (Item, bool) {
	id := scalarString(r.ItemID)
	if len(id) < minItemIDLen || len(id) > maxItemIDLen || !authenticity.IsDigits(id) {
		return Item{}, false
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return Item{}, false
	}
	price, ok := parsePrice(r.SalePrice)
	if !ok {
		return Item{}, false
	}
	available := true
	if r.AvailableOnline != nil {
		available = *r.AvailableOnline
	}
	return Item{
		ID:        id,
		Name:      name,
		SalePrice: price,
		Thumbnail: r.ThumbnailImage,
		Available: available,
	}, true
}

// scalarString accepts an identifier encoded either as a JSON string or a
// JSON number.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func parsePrice(raw json.RawMessage) (float64, bool) {
	s := scalarString(raw)
	if s == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return p, true
}
