package grocery

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Quantity is a client-supplied quantity. Decoding never fails: numbers and
// numeric strings are kept, anything else leaves the quantity unset.
type Quantity struct {
	Value float64
	Set   bool
}

// Q returns a set Quantity.
func Q(v float64) Quantity {
	return Quantity{Value: v, Set: true}
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	*q = Quantity{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*q = Q(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*q = Q(v)
	}
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.Set {
		return []byte("null"), nil
	}
	return json.Marshal(q.Value)
}

// SelectedProduct is one line of a custom-cart request.
type SelectedProduct struct {
	IngredientName string   `json:"ingredient_name"`
	ProductID      string   `json:"product_id" validate:"required"`
	Name           string   `json:"name"`
	Price          float64  `json:"price" validate:"gte=0"`
	Quantity       Quantity `json:"quantity"`
}

// CustomCartRequest is the body of POST /grocery/custom-cart.
type CustomCartRequest struct {
	UserID   string            `json:"user_id" validate:"required"`
	RecipeID string            `json:"recipe_id" validate:"required"`
	Products []SelectedProduct `json:"products" validate:"required,min=1,dive"`
}

// GenerateRequest is the body of POST /recipes/generate.
type GenerateRequest struct {
	UserID   string   `json:"user_id" validate:"required"`
	Prompt   string   `json:"prompt" validate:"required,max=2000"`
	Cuisine  string   `json:"cuisine,omitempty" validate:"omitempty,max=64"`
	Servings int      `json:"servings,omitempty" validate:"omitempty,min=1,max=50"`
	Dietary  []string `json:"dietary,omitempty" validate:"omitempty,max=10,dive,max=64"`
}
