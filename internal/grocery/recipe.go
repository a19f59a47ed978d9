// Package grocery holds the records that move through the ingredient
// pipeline and the request bodies of its HTTP surface. Storage keys never
// appear here; every record is identified by its string ID.
package grocery

import (
	"encoding/json"
	"fmt"
	"time"
)

// Recipe is a generated recipe. Only ID, OwnerID and ShoppingList are
// interpreted; every other field is carried through untouched.
type Recipe struct {
	ID           string
	OwnerID      string
	ShoppingList []string
	CreatedAt    time.Time
	Extra        map[string]json.RawMessage
}

const (
	recipeFieldID           = "id"
	recipeFieldOwner        = "user_id"
	recipeFieldShoppingList = "shopping_list"
	recipeFieldCreatedAt    = "created_at"
)

// MarshalJSON writes the known fields over the opaque ones.
func (r Recipe) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[recipeFieldID] = r.ID
	out[recipeFieldOwner] = r.OwnerID
	list := r.ShoppingList
	if list == nil {
		list = []string{}
	}
	out[recipeFieldShoppingList] = list
	if !r.CreatedAt.IsZero() {
		out[recipeFieldCreatedAt] = r.CreatedAt
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a document into known and opaque fields.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = Recipe{}
	if raw, ok := fields[recipeFieldID]; ok {
		if err := json.Unmarshal(raw, &r.ID); err != nil {
			return fmt.Errorf("recipe id: %w", err)
		}
		delete(fields, recipeFieldID)
	}
	if raw, ok := fields[recipeFieldOwner]; ok {
		if err := json.Unmarshal(raw, &r.OwnerID); err != nil {
			return fmt.Errorf("recipe user_id: %w", err)
		}
		delete(fields, recipeFieldOwner)
	}
	if raw, ok := fields[recipeFieldShoppingList]; ok {
		if err := json.Unmarshal(raw, &r.ShoppingList); err != nil {
			return fmt.Errorf("recipe shopping_list: %w", err)
		}
		delete(fields, recipeFieldShoppingList)
	}
	if raw, ok := fields[recipeFieldCreatedAt]; ok {
		if err := json.Unmarshal(raw, &r.CreatedAt); err != nil {
			return fmt.Errorf("recipe created_at: %w", err)
		}
		delete(fields, recipeFieldCreatedAt)
	}
	if len(fields) > 0 {
		r.Extra = fields
	}
	return nil
}
