package grocery

import "time"

// ShoppingModeManual marks the fallback payload returned when nothing in a
// shopping list could be matched to a product.
const ShoppingModeManual = "manual"

// ProductOption is a catalog item that passed the authenticity filter.
type ProductOption struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	ThumbnailImage  string  `json:"thumbnail_image,omitempty"`
	AvailableOnline bool    `json:"available_online"`
}

// IngredientResolution pairs one shopping-list phrase with its options.
// An empty Options list is a valid outcome.
type IngredientResolution struct {
	Ingredient string          `json:"ingredient"`
	QueryTerm  string          `json:"query_term"`
	Options    []ProductOption `json:"options"`
}

// CartOptions is the persisted output of one resolve. It is never updated;
// resolving again creates a new record.
type CartOptions struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	RecipeID    string                 `json:"recipe_id"`
	Ingredients []IngredientResolution `json:"ingredients"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ManualFallback is returned instead of CartOptions when every ingredient
// came back empty.
type ManualFallback struct {
	ShoppingMode     string   `json:"shopping_mode"`
	IngredientsList  []string `json:"ingredients_list"`
	WalmartSearchURL string   `json:"walmart_search_url"`
	Message          string   `json:"message"`
}

// CartLine is one accepted selection with its effective quantity.
type CartLine struct {
	IngredientName string  `json:"ingredient_name"`
	ProductID      string  `json:"product_id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Quantity       int     `json:"quantity"`
}

// Cart is a persisted, assembled cart.
type Cart struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	RecipeID     string     `json:"recipe_id"`
	Items        []CartLine `json:"items"`
	Total        float64    `json:"total"`
	AffiliateURL string     `json:"affiliate_url"`
	CreatedAt    time.Time  `json:"created_at"`
}
