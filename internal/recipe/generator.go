package recipe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/resilience"
)

const maxRecipeBytes = 1 << 20

// Client calls the recipe-generation service. The service is a black box
// that turns generation parameters into a recipe document.
type Client struct {
	cfg        config.RecipeServiceConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the configured service.
func NewClient(cfg config.RecipeServiceConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     slog.Default().With("component", "recipe-client"),
	}
}

// Generate posts params and decodes the returned recipe.
func (c *Client) Generate(ctx context.Context, params *grocery.GenerateRequest) (*grocery.Recipe, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding generation request: %w", err)
	}

	var recipe grocery.Recipe
	start := time.Now()
	err = resilience.WithTimeout(ctx, c.cfg.Timeout, "recipe-service", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		if id := logger.RequestID(ctx); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxRecipeBytes))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("recipe service returned %d", resp.StatusCode)
		}
		if err := json.Unmarshal(data, &recipe); err != nil {
			return fmt.Errorf("decoding recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("recipe generation timed out", "timeout", c.cfg.Timeout)
			return nil, apperrors.New(apperrors.ErrTimeout, http.StatusServiceUnavailable, "recipe generation timed out")
		}
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Error("recipe generation failed", "error", err)
		return nil, apperrors.Newf(apperrors.ErrInternal, http.StatusBadGateway, "recipe generation failed: %v", err)
	}
	c.logger.Debug("recipe generated", "duration", time.Since(start), "ingredients", len(recipe.ShoppingList))
	return &recipe, nil
}
