// Command loadtest drives a running grocery service and reports latency
// percentiles and status codes.
//
// The cart mode posts custom carts (no catalog traffic). The resolve mode
// posts cart-options requests for one recipe and therefore spends catalog
// quota; keep its concurrency low.
//
// Usage:
//
//	go run ./cmd/loadtest -mode cart -concurrency 20 -duration 30s
//	go run ./cmd/loadtest -mode resolve -recipe <id> -user <id> -concurrency 2
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type options struct {
	baseURL     string
	mode        string
	recipeID    string
	userID      string
	concurrency int
	duration    time.Duration
}

type stats struct {
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int
	failures  int
}

func (s *stats) record(d time.Duration, code int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		return
	}
	s.latencies = append(s.latencies, d)
	s.codes[code]++
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the grocery service")
	flag.StringVar(&opts.mode, "mode", "cart", "cart or resolve")
	flag.StringVar(&opts.recipeID, "recipe", "", "recipe id (required)")
	flag.StringVar(&opts.userID, "user", "", "owner of the recipe (required)")
	flag.IntVar(&opts.concurrency, "concurrency", 10, "concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	flag.Parse()

	if opts.recipeID == "" || opts.userID == "" {
		fmt.Fprintln(os.Stderr, "-recipe and -user are required")
		os.Exit(2)
	}
	var next func(ctx context.Context) (*http.Request, error)
	switch opts.mode {
	case "cart":
		next = cartRequest(opts)
	case "resolve":
		next = resolveRequest(opts)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", opts.mode)
		os.Exit(2)
	}

	fmt.Printf("target %s  mode %s  concurrency %d  duration %s\n\n", opts.baseURL, opts.mode, opts.concurrency, opts.duration)
	s := run(opts, next)
	if !report(s, opts.duration) {
		os.Exit(1)
	}
}

func cartRequest(opts options) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(grocery.CustomCartRequest{
			UserID:   opts.userID,
			RecipeID: opts.recipeID,
			Products: []grocery.SelectedProduct{
				{IngredientName: "pasta", ProductID: "123456789", Name: "Penne", Price: 1.98, Quantity: grocery.Q(2)},
				{IngredientName: "basil", ProductID: "223456789", Name: "Basil", Price: 3.48, Quantity: grocery.Q(1)},
			},
		})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.baseURL+"/grocery/custom-cart", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", "loadtest-"+uuid.NewString())
		return req, nil
	}
}

func resolveRequest(opts options) func(ctx context.Context) (*http.Request, error) {
	q := url.Values{"recipe_id": {opts.recipeID}, "user_id": {opts.userID}}
	target := opts.baseURL + "/grocery/cart-options?" + q.Encode()
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Request-ID", "loadtest-"+uuid.NewString())
		return req, nil
	}
}

func run(opts options, next func(ctx context.Context) (*http.Request, error)) *stats {
	s := &stats{codes: make(map[int]int)}
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	var g errgroup.Group
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				req, err := next(ctx)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						s.record(0, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(time.Since(start), resp.StatusCode, nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "building request: %v\n", err)
		os.Exit(1)
	}
	return s
}

// report prints the summary and reports whether any request completed.
func report(s *stats, duration time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.latencies) + s.failures
	fmt.Printf("requests      %d\n", total)
	fmt.Printf("transport err %d\n", s.failures)
	if total > 0 {
		fmt.Printf("requests/sec  %.2f\n", float64(total)/duration.Seconds())
	}

	lat := s.latencies
	if len(lat) > 0 {
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		fmt.Println()
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("p%-3s %s\n", strconv.FormatFloat(p, 'f', -1, 64), percentile(lat, p))
		}
		fmt.Printf("max  %s\n", lat[len(lat)-1])
	}

	codes := make([]int, 0, len(s.codes))
	for c := range s.codes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	fmt.Println()
	for _, c := range codes {
		fmt.Printf("  %d: %d\n", c, s.codes[c])
	}
	if total == 0 {
		fmt.Println("no requests completed; is the service running?")
	}
	return total > 0
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
