package poolfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coverline/internal/risk"
)

// Feed pulls an underwriting pool's reported capital from its HTTP
// endpoint and pushes it into the coverage data provider. Each pool
// publishes a small JSON document with its wei balance.
type Feed struct {
	name   string
	url    string
	client *http.Client
	logger zerolog.Logger
}

// Options parameterise a pool feed.
type Options struct {
	// Name is the underwriting pool's registered name.
	Name    string
	// URL is the pool's balance endpoint.
	URL     string
	Timeout time.Duration
}

// NewFeed constructs a pool feed.
func NewFeed(opts Options, logger zerolog.Logger) *Feed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Feed{
		name:   opts.Name,
		url:    strings.TrimRight(opts.URL, "/"),
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "pool_feed").Str("pool", opts.Name).Logger(),
	}
}

// Name returns the pool's registered name.
func (f *Feed) Name() string { return f.name }

type balanceResponse struct {
	Pool       string `json:"pool"`
	BalanceWei string `json:"balanceWei"`
}

// Fetch retrieves the pool's current balance in wei.
func (f *Feed) Fetch(ctx context.Context) (*big.Int, error) {
	if f.url == "" {
		return nil, errors.New("pool feed url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pool feed error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var body balanceResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(body.BalanceWei, 10)
	if !ok {
		return nil, fmt.Errorf("parse balance: %q", body.BalanceWei)
	}
	if balance.Sign() < 0 {
		return nil, errors.New("balance returned negative")
	}
	return balance, nil
}

// Refresh fetches the balance and reports it to the provider. A failing
// pool keeps its last reported figure.
func (f *Feed) Refresh(ctx context.Context, provider *risk.DataProvider) error {
	balance, err := f.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch pool balance: %w", err)
	}
	if err := provider.Set(f.name, balance); err != nil {
		return err
	}
	f.logger.Debug().Str("balance_wei", balance.String()).Msg("pool balance refreshed")
	return nil
}
