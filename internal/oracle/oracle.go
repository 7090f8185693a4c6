// Package oracle maintains an approximate fiat exchange rate for display.
// The rate never feeds into on-chain amounts.
package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/securerent/securerent-client/internal/logger"
)

// Rate is the last known fiat price of one ETH. Stale reports whether the
// most recent fetch attempt failed; the value itself survives failures and is
// only ever replaced by a successful fetch.
type Rate struct {
	Value     decimal.Decimal
	Currency  string
	FetchedAt time.Time
	Stale     bool
}

// Cache periodically fetches the rate from an HTTP endpoint and serves the
// last good value, stale-but-available rather than fail-closed.
type Cache struct {
	url      string
	currency string
	interval time.Duration
	client   *http.Client

	mu      sync.RWMutex
	rate    Rate
	fetched bool

	stop chan struct{}
	once sync.Once
}

func NewCache(url, currency string, interval time.Duration) *Cache {
	return &Cache{
		url:      url,
		currency: currency,
		interval: interval,
		client:   &http.Client{Timeout: 15 * time.Second},
		stop:     make(chan struct{}),
	}
}

// Start fetches once immediately and then refreshes on the fixed interval
// until Stop is called or ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	c.refresh(ctx)

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.refresh(ctx)
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Cache) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Rate returns the last successfully fetched rate. ok is false until the
// first successful fetch.
func (c *Cache) Rate() (Rate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate, c.fetched
}

func (c *Cache) refresh(ctx context.Context) {
	value, err := c.fetch(ctx)
	if err != nil {
		logger.Error("fiat rate fetch failed:", err)
		c.mu.Lock()
		// Keep the previous value, only flag it.
		c.rate.Stale = true
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.rate = Rate{
		Value:     value,
		Currency:  c.currency,
		FetchedAt: time.Now(),
		Stale:     false,
	}
	c.fetched = true
	c.mu.Unlock()
}

func (c *Cache) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return decimal.Zero, err
	}

	// CoinGecko-shaped payload: {"ethereum":{"mxn":20000.12}}
	result := gjson.GetBytes(body, "ethereum."+c.currency)
	if !result.Exists() {
		return decimal.Zero, fmt.Errorf("rate payload missing ethereum.%s", c.currency)
	}

	value, err := decimal.NewFromString(result.Raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable rate %q: %w", result.Raw, err)
	}
	return value, nil
}
