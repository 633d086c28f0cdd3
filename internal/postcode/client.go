// Package postcode looks up candidate addresses for a UK postcode against
// an external API. Lookups are advisory: every failure degrades to an
// empty list so intake forms never block on the address helper.
package postcode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	platformredis "minderdesk/internal/platform/redis"
)

// Address is one normalized candidate address.
type Address struct {
	Line1    string `json:"line1"`
	Town     string `json:"town"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode"`
}

// lookupResponse mirrors the postcodes API payload shape.
type lookupResponse struct {
	Status int `json:"status"`
	Result *struct {
		Postcode    string `json:"postcode"`
		PostTown    string `json:"post_town"`
		AdminWard   string `json:"admin_ward"`
		AdminCounty string `json:"admin_county"`
		Region      string `json:"region"`
	} `json:"result"`
}

// Client calls the lookup API and caches results in Redis.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    *platformredis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewClient(baseURL string, cache *platformredis.Client, cacheTTL time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 5 * time.Second},
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Lookup returns candidate addresses for a postcode. Never returns an
// error: unknown postcodes, provider outages, and cache failures all
// yield an empty list.
func (c *Client) Lookup(ctx context.Context, postcode string) []Address {
	normalized := Normalize(postcode)
	if normalized == "" {
		return []Address{}
	}

	if cached, ok := c.fromCache(ctx, normalized); ok {
		return cached
	}

	addresses := c.fetch(ctx, normalized)
	c.toCache(ctx, normalized, addresses)
	return addresses
}

func (c *Client) fetch(ctx context.Context, normalized string) []Address {
	endpoint := c.baseURL + "/postcodes/" + url.PathEscape(normalized)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "postcode request build failed", "postcode", normalized, "error", err)
		return []Address{}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "postcode lookup failed", "postcode", normalized, "error", err)
		return []Address{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "postcode lookup non-200", "postcode", normalized, "status", resp.StatusCode)
		return []Address{}
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.WarnContext(ctx, "postcode response decode failed", "postcode", normalized, "error", err)
		return []Address{}
	}
	if payload.Result == nil {
		return []Address{}
	}

	county := payload.Result.AdminCounty
	if county == "" {
		county = payload.Result.Region
	}
	return []Address{{
		Line1:    payload.Result.AdminWard,
		Town:     payload.Result.PostTown,
		County:   county,
		Postcode: payload.Result.Postcode,
	}}
}

func (c *Client) fromCache(ctx context.Context, normalized string) ([]Address, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.Get(ctx, cacheKey(normalized)).Result()
	if err != nil {
		return nil, false
	}
	var addresses []Address
	if err := json.Unmarshal([]byte(raw), &addresses); err != nil {
		c.logger.WarnContext(ctx, "postcode cache entry corrupt", "postcode", normalized, "error", err)
		return nil, false
	}
	return addresses, true
}

func (c *Client) toCache(ctx context.Context, normalized string, addresses []Address) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(addresses)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(normalized), raw, c.cacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "postcode cache write failed", "postcode", normalized, "error", err)
	}
}

func cacheKey(normalized string) string {
	return fmt.Sprintf("postcode:%s", normalized)
}

// Normalize uppercases and strips interior whitespace so "sw1a 1aa" and
// "SW1A1AA" share a cache entry.
func Normalize(postcode string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(postcode), " ", ""))
}
