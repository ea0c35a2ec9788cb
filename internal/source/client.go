// internal/source/client.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/errors"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "source:announcements"

// Client fetches announcements from the upstream procurement API and caches
// the decoded result in Redis so closely spaced cycles do not hammer the
// source. A cache read or write failure falls through to a live fetch.
type Client struct {
	cfg        config.SourceConfig
	httpClient *http.Client
	rdb        *redis.Client
	cacheTTL   time.Duration
	logger     logger.Logger
}

func NewClient(cfg config.SourceConfig, rdb *redis.Client, log logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		rdb:      rdb,
		cacheTTL: time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		logger:   log.WithFields(map[string]interface{}{"component": "source"}),
	}
}

func (c *Client) FetchAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	if anns, ok := c.fromCache(ctx); ok {
		return anns, nil
	}

	anns, err := c.fetchAllPages(ctx)
	if err != nil {
		return nil, err
	}

	c.toCache(ctx, anns)
	return anns, nil
}

func (c *Client) fetchAllPages(ctx context.Context) ([]models.Announcement, error) {
	var all []models.Announcement
	for offset := 0; ; offset += c.cfg.PageSize {
		page, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < c.cfg.PageSize {
			break
		}
	}

	c.logger.Info("fetched announcements", map[string]interface{}{
		"count": len(all),
	})
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]models.Announcement, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, errors.NewSourceFetchFailedError(err)
	}
	q := u.Query()
	q.Set("$limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("$offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.NewSourceFetchFailedError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewSourceFetchFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.NewSourceFetchFailedError(
			fmt.Errorf("source returned %d: %s", resp.StatusCode, string(body)))
	}

	var page []models.Announcement
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.NewSourceDecodeError(err)
	}
	return page, nil
}

func (c *Client) fromCache(ctx context.Context) ([]models.Announcement, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, cacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("source cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, false
	}

	var anns []models.Announcement
	if err := json.Unmarshal([]byte(raw), &anns); err != nil {
		c.logger.Warn("source cache entry corrupt, refetching", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}
	return anns, true
}

func (c *Client) toCache(ctx context.Context, anns []models.Announcement) {
	if c.rdb == nil || c.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(anns)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey, payload, c.cacheTTL).Err(); err != nil {
		c.logger.Warn("source cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
