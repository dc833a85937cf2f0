// Package robotscache answers robots.txt allow/disallow questions for
// the page session's preflight step (§4.2 step 1), caching each host's
// parsed robots.txt so a crawl of many pages on one domain only fetches
// it once. Grounded on pkg/seeder's sitemapLocationsFromRobots, which
// fetches and parses robots.txt with temoto/robotstxt but has no need
// to cache or test paths against it.
package robotscache

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/crawlforge/crawlforge/pkg/httpcap"
)

// UserAgent is the product token checked against robots.txt groups.
const UserAgent = "crawlforge"

// Cache fetches and memoizes robots.txt data per host.
type Cache struct {
	client httpcap.Client

	mu      sync.Mutex
	byHost  map[string]*robotstxt.RobotsData
	errHost map[string]error
}

// New returns a Cache that fetches robots.txt through client.
func New(client httpcap.Client) *Cache {
	return &Cache{
		client:  client,
		byHost:  make(map[string]*robotstxt.RobotsData),
		errHost: make(map[string]error),
	}
}

// Allowed reports whether rawURL may be fetched under the host's
// robots.txt. A robots.txt that fails to fetch or parse is treated as
// permissive (allowed, nil error) rather than blocking the crawl.
func (c *Cache) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}

	data, err := c.forHost(ctx, u)
	if err != nil || data == nil {
		return true, nil
	}
	return data.TestAgent(u.Path, UserAgent), nil
}

func (c *Cache) forHost(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := u.Scheme + "://" + u.Host

	c.mu.Lock()
	if data, ok := c.byHost[hostKey]; ok {
		c.mu.Unlock()
		return data, nil
	}
	if err, ok := c.errHost[hostKey]; ok {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	robotsURL := *u
	robotsURL.Path = "/robots.txt"
	robotsURL.RawQuery = ""

	resp, err := c.client.Get(ctx, robotsURL.String())
	if err != nil {
		c.remember(hostKey, nil, err)
		return nil, err
	}
	var body []byte
	if resp.Body != nil {
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.remember(hostKey, nil, err)
			return nil, err
		}
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.remember(hostKey, nil, err)
		return nil, err
	}
	c.remember(hostKey, data, nil)
	return data, nil
}

func (c *Cache) remember(hostKey string, data *robotstxt.RobotsData, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errHost[hostKey] = err
		return
	}
	c.byHost[hostKey] = data
}
