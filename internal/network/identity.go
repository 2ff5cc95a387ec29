package network

import (
	"errors"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
)

var ErrNoUserAgents = errors.New("identity pool needs at least one user agent")

// DefaultUserAgents is the built-in client signature pool.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Identity is the client signature a single request goes out with.
type Identity struct {
	UserAgent string
	Proxy     *url.URL
}

func (i Identity) proxyKey() string {
	if i.Proxy == nil {
		return ""
	}
	return i.Proxy.String()
}

// IdentityPool hands out a random user agent per request and, when proxies
// are configured, the next proxy that is not serving a ban.
type IdentityPool struct {
	mu          sync.Mutex
	userAgents  []string
	proxies     []*url.URL
	banDuration time.Duration
	bannedUntil map[string]time.Time
	index       int
	rand        *rand.Rand
	now         func() time.Time
}

func NewIdentityPool(userAgents []string, proxies []string, banDuration time.Duration) (*IdentityPool, error) {
	pool := &IdentityPool{
		banDuration: banDuration,
		bannedUntil: map[string]time.Time{},
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}

	for _, ua := range userAgents {
		ua = strings.TrimSpace(ua)
		if ua == "" {
			continue
		}
		pool.userAgents = append(pool.userAgents, ua)
	}
	if len(pool.userAgents) == 0 {
		return nil, ErrNoUserAgents
	}

	for _, proxy := range proxies {
		u, err := url.Parse(strings.TrimSpace(proxy))
		if err != nil {
			return nil, err
		}
		pool.proxies = append(pool.proxies, u)
	}

	return pool, nil
}

// Next picks a user agent uniformly at random. The proxy is nil when none
// are configured or every proxy is banned.
func (p *IdentityPool) Next() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Identity{
		UserAgent: p.userAgents[p.rand.Intn(len(p.userAgents))],
		Proxy:     p.nextProxy(),
	}
}

func (p *IdentityPool) nextProxy() *url.URL {
	if len(p.proxies) == 0 {
		return nil
	}

	for range p.proxies {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)
		if !p.isBanned(proxy) {
			return proxy
		}
	}
	return nil
}

// Report bans the identity's proxy after the site pushed back on it.
func (p *IdentityPool) Report(id Identity, status int) {
	if id.Proxy == nil {
		return
	}
	if status != fhttp.StatusForbidden && status != fhttp.StatusTooManyRequests {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.bannedUntil[id.proxyKey()] = p.now().Add(p.banDuration)
}

func (p *IdentityPool) isBanned(proxy *url.URL) bool {
	until, ok := p.bannedUntil[proxy.String()]
	if !ok {
		return false
	}
	if p.now().After(until) {
		delete(p.bannedUntil, proxy.String())
		return false
	}
	return true
}

// UserAgents returns a copy of the signature pool.
func (p *IdentityPool) UserAgents() []string {
	return append([]string{}, p.userAgents...)
}
