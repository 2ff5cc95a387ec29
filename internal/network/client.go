package network

import (
	"sync"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const DefaultTimeout = 30 * time.Second

// Doer sends one request on behalf of an identity.
type Doer interface {
	Do(req *fhttp.Request, id Identity) (*fhttp.Response, error)
}

// Client is a browser-fingerprinted HTTP client. It keeps no cookie jar so
// successive requests share no session state.
type Client struct {
	mu    sync.Mutex
	http  tls_client.HttpClient
	proxy string
}

func NewClient(timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := tls_client.NewHttpClient(
		tls_client.NewNoopLogger(),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
	)
	if err != nil {
		return nil, err
	}

	return &Client{http: client}, nil
}

func (c *Client) Do(req *fhttp.Request, id Identity) (*fhttp.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if proxy := id.proxyKey(); proxy != c.proxy {
		if err := c.http.SetProxy(proxy); err != nil {
			return nil, err
		}
		c.proxy = proxy
	}
	return c.http.Do(req)
}
