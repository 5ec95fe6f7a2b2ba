package customHttpClient

import (
	"net/http"
	"sync"
	"time"

	"github.com/akolanti/docqa/internal/config"
)

var (
	mu        sync.Mutex
	transport *http.Transport
	clients   = map[time.Duration]*http.Client{}
)

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = config.MaxIdleConns
	t.MaxIdleConnsPerHost = config.MaxIdleConnsPerHost
	t.IdleConnTimeout = config.IdleConnTimeout
	return t
}

// Shared returns the pooled client for timeout. Clients with different timeouts share one transport.
// Per request deadlines come from the caller context, timeout is only a backstop.
func Shared(timeout time.Duration) *http.Client {
	mu.Lock()
	defer mu.Unlock()

	if c, ok := clients[timeout]; ok {
		return c
	}
	if transport == nil {
		transport = newTransport()
	}
	c := &http.Client{Transport: transport, Timeout: timeout}
	clients[timeout] = c
	return c
}
