package tool

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// unitClients shares one http.Client per timeout across HTTP units so
// manifests with the same timeout reuse connections.
var unitClients = struct {
	sync.Mutex
	byTimeout map[time.Duration]*http.Client
}{byTimeout: make(map[time.Duration]*http.Client)}

// unitHTTPClient returns the shared client for timeout.
func unitHTTPClient(timeout time.Duration) *http.Client {
	unitClients.Lock()
	defer unitClients.Unlock()

	if c, ok := unitClients.byTimeout[timeout]; ok {
		return c
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	c := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
	unitClients.byTimeout[timeout] = c
	return c
}
