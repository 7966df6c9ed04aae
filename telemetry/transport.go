package telemetry

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/dnscache"
)

const (
	dialTimeout   = 5 * time.Second
	dialKeepAlive = 30 * time.Second
)

var resolver = sync.OnceValue(func() *dnscache.Resolver { //nolint:gochecknoglobals
	return &dnscache.Resolver{}
})

// exporterClient returns the HTTP client shared by the OTLP exporters.
// With dnsCache set, collector host lookups go through a caching resolver;
// batch exports hit the same host every few seconds.
func exporterClient(timeout time.Duration, dnsCache bool) *http.Client {
	trans, _ := http.DefaultTransport.(*http.Transport)
	trans = trans.Clone()

	if dnsCache {
		trans.DialContext = cachedDialer(resolver(), &net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: dialKeepAlive,
		})
	}

	return &http.Client{Transport: trans, Timeout: timeout}
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// cachedDialer resolves the host once through res and tries each address in
// turn until one connects.
func cachedDialer(res *dnscache.Resolver, dialer *net.Dialer) dialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := res.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}

		if len(ips) == 0 {
			return nil, &net.DNSError{Err: "no addresses", Name: host, IsNotFound: true}
		}

		var conn net.Conn

		for _, ip := range ips {
			conn, err = dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
		}

		return nil, err
	}
}
