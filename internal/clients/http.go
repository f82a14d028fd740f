// Package clients provides HTTP clients for the catalog, coupon and shipping
// services the storefront depends on.
package clients

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const serviceName = "cart-service"

// newHTTPClient returns a pooled client for service-to-service calls.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func setServiceHeaders(req *http.Request, tenantID string) {
	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("X-Internal-Service", serviceName)
	req.Header.Set("Accept", "application/json")
}
