// Package util holds shared HTTP plumbing for the raw-HTTP backend
// clients.
package util

import (
	"net/http"
	"net/url"
	"strings"
)

// NewProxyFunc builds the Proxy callback for a backend HTTP client.
// With nothing configured the process environment decides, so the
// standard http_proxy/no_proxy variables keep working. Configured
// proxies are matched by scheme, and hosts listed in noProxy connect
// directly: a localhost Ollama or an in-cluster Elasticsearch must not
// be routed through an egress proxy.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	skip := splitNoProxy(noProxy)
	return func(req *http.Request) (*url.URL, error) {
		if bypassProxy(req.URL.Hostname(), skip) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

// splitNoProxy normalizes the comma-separated no-proxy list. Leading
// dots come off so ".internal.example" and "internal.example" match the
// same hosts.
func splitNoProxy(noProxy string) []string {
	var hosts []string
	for _, h := range strings.Split(noProxy, ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, strings.TrimPrefix(h, "."))
		}
	}
	return hosts
}

// bypassProxy reports whether host matches a no-proxy entry, exactly or
// as a domain suffix. "*" bypasses everything.
func bypassProxy(host string, skip []string) bool {
	host = strings.ToLower(host)
	for _, entry := range skip {
		if entry == "*" || host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
