package gateway

import (
	"net/url"
	"strings"
)

// Endpoint decides where gateway requests go and how media links returned
// by the gateway are exposed to the dashboard.
type Endpoint interface {
	URL(path string, query url.Values) string
	RewriteMedia(raw string) string
}

// DirectEndpoint talks to the gateway at its own address.
type DirectEndpoint struct {
	BaseURL string
}

func (d DirectEndpoint) URL(path string, query url.Values) string {
	return join(d.BaseURL, path, query)
}

// RewriteMedia resolves gateway-relative media paths against the base URL.
func (d DirectEndpoint) RewriteMedia(raw string) string {
	if strings.HasPrefix(raw, "/") {
		return strings.TrimRight(d.BaseURL, "/") + raw
	}
	return raw
}

// ProxyEndpoint routes requests through a same-origin proxy path, e.g.
// Origin "http://localhost:7420" and Prefix "/gateway". Upstream is the
// gateway address that appears inside media URLs.
type ProxyEndpoint struct {
	Origin   string
	Prefix   string
	Upstream string
}

func (p ProxyEndpoint) base() string {
	return strings.TrimRight(p.Origin, "/") + "/" + strings.Trim(p.Prefix, "/")
}

func (p ProxyEndpoint) URL(path string, query url.Values) string {
	return join(p.base(), path, query)
}

// RewriteMedia moves media URLs that point at the upstream gateway onto
// the proxy path. Foreign URLs (CDNs, data URIs) are left alone.
func (p ProxyEndpoint) RewriteMedia(raw string) string {
	if strings.HasPrefix(raw, "/") {
		return p.base() + raw
	}
	up := strings.TrimRight(p.Upstream, "/")
	if up != "" && strings.HasPrefix(raw, up+"/") {
		return p.base() + strings.TrimPrefix(raw, up)
	}
	return raw
}

func join(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
