package hlsproxy

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultHost is the loopback address the relay binds to.
	DefaultHost = "127.0.0.1"
	// RoutePath is the single relay route.
	RoutePath = "/api/hls"
)

// BuildURL returns the relay URL for target on the loopback relay listening on port.
func BuildURL(port int, target, referer, cookie string, kind Kind) string {
	return ProxyConfig{Host: DefaultHost, Port: port}.URL(target, referer, cookie, kind)
}

// URL mints a relay URL. The query keeps the fixed order url, referer, cookie,
// kind and every value is escaped with url.QueryEscape, so the handler's
// r.URL.Query() is its exact inverse.
func (c ProxyConfig) URL(target, referer, cookie string, kind Kind) string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}

	var b strings.Builder
	b.WriteString("http://")
	b.WriteString(net.JoinHostPort(host, strconv.Itoa(c.Port)))
	b.WriteString(RoutePath)
	b.WriteString("?url=")
	b.WriteString(url.QueryEscape(target))
	b.WriteString("&referer=")
	b.WriteString(url.QueryEscape(referer))
	b.WriteString("&cookie=")
	b.WriteString(url.QueryEscape(cookie))
	b.WriteString("&kind=")
	b.WriteString(url.QueryEscape(string(kind)))
	return b.String()
}

// StreamURL returns the URL a player should open for d. With a nil cfg there is
// no relay and the raw target is returned as is.
func StreamURL(cfg *ProxyConfig, d StreamDescriptor) string {
	if cfg == nil {
		return d.URL
	}
	return cfg.URL(d.URL, d.Referer, d.Cookie, KindPlaylist)
}
