package hlsproxy

import "strings"

// Kind tells the relay how to treat a fetched resource.
type Kind string

const (
	// KindPlaylist is an HLS manifest. It is always fetched in full and rewritten.
	KindPlaylist Kind = "playlist"
	// KindSegment is a binary media chunk streamed through untouched.
	KindSegment Kind = "segment"
)

// ParseKind returns the Kind named by s. ok is false for anything other than
// "playlist" or "segment" (case-insensitive).
func ParseKind(s string) (k Kind, ok bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPlaylist:
		return KindPlaylist, true
	case KindSegment:
		return KindSegment, true
	}
	return "", false
}

// StreamDescriptor is a target URL plus the authorization context needed to
// fetch it. It only ever travels in the query string of a proxied URL.
type StreamDescriptor struct {
	URL     string
	Referer string
	Cookie  string
}

// ProxyConfig addresses a running relay.
type ProxyConfig struct {
	Host string
	Port int
}
