package hlsproxy

import (
	"net/url"
	"strings"

	"github.com/elnormous/contenttype"
)

// PlaylistContentType is served for every rewritten manifest.
const PlaylistContentType = "application/vnd.apple.mpegurl"

// Classify decides how a resource is relayed. An explicit kind from the query
// string wins. Otherwise a .m3u8 path or an mpegurl content type means playlist.
func Classify(explicit, target, contentType string) Kind {
	if k, ok := ParseKind(explicit); ok {
		return k
	}
	if hasPlaylistPath(target) || isPlaylistContentType(contentType) {
		return KindPlaylist
	}
	return KindSegment
}

func hasPlaylistPath(target string) bool {
	p := target
	if u, err := url.Parse(target); err == nil {
		p = u.Path
	}
	return strings.HasSuffix(strings.ToLower(p), ".m3u8")
}

func isPlaylistContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, err := contenttype.ParseMediaType(ct)
	if err != nil {
		return strings.Contains(strings.ToLower(ct), "mpegurl")
	}
	return strings.Contains(strings.ToLower(mt.Subtype), "mpegurl")
}

// guessKind labels a URI found inside a manifest before it has been fetched.
func guessKind(resolved string) Kind {
	lower := strings.ToLower(resolved)
	if strings.Contains(lower, ".m3u8") || strings.Contains(lower, "playlist") {
		return KindPlaylist
	}
	return KindSegment
}
