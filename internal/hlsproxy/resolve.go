package hlsproxy

import (
	"net/url"
	"strings"
)

// malformedPrefix shows up on some origins that drop the authority.
const malformedPrefix = "https:///"

// ResolveURL resolves ref against the manifest URL base. It never fails: if
// either side cannot be parsed, ref is returned unchanged.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)

	if strings.HasPrefix(ref, malformedPrefix) {
		b, err := url.Parse(base)
		if err != nil || b.Host == "" {
			return ref
		}
		return b.Scheme + "://" + b.Host + "/" + strings.TrimPrefix(ref, malformedPrefix)
	}

	if isAbsolute(ref) {
		return ref
	}

	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func isAbsolute(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
