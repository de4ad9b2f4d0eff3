package hlsproxy

import (
	"regexp"
	"strings"
)

// DefaultVariantLimit is how many #EXT-X-STREAM-INF variants a rewritten master
// manifest keeps.
const DefaultVariantLimit = 3

const (
	tagStreamInf       = "#EXT-X-STREAM-INF"
	tagIFrameStreamInf = "#EXT-X-I-FRAME-STREAM-INF"
	tagMedia           = "#EXT-X-MEDIA:"
)

var (
	uriAttrRe = regexp.MustCompile(`(?i)([A-Z-]*URI)="([^"]+)"`)
	attrRe    = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^,]*)`)
)

// Track is an #EXT-X-MEDIA rendition as seen by a TrackFilter.
type Track struct {
	Type            string
	GroupID         string
	Name            string
	Characteristics string
}

// TrackFilter reports whether a rendition should be dropped from a master manifest.
type TrackFilter func(Track) bool

// ExcludeKinds drops renditions whose type, name, group or characteristics
// contain any of kinds, case-insensitively. Empty kinds are ignored.
func ExcludeKinds(kinds ...string) TrackFilter {
	var want []string
	for _, k := range kinds {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			want = append(want, k)
		}
	}
	if len(want) == 0 {
		return nil
	}
	return func(t Track) bool {
		hay := strings.ToLower(strings.Join([]string{t.Type, t.GroupID, t.Name, t.Characteristics}, "\x00"))
		for _, k := range want {
			if strings.Contains(hay, k) {
				return true
			}
		}
		return false
	}
}

// Stats describes what a rewrite did.
type Stats struct {
	Master          bool
	Variants        int
	DroppedVariants int
	DroppedTracks   int
	URIs            int
}

// Rewriter routes every URI of a manifest back through the relay.
type Rewriter struct {
	variantLimit int
	dropTrack    TrackFilter
}

// NewRewriter returns a Rewriter keeping at most variantLimit variants per master
// manifest. variantLimit <= 0 keeps all of them. dropTrack may be nil.
func NewRewriter(variantLimit int, dropTrack TrackFilter) *Rewriter {
	return &Rewriter{variantLimit: variantLimit, dropTrack: dropTrack}
}

// Rewrite resolves every URI of content against baseURL and replaces it with a
// relay URL on proxy carrying referer and cookie. Tag content other than URI
// attributes and the order of lines are preserved. Lines no rule matches pass
// through unchanged.
func (rw *Rewriter) Rewrite(content, baseURL, referer, cookie string, proxy ProxyConfig) (string, Stats) {
	lines := Tokenize(content)
	st := Stats{Master: strings.Contains(content, tagStreamInf)}

	// kind is empty when the URI's role is unknown and must be guessed.
	mint := func(ref string, kind Kind) string {
		resolved := ResolveURL(baseURL, ref)
		st.URIs++
		if kind == "" {
			kind = guessKind(resolved)
		}
		return proxy.URL(resolved, referer, cookie, kind)
	}
	mintPlaylist := func(ref string) string { return mint(ref, KindPlaylist) }
	mintGuess := func(ref string) string { return mint(ref, "") }

	out := make([]string, 0, len(lines))
	skipNextURI := false
	variantNext := false
	for _, l := range lines {
		switch l.Kind {
		case LineBlank:
			out = append(out, "")

		case LineTag:
			if st.Master && strings.Contains(l.Text, tagStreamInf) {
				if rw.variantLimit > 0 && st.Variants >= rw.variantLimit {
					st.DroppedVariants++
					skipNextURI = true
					continue
				}
				st.Variants++
				variantNext = true
			}
			if st.Master && rw.dropTrack != nil && strings.HasPrefix(l.Text, tagMedia) && rw.dropTrack(parseTrack(l.Text)) {
				st.DroppedTracks++
				continue
			}
			// Rendition groups and I-frame streams always point at media playlists.
			if strings.HasPrefix(l.Text, tagMedia) || strings.HasPrefix(l.Text, tagIFrameStreamInf) {
				out = append(out, rewriteURIAttrs(l.Text, mintPlaylist))
			} else {
				out = append(out, rewriteURIAttrs(l.Text, mintGuess))
			}

		case LineURI:
			if skipNextURI {
				skipNextURI = false
				continue
			}
			if variantNext {
				variantNext = false
				out = append(out, mint(l.Text, KindPlaylist))
				continue
			}
			out = append(out, mint(l.Text, ""))
		}
	}

	if len(out) == 0 {
		return "", st
	}
	res := strings.Join(out, "\n")
	if strings.HasSuffix(content, "\n") {
		res += "\n"
	}
	return res, st
}

// rewriteURIAttrs replaces the value of every NAME-ending-in-URI="..." attribute.
func rewriteURIAttrs(tag string, mint func(string) string) string {
	matches := uriAttrRe.FindAllStringSubmatchIndex(tag, -1)
	if matches == nil {
		return tag
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		// m[4]:m[5] is the quoted value.
		b.WriteString(tag[last:m[4]])
		b.WriteString(mint(tag[m[4]:m[5]]))
		last = m[5]
	}
	b.WriteString(tag[last:])
	return b.String()
}

func parseTrack(tag string) Track {
	var t Track
	body := tag[strings.IndexByte(tag, ':')+1:]
	for _, m := range attrRe.FindAllStringSubmatch(body, -1) {
		v := strings.Trim(m[2], `"`)
		switch strings.ToUpper(m[1]) {
		case "TYPE":
			t.Type = v
		case "GROUP-ID":
			t.GroupID = v
		case "NAME":
			t.Name = v
		case "CHARACTERISTICS":
			t.Characteristics = v
		}
	}
	return t
}
