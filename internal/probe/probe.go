// Package probe summarizes HLS manifests, typically fetched through the relay.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/grafov/m3u8"
)

// Variant is one rendition advertised by a master manifest.
type Variant struct {
	Bandwidth  uint32
	Resolution string
	Codecs     string
	URI        string
}

// Summary describes a decoded manifest.
type Summary struct {
	Master         bool
	Variants       []Variant
	Alternatives   int
	Segments       int
	TargetDuration float64
	Encrypted      bool
}

// Inspect decodes a manifest. Decoding is lenient so that origins with minor
// syntax problems still produce a summary.
func Inspect(r io.Reader) (*Summary, error) {
	pl, listType, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected playlist type")
		}
		s := &Summary{Master: true}
		seen := make(map[*m3u8.Alternative]bool)
		for _, v := range master.Variants {
			if v == nil {
				continue
			}
			s.Variants = append(s.Variants, Variant{
				Bandwidth:  v.Bandwidth,
				Resolution: v.Resolution,
				Codecs:     v.Codecs,
				URI:        v.URI,
			})
			for _, alt := range v.Alternatives {
				if alt != nil && !seen[alt] {
					seen[alt] = true
				}
			}
		}
		s.Alternatives = len(seen)
		return s, nil

	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected playlist type")
		}
		s := &Summary{TargetDuration: float64(media.TargetDuration)}
		for _, seg := range media.Segments {
			if seg == nil {
				break
			}
			s.Segments++
			if seg.Key != nil && seg.Key.Method != "" && seg.Key.Method != "NONE" {
				s.Encrypted = true
			}
		}
		if media.Key != nil && media.Key.Method != "" && media.Key.Method != "NONE" {
			s.Encrypted = true
		}
		return s, nil
	}

	return nil, fmt.Errorf("unknown playlist type")
}

// Fetch downloads playlistURL with client and inspects it.
func Fetch(ctx context.Context, client *http.Client, playlistURL string) (*Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to fetch playlist: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return Inspect(resp.Body)
}

// Write prints a human readable summary.
func (s *Summary) Write(w io.Writer) {
	if s.Master {
		fmt.Fprintf(w, "master playlist: %d variant(s), %d alternative rendition(s)\n", len(s.Variants), s.Alternatives)
		for i, v := range s.Variants {
			res := v.Resolution
			if res == "" {
				res = "-"
			}
			fmt.Fprintf(w, "  [%d] bandwidth=%d resolution=%s\n", i, v.Bandwidth, res)
		}
		return
	}
	fmt.Fprintf(w, "media playlist: %d segment(s), target duration %.0fs", s.Segments, s.TargetDuration)
	if s.Encrypted {
		fmt.Fprint(w, ", encrypted")
	}
	fmt.Fprintln(w)
}
