package hlsproxy

import "testing"

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("Playlist"); !ok || k != KindPlaylist {
		t.Errorf("Playlist: %q %v", k, ok)
	}
	if k, ok := ParseKind("segment"); !ok || k != KindSegment {
		t.Errorf("segment: %q %v", k, ok)
	}
	if _, ok := ParseKind("video"); ok {
		t.Error("video should not parse")
	}
}

func TestClassify_explicit_kind_wins(t *testing.T) {
	if got := Classify("segment", "http://h/x.m3u8", "application/vnd.apple.mpegurl"); got != KindSegment {
		t.Errorf("got %s", got)
	}
	if got := Classify("playlist", "http://h/x.ts", "video/mp2t"); got != KindPlaylist {
		t.Errorf("got %s", got)
	}
}

func TestClassify_inferred(t *testing.T) {
	cases := []struct {
		url, ct string
		want    Kind
	}{
		{"http://h/tv/master.m3u8", "", KindPlaylist},
		{"http://h/tv/MASTER.M3U8?token=abc", "", KindPlaylist},
		{"http://h/live/stream", "application/vnd.apple.mpegurl", KindPlaylist},
		{"http://h/live/stream", "application/x-mpegURL; charset=utf-8", KindPlaylist},
		{"http://h/live/stream", "audio/mpegurl", KindPlaylist},
		{"http://h/seg/001.ts", "video/mp2t", KindSegment},
		{"http://h/seg/001.ts?next=a.m3u8", "", KindSegment},
		{"http://h/seg/init.mp4", "", KindSegment},
	}
	for _, c := range cases {
		if got := Classify("", c.url, c.ct); got != c.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", c.url, c.ct, got, c.want)
		}
	}
}

func TestClassify_unknown_explicit_falls_back(t *testing.T) {
	if got := Classify("bogus", "http://h/x.m3u8", ""); got != KindPlaylist {
		t.Errorf("got %s", got)
	}
}

func TestGuessKind(t *testing.T) {
	if guessKind("http://h/a/index.M3U8") != KindPlaylist {
		t.Error("m3u8 should be playlist")
	}
	if guessKind("http://h/get?type=playlist&id=1") != KindPlaylist {
		t.Error("playlist keyword should be playlist")
	}
	if guessKind("http://h/a/001.ts") != KindSegment {
		t.Error("ts should be segment")
	}
}
