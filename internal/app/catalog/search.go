package catalog

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Query narrows a catalog listing. Zero fields match everything.
type Query struct {
	Text    string // matched against title, artist and album
	Genre   string
	Source  track.Source
	Emotion string
	OwnerID string
	Limit   int
}

// List returns tracks matching q, newest first.
func (s *Service) List(ctx context.Context, q Query) ([]track.Track, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	f := store.TrackFilter{Genre: q.Genre, Source: q.Source, OwnerID: q.OwnerID}
	text := normalize(q.Text)
	emotion := normalize(q.Emotion)
	if text == "" && emotion == "" {
		f.Limit = limit
	}

	tracks, err := s.tracks.List(ctx, f)
	if err != nil {
		return nil, err
	}

	out := make([]track.Track, 0, min(len(tracks), limit))
	for _, t := range tracks {
		if text != "" && !matchesText(t, text) {
			continue
		}
		if emotion != "" && !hasEmotion(t, emotion) {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// normalize folds case and width so that "Ｃｌａｉｒ" matches "clair".
func normalize(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

func matchesText(t track.Track, needle string) bool {
	for _, field := range []string{t.Title, t.Artist, t.Album} {
		if strings.Contains(normalize(field), needle) {
			return true
		}
	}
	return false
}

func hasEmotion(t track.Track, emotion string) bool {
	for _, e := range t.Emotions {
		if e == emotion {
			return true
		}
	}
	return false
}
