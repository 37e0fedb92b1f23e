package catalog

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/infra/lastfm"
)

// Emotions, in the order they are reported.
var Emotions = []string{"happy", "sad", "calm", "energetic", "romantic", "dark", "focus"}

// tagEmotions maps lower-cased Last.fm tags to emotions.
var tagEmotions = map[string]string{
	"happy":         "happy",
	"feel good":     "happy",
	"upbeat":        "happy",
	"cheerful":      "happy",
	"fun":           "happy",
	"summer":        "happy",
	"sad":           "sad",
	"melancholy":    "sad",
	"melancholic":   "sad",
	"depressing":    "sad",
	"heartbreak":    "sad",
	"chill":         "calm",
	"chillout":      "calm",
	"relaxing":      "calm",
	"calm":          "calm",
	"mellow":        "calm",
	"ambient":       "calm",
	"peaceful":      "calm",
	"energetic":     "energetic",
	"party":         "energetic",
	"dance":         "energetic",
	"workout":       "energetic",
	"epic":          "energetic",
	"love":          "romantic",
	"romantic":      "romantic",
	"love songs":    "romantic",
	"dark":          "dark",
	"gloomy":        "dark",
	"gothic":        "dark",
	"haunting":      "dark",
	"focus":         "focus",
	"study":         "focus",
	"concentration": "focus",
	"instrumental":  "focus",
	"lo-fi":         "focus",
	"classical":     "focus",
}

// TagSource looks up community tags for tracks and artists.
type TagSource interface {
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetArtistTopTags(ctx context.Context, artistName string, limit int) ([]lastfm.Tag, error)
}

// Tagger derives emotion tags from Last.fm top tags.
type Tagger struct {
	source   TagSource
	maxTags  int
	minCount int
}

// NewTagger creates a tagger that considers up to maxTags tags per lookup.
func NewTagger(source TagSource, maxTags int) *Tagger {
	if maxTags <= 0 {
		maxTags = 10
	}
	return &Tagger{source: source, maxTags: maxTags, minCount: 5}
}

// Emotions returns the emotions of t. Artist tags are used when the track has none.
func (tg *Tagger) Emotions(ctx context.Context, t *track.Track) ([]string, error) {
	if t.Artist == "" {
		return nil, errors.Newf("track %s has no artist to look up", t.ID)
	}

	tags, err := tg.source.GetTopTags(ctx, t.Title, t.Artist, tg.maxTags)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track tags")
	}
	if len(tags) == 0 {
		zlog.Debug().Msgf("no track tags, falling back to artist: artist=%s", t.Artist)
		tags, err = tg.source.GetArtistTopTags(ctx, t.Artist, tg.maxTags)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get artist tags")
		}
	}
	return tg.mapTags(tags), nil
}

func (tg *Tagger) mapTags(tags []lastfm.Tag) []string {
	found := make(map[string]bool)
	for _, tag := range tags {
		if tag.Count < tg.minCount {
			continue
		}
		if e, ok := tagEmotions[strings.ToLower(strings.TrimSpace(tag.Name))]; ok {
			found[e] = true
		}
	}

	emotions := make([]string, 0, len(found))
	for _, e := range Emotions {
		if found[e] {
			emotions = append(emotions, e)
		}
	}
	return emotions
}
