package tunedeckv1

import (
	"time"

	"github.com/osa030/tunedeck/internal/app/playback"
	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/track"
)

// FromTrack converts a domain track to its wire form.
func FromTrack(t track.Track) *Track {
	return &Track{
		Id:          t.ID,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		DurationMs:  t.DurationMs(),
		Uri:         t.URI,
		CoverArtUri: t.CoverArtURI,
		Genre:       t.Genre,
		Source:      string(t.Source),
		Emotions:    t.Emotions,
	}
}

func fromTracks(tracks []track.Track) []*Track {
	out := make([]*Track, len(tracks))
	for i, t := range tracks {
		out[i] = FromTrack(t)
	}
	return out
}

// FromState converts a controller snapshot to its wire form.
func FromState(s playback.PlaybackState) *PlaybackState {
	out := &PlaybackState{
		CurrentIndex:  int32(s.CurrentIndex),
		Queue:         fromTracks(s.Queue),
		OriginalQueue: fromTracks(s.OriginalQueue),
		IsPlaying:     s.IsPlaying,
		PositionMs:    s.PositionMs,
		DurationMs:    s.DurationMs,
		IsShuffled:    s.IsShuffled,
		RepeatMode:    s.RepeatMode.String(),
		IsLoading:     s.IsLoading,
		State:         s.State.String(),
	}
	if s.CurrentTrack != nil {
		out.CurrentTrack = FromTrack(*s.CurrentTrack)
	}
	return out
}

// FromEvent converts a controller event. The sequence number is left zero
// for the publisher to stamp.
func FromEvent(e playback.Event) *PlaybackEvent {
	out := &PlaybackEvent{
		Type:  EventType(e.Type.String()),
		State: FromState(e.State),
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}

// FromPlaylist converts a domain playlist to its wire summary.
func FromPlaylist(p *playlist.Playlist) *Playlist {
	return &Playlist{
		Id:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		OwnerId:          p.OwnerID,
		ClassCode:        p.ClassCode,
		Status:           string(p.Status),
		TrackIds:         p.TrackIDs(),
		TotalDurationSec: p.TotalDuration(),
		ReviewerId:       p.ReviewerID,
		ReviewNote:       p.ReviewNote,
		SubmittedAt:      formatTime(p.SubmittedAt),
		ReviewedAt:       formatTime(p.ReviewedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
