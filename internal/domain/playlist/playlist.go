// Package playlist provides the Playlist domain entity and its review workflow.
package playlist

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tunedeck/internal/domain/track"
	"github.com/osa030/tunedeck/internal/domain/user"
)

// Errors
var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrReviewNoteRequired = errors.New("review note is required when rejecting")
)

// Status represents the review status of a playlist.
type Status string

const (
	StatusDraft    Status = "draft"    // Editable by the owner, not submitted
	StatusPending  Status = "pending"  // Submitted, waiting for a teacher
	StatusApproved Status = "approved" // Visible to everyone
	StatusRejected Status = "rejected" // Returned to the owner with a note
)

// Playlist represents a user-created playlist.
type Playlist struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	OwnerID     string        `json:"owner_id"`
	ClassCode   string        `json:"class_code,omitempty"`
	Tracks      []track.Track `json:"tracks"`
	Status      Status        `json:"status"`
	ReviewerID  string        `json:"reviewer_id,omitempty"`
	ReviewNote  string        `json:"review_note,omitempty"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TrackIDs returns all track IDs in the playlist.
func (p *Playlist) TrackIDs() []string {
	return track.IDs(p.Tracks)
}

// TotalDuration returns the total duration of all tracks in seconds.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, t := range p.Tracks {
		total += int64(t.Duration)
	}
	return total
}

// IsEditable reports whether the owner may still change the playlist.
func (p *Playlist) IsEditable() bool {
	return p.Status == StatusDraft || p.Status == StatusRejected
}

// IsVisibleTo reports whether a user with the given role may read the playlist.
func (p *Playlist) IsVisibleTo(userID string, role user.Role) bool {
	if p.Status == StatusApproved {
		return true
	}
	return p.OwnerID == userID || role.CanModerate()
}

// Submit moves a draft or rejected playlist into the review queue.
func (p *Playlist) Submit(now time.Time) error {
	if !p.IsEditable() {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", p.Status, StatusPending)
	}
	p.Status = StatusPending
	p.SubmittedAt = &now
	p.ReviewerID = ""
	p.ReviewNote = ""
	p.ReviewedAt = nil
	return nil
}

// Approve marks a pending playlist as approved.
func (p *Playlist) Approve(reviewerID, note string, now time.Time) error {
	return p.review(StatusApproved, reviewerID, note, now)
}

// Reject marks a pending playlist as rejected. A note is mandatory.
func (p *Playlist) Reject(reviewerID, note string, now time.Time) error {
	if strings.TrimSpace(note) == "" {
		return ErrReviewNoteRequired
	}
	return p.review(StatusRejected, reviewerID, note, now)
}

func (p *Playlist) review(to Status, reviewerID, note string, now time.Time) error {
	if p.Status != StatusPending {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", p.Status, to)
	}
	p.Status = to
	p.ReviewerID = reviewerID
	p.ReviewNote = note
	p.ReviewedAt = &now
	return nil
}
