package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunedeck/internal/domain/playlist"
	"github.com/osa030/tunedeck/internal/domain/user"
)

// PendingLimitConfig represents the configuration for PendingLimitFilter.
type PendingLimitConfig struct {
	MaxPending int `mapstructure:"max_pending" default:"3" validate:"gte=1"`
}

// PendingLimitFilter limits how many playlists a student may have waiting for review.
type PendingLimitFilter struct {
	counter    PendingCounter
	maxPending int
}

// NewPendingLimitFilter creates a new pending limit filter.
func NewPendingLimitFilter(counter PendingCounter) *PendingLimitFilter {
	return &PendingLimitFilter{
		counter:    counter,
		maxPending: 3,
	}
}

func (f *PendingLimitFilter) Name() string {
	return "pending_limit_filter"
}

func (f *PendingLimitFilter) Description() string {
	return "Limits the number of playlists a student may have pending review"
}

func (f *PendingLimitFilter) ReturnCodes() []string {
	return []string{"pending_limit_reached"}
}

func (f *PendingLimitFilter) ValidateConfig(settings map[string]any) error {
	var config PendingLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.maxPending = config.MaxPending
	return nil
}

// AppliesTo returns true only for students. Teachers are not limited.
func (f *PendingLimitFilter) AppliesTo(role user.Role) bool {
	return role == user.RoleStudent
}

func (f *PendingLimitFilter) Check(ctx context.Context, sub Submission) Result {
	if f.counter == nil {
		return Accept()
	}

	count, err := f.counter.CountByOwnerStatus(ctx, sub.UserID, playlist.StatusPending)
	if err != nil {
		zlog.Error().Err(err).Msgf("failed to count pending playlists: user=%s", sub.UserID)
		return Reject("pending_limit_reached")
	}
	if count >= f.maxPending {
		return Reject("pending_limit_reached")
	}
	return Accept()
}

func init() {
	Register("pending_limit_filter", func(deps Deps) Filter {
		return NewPendingLimitFilter(deps.Pending)
	})
}
