// Package user provides the User and Preferences domain entities.
package user

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrUnknownRole is returned by ParseRole for unrecognised values.
var ErrUnknownRole = errors.New("unknown role")

// Role represents what a user is allowed to do.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	default:
		return "", errors.Wrapf(ErrUnknownRole, "%q", s)
	}
}

// CanModerate reports whether the role may approve or reject playlists.
func (r Role) CanModerate() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Preferences holds per-user appearance and playback settings.
// Keys are snake_case on every surface; there is no camelCase alias.
type Preferences struct {
	UserID        string    `json:"user_id"`
	Theme         string    `json:"theme" default:"system" validate:"oneof=light dark system"`
	AccentColor   string    `json:"accent_color" default:"#1db954" validate:"hexcolor"`
	BrandName     string    `json:"brand_name" validate:"max=64"`
	LogoURL       string    `json:"logo_url" validate:"omitempty,url"`
	Autoplay      bool      `json:"autoplay"`
	DefaultRepeat string    `json:"default_repeat" default:"off" validate:"oneof=off all one"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultPreferences returns the preferences used when a user has none stored.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:        userID,
		Theme:         "system",
		AccentColor:   "#1db954",
		Autoplay:      true,
		DefaultRepeat: "off",
	}
}

// Validate validates the preference values.
func (p *Preferences) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(err, "invalid preferences")
	}
	return nil
}

// PreferencesPatch carries a partial update. Nil fields are left unchanged.
type PreferencesPatch struct {
	Theme         *string `json:"theme"`
	AccentColor   *string `json:"accent_color"`
	BrandName     *string `json:"brand_name"`
	LogoURL       *string `json:"logo_url"`
	Autoplay      *bool   `json:"autoplay"`
	DefaultRepeat *string `json:"default_repeat"`
}

// Apply returns a copy of p with the patch applied.
func (patch PreferencesPatch) Apply(p Preferences) Preferences {
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.AccentColor != nil {
		p.AccentColor = *patch.AccentColor
	}
	if patch.BrandName != nil {
		p.BrandName = *patch.BrandName
	}
	if patch.LogoURL != nil {
		p.LogoURL = *patch.LogoURL
	}
	if patch.Autoplay != nil {
		p.Autoplay = *patch.Autoplay
	}
	if patch.DefaultRepeat != nil {
		p.DefaultRepeat = *patch.DefaultRepeat
	}
	return p
}
