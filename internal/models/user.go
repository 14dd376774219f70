package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// UserSchemaVersion is the current shape of persisted user profiles.
// Version 1 profiles predate user codes; version 2 carries Username and UserCode.
const UserSchemaVersion = 2

const defaultAvatarBase = "https://api.dicebear.com/7.x/thumbs/svg?seed="

// User is the profile record owned by one authenticated identity.
// Presence (online, last seen) is kept in the presence store, not here.
type User struct {
	ID            string `gorm:"primaryKey;size:128" json:"id"`
	SchemaVersion int    `gorm:"not null;default:1" json:"schema_version"`
	Email         string `gorm:"size:320;index" json:"email"`
	FullName      string `gorm:"size:120" json:"full_name"`
	Username      string `gorm:"size:64;index" json:"username"`
	UserCode      string `gorm:"size:80;uniqueIndex" json:"user_code"`
	AvatarURL     string `gorm:"size:512" json:"avatar_url"`
	// ProfileCompletedAt is set once the owner has chosen their name and username.
	ProfileCompletedAt *time.Time `json:"profile_completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NeedsMigration reports whether the stored profile predates the current schema.
func (u User) NeedsMigration() bool {
	return u.SchemaVersion < UserSchemaVersion || strings.TrimSpace(u.UserCode) == ""
}

// ProfileComplete reports whether the owner finished choosing their public identity.
func (u User) ProfileComplete() bool {
	return u.ProfileCompletedAt != nil
}

// MarkProfileComplete stamps the completion time unless it is already set.
func (u *User) MarkProfileComplete(at time.Time) {
	if u.ProfileCompletedAt == nil {
		at = at.UTC()
		u.ProfileCompletedAt = &at
	}
}

// Normalize fills read-time defaults for optional profile fields.
func (u *User) Normalize() {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Username = strings.TrimSpace(u.Username)
	if u.FullName == "" {
		u.FullName = u.Username
	}
	if u.FullName == "" {
		u.FullName = "User"
	}
	if strings.TrimSpace(u.AvatarURL) == "" {
		u.AvatarURL = DefaultAvatarURL(u.ID)
	}
	if u.SchemaVersion == 0 {
		u.SchemaVersion = 1
	}
}

// DisplayName returns the name shown to other members.
func (u User) DisplayName() string {
	switch {
	case strings.TrimSpace(u.FullName) != "":
		return u.FullName
	case strings.TrimSpace(u.Username) != "":
		return u.Username
	default:
		return "User"
	}
}

// DefaultAvatarURL builds a generated placeholder avatar for the given seed.
func DefaultAvatarURL(seed string) string {
	return defaultAvatarBase + url.QueryEscape(seed)
}

// FormatUserCode joins a username with its numeric discriminator.
func FormatUserCode(username string, suffix int) string {
	return fmt.Sprintf("%s#%04d", username, suffix)
}
