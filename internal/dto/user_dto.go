package dto

import (
	"time"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// SignupRequest registers an email/password account with its profile.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	FullName string `json:"full_name" validate:"required,min=1,max=120"`
	Username string `json:"username" validate:"required,min=3,max=32,username"`
}

// CompleteProfileRequest finishes a federated sign-in by choosing the public profile.
type CompleteProfileRequest struct {
	FullName string `json:"full_name" validate:"required,min=1,max=120"`
	Username string `json:"username" validate:"required,min=3,max=32,username"`
}

// UpdateProfileRequest changes mutable profile fields. Nil fields are left untouched.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1,max=120"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=512"`
}

// UserSearchQuery filters the user directory.
type UserSearchQuery struct {
	Term string `query:"q" validate:"required,min=2,max=80"`
}

// PresenceResponse is the observable presence of one user.
type PresenceResponse struct {
	UserID   string     `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// UserResponse is a profile merged with its presence.
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email,omitempty"`
	FullName  string     `json:"full_name"`
	Username  string     `json:"username"`
	UserCode  string     `json:"user_code"`
	AvatarURL string     `json:"avatar_url"`
	Online    bool       `json:"online"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// SessionResponse is returned after sign-in or sign-up.
type SessionResponse struct {
	User            UserResponse `json:"user"`
	Token           string       `json:"token,omitempty"`
	ProfileComplete bool         `json:"profile_complete"`
}

// NewUserResponse converts a profile and its presence into a DTO.
func NewUserResponse(user models.User, presence PresenceResponse) UserResponse {
	user.Normalize()
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.DisplayName(),
		Username:  user.Username,
		UserCode:  user.UserCode,
		AvatarURL: user.AvatarURL,
		Online:    presence.Online,
		LastSeen:  presence.LastSeen,
	}
}

// PublicView strips private fields before the profile is shown to someone else.
func (u UserResponse) PublicView() UserResponse {
	u.Email = ""
	return u
}

// PresenceOfflineRequest is the best-effort unload beacon of one session.
type PresenceOfflineRequest struct {
	SessionID string `json:"session_id" validate:"required,max=64"`
}
