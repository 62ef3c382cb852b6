package models

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is a signed-in person. Rows are created on first OAuth sign-in.
type User struct {
	ID            string     `json:"id" gorm:"primaryKey;size:36"`
	Email         string     `json:"email" gorm:"uniqueIndex;size:320"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	EmailVerified *time.Time `json:"email_verified,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Account links a user to an identity at an OAuth provider.
type Account struct {
	ID                string `gorm:"primaryKey;size:36"`
	UserID            string `gorm:"index;size:36;not null"`
	Provider          string `gorm:"uniqueIndex:idx_account_provider;size:64;not null"`
	ProviderAccountID string `gorm:"uniqueIndex:idx_account_provider;size:255;not null"`
	Scope             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserProfile holds per-user dashboard preferences.
// WorkHours and Preferences are stored as JSON strings.
type UserProfile struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      string    `json:"user_id" gorm:"uniqueIndex;size:36;not null"`
	DisplayName string    `json:"display_name"`
	Timezone    string    `json:"timezone"`
	WorkHours   string    `json:"work_hours"`
	Preferences string    `json:"preferences"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayNameFor derives a profile display name: the user's name, else the
// local part of the email address, else "User".
func DisplayNameFor(u *User) string {
	if u == nil {
		return "User"
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	if u.Email != "" {
		if local, _, found := strings.Cut(u.Email, "@"); found && local != "" {
			return local
		}
		return u.Email
	}
	return "User"
}

// IntegrationToken stores the provider access token of a user so the
// dashboard can call mail and calendar APIs on their behalf.
type IntegrationToken struct {
	ID           string     `gorm:"primaryKey;size:36"`
	UserID       string     `gorm:"uniqueIndex:idx_integration_user_provider;size:36;not null"`
	Provider     string     `gorm:"uniqueIndex:idx_integration_user_provider;size:64;not null"`
	AccessToken  string     `gorm:"not null"`
	RefreshToken string
	Expiry       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProviderIdentity is what an OAuth provider tells us about the signed-in user.
type ProviderIdentity struct {
	Provider          string
	ProviderAccountID string
	Email             string
	EmailVerified     bool
	Name              string
	Picture           string
	AccessToken       string
	RefreshToken      string
	Expiry            time.Time
	Scope             string
}

// SessionClaims are the claims carried by a session credential.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
