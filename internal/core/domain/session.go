package domain

import "time"

// SessionRecord is the persisted credential snapshot used for password-less reconnection.
type SessionRecord struct {
	AccountID    string     `json:"accountId"`
	AccountName  string     `json:"accountName"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	AccessToken  string     `json:"accessToken,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	SavedAt      time.Time  `json:"savedAt"`
}

// Expired reports whether the record carries an expiry that lies before now.
func (s *SessionRecord) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}
