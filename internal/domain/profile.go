package domain

import "time"

// Profile is the public face of a marketplace user.
type Profile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SellerProfile composes a profile with the seller's reputation and most
// recent reviews.
type SellerProfile struct {
	Profile
	Reputation SellerReputation
	Reviews    []Review
}
