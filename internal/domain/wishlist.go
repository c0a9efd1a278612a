package domain

import "time"

// WishlistEntry records that a user liked a listing. Presence means liked.
type WishlistEntry struct {
	UserID    string    `json:"user_id"`
	ListingID string    `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
}
