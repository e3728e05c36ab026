package models

// DowngradeNotice is the queue message sent when a subscription lapses.
type DowngradeNotice struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PreviousTier Tier   `json:"previous_tier"`
	Reason       string `json:"reason"`
}
