package models

import "time"

// TransferOffer is the buyer-safe projection returned by code validation.
// It deliberately omits owner identifiers and code bookkeeping.
type TransferOffer struct {
	CardName   string   `json:"cardName"`
	SetName    string   `json:"setName"`
	Grade      string   `json:"grade,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	SellerName string    `json:"sellerName"`
	SalePrice  *float64  `json:"salePrice,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// OwnershipRecord is one row of the append-only provenance ledger.
type OwnershipRecord struct {
	ID              string    `db:"id" json:"id"`
	CardID          string    `db:"card_id" json:"cardId"`
	PreviousOwnerID string    `db:"previous_owner_id" json:"previousOwnerId"`
	NewOwnerID      string    `db:"new_owner_id" json:"newOwnerId"`
	SalePrice       *float64  `db:"sale_price" json:"salePrice,omitempty"`
	TransferMethod  string    `db:"transfer_method" json:"transferMethod"`
	TransferCode    string    `db:"transfer_code" json:"transferCode"`
	TransferredAt   time.Time `db:"transferred_at" json:"transferredAt"`
}
