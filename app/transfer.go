package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log"
	"math/big"
	"time"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"
)

// Transfer outcome errors. ErrInvalidTransferCode covers nonexistent,
// expired, and already-consumed codes alike; callers must not be able to
// tell which case applied.
var (
	ErrInvalidTransferCode = errors.New("invalid transfer code")
	ErrSelfClaim           = errors.New("cannot claim your own card")
	ErrCardNotOwned        = errors.New("card not found or not owned by caller")
)

const (
	transferCodeLength = 10
	transferCodeTTL    = 72 * time.Hour
	transferMethodCode = "transfer_code"
)

// Unambiguous alphabet: no 0/O, 1/I/L.
const transferCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func generateTransferCode() (string, error) {
	buf := make([]byte, transferCodeLength)
	max := big.NewInt(int64(len(transferCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = transferCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// InitiateTransfer mints a fresh single-use code on a card the caller owns.
// Any previously issued code on the card is superseded: the card's active
// code columns are overwritten, so only the newest code is claimable.
func InitiateTransfer(ctx context.Context, cardID, ownerID string, salePrice *float64) (string, time.Time, error) {
	code, err := generateTransferCode()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(transferCodeTTL)

	var price sql.NullFloat64
	if salePrice != nil {
		price = sql.NullFloat64{Float64: *salePrice, Valid: true}
	}

	res, err := db.ExecContext(ctx, `
		UPDATE cards
		SET transfer_code = $1,
		    transfer_code_used = FALSE,
		    transfer_code_expires_at = $2,
		    asking_price = COALESCE($3, asking_price)
		WHERE id = $4 AND owner_id = $5;
	`, code, expiresAt, price, cardID, ownerID)
	if err != nil {
		return "", time.Time{}, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return "", time.Time{}, err
	}
	if rows == 0 {
		return "", time.Time{}, ErrCardNotOwned
	}

	return code, expiresAt, nil
}

// ValidateTransferCode looks up an unconsumed, unexpired code and returns the
// buyer-safe offer projection. Used, expired, and unknown codes all resolve
// to ErrInvalidTransferCode.
func ValidateTransferCode(ctx context.Context, code string) (models.TransferOffer, error) {
	var (
		offer     models.TransferOffer
		grade     sql.NullString
		imageURL  sql.NullString
		seller    sql.NullString
		price     sql.NullFloat64
		expiresAt time.Time
	)
	err := db.QueryRowContext(ctx, `
		SELECT c.name, c.set_name, c.grade, c.image_url, c.asking_price,
		       c.transfer_code_expires_at, u.name
		FROM cards c
		JOIN users u ON u.id = c.owner_id
		WHERE c.transfer_code = $1
		  AND NOT c.transfer_code_used
		  AND c.transfer_code_expires_at > now();
	`, code).Scan(&offer.CardName, &offer.SetName, &grade, &imageURL, &price, &expiresAt, &seller)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TransferOffer{}, ErrInvalidTransferCode
		}
		return models.TransferOffer{}, err
	}

	offer.Grade = grade.String
	offer.ImageURL = imageURL.String
	offer.SellerName = seller.String
	offer.ExpiresAt = expiresAt
	if price.Valid {
		offer.SalePrice = &price.Float64
	}
	return offer, nil
}

// ClaimTransferCode executes the atomic ownership move. One transaction locks
// the card row while the code is still unused and unexpired, appends the
// provenance row, reassigns the owner, consumes the code, and clears the
// card's sale state. A concurrent claimant blocks on the row lock and then
// sees the code as used, so exactly one claim wins.
func ClaimTransferCode(ctx context.Context, code, claimantID string) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		cardID    string
		ownerID   string
		salePrice sql.NullFloat64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, owner_id, asking_price
		FROM cards
		WHERE transfer_code = $1
		  AND NOT transfer_code_used
		  AND transfer_code_expires_at > now()
		FOR UPDATE;
	`, code).Scan(&cardID, &ownerID, &salePrice)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidTransferCode
		}
		return err
	}

	if ownerID == claimantID {
		return ErrSelfClaim
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO card_ownership_history (
			card_id, previous_owner_id, new_owner_id,
			sale_price, transfer_method, transfer_code
		)
		VALUES ($1, $2, $3, $4, $5, $6);
	`, cardID, ownerID, claimantID, salePrice, transferMethodCode, code)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE cards
		SET owner_id = $1,
		    transfer_code_used = TRUE,
		    for_sale = FALSE,
		    listing_status = NULL,
		    sold_price = asking_price
		WHERE id = $2;
	`, claimantID, cardID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("card %s transferred %s -> %s via code", cardID, ownerID, claimantID)
	return nil
}

func cardOwner(ctx context.Context, cardID string) (string, error) {
	var ownerID string
	err := db.QueryRowContext(ctx, `
		SELECT owner_id FROM cards WHERE id = $1;
	`, cardID).Scan(&ownerID)
	return ownerID, err
}

// CardOwnershipHistory returns the card's provenance ledger, newest first.
func CardOwnershipHistory(ctx context.Context, cardID string) ([]models.OwnershipRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, card_id, previous_owner_id, new_owner_id,
		       sale_price, transfer_method, transfer_code, transferred_at
		FROM card_ownership_history
		WHERE card_id = $1
		ORDER BY transferred_at DESC;
	`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.OwnershipRecord
	for rows.Next() {
		var (
			rec   models.OwnershipRecord
			price sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.CardID,
			&rec.PreviousOwnerID,
			&rec.NewOwnerID,
			&price,
			&rec.TransferMethod,
			&rec.TransferCode,
			&rec.TransferredAt,
		); err != nil {
			return nil, err
		}
		if price.Valid {
			rec.SalePrice = &price.Float64
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
