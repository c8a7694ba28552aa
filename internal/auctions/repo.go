package auctions

import (
	"context"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages the listing/bid reads and the close write the auction
// closer performs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindEndedAuctions(ctx context.Context, cutoff time.Time) ([]models.Listing, error)
	ListBidsForListing(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error)
	CloseListing(ctx context.Context, listingID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an auctions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindEndedAuctions(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	var listings []models.Listing
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND sale_type = ? AND auction_end_time <= ?",
			true, enums.SaleTypeAuction, cutoff).
		Order("auction_end_time ASC").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// ListBidsForListing returns the listing's bids best-first. Ties on amount go
// to the earlier bid, with the id as a final stable tiebreaker.
func (r *repository) ListBidsForListing(ctx context.Context, listingID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	if err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("amount_iqd DESC, created_at ASC, id ASC").
		Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

// CloseListing deactivates the listing. Guarding on is_active means only one
// closer run can win the close, even if two were racing.
func (r *repository) CloseListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND is_active = ?", listingID, true).
		UpdateColumn("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
