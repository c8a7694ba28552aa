package bidding

import (
	"context"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for bids and the listing fields the bid
// protocol mutates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	AddressBelongsToUser(ctx context.Context, addressID, userID uuid.UUID) (bool, error)
	ActiveBidExposure(ctx context.Context, userID uuid.UUID) (int64, error)
	CreateBid(ctx context.Context, bid *models.Bid) error
	AdvanceListingBid(ctx context.Context, params AdvanceListingBidParams) (bool, error)
}

// AdvanceListingBidParams carries the listing update for one accepted bid.
// ExpectedTotalBids is the optimistic-concurrency token: the update only
// lands if no competing bid advanced the listing first.
type AdvanceListingBidParams struct {
	ListingID         uuid.UUID
	ExpectedTotalBids int
	AmountIQD         int64
	BidderID          uuid.UUID
	NewEndTime        *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bidding repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) AddressBelongsToUser(ctx context.Context, addressID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND user_id = ?", addressID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ActiveBidExposure sums the user's highest bid on every still-active
// auction. That is the money they are on the hook for if every one of those
// auctions closed right now.
func (r *repository) ActiveBidExposure(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(top_amount), 0) FROM (
			SELECT MAX(b.amount_iqd) AS top_amount
			FROM bids b
			JOIN listings l ON l.id = b.listing_id
			WHERE b.user_id = ?
			  AND l.is_active = ?
			  AND l.sale_type = ?
			GROUP BY b.listing_id
		) active_bids`, userID, true, enums.SaleTypeAuction).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) CreateBid(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

// AdvanceListingBid applies the accepted bid to the listing guarded by the
// total_bids counter. A false return means a concurrent bid won the race and
// the caller must retry from the preconditions.
func (r *repository) AdvanceListingBid(ctx context.Context, params AdvanceListingBidParams) (bool, error) {
	updates := map[string]any{
		"current_bid_iqd":   params.AmountIQD,
		"highest_bidder_id": params.BidderID,
		"total_bids":        params.ExpectedTotalBids + 1,
	}
	if params.NewEndTime != nil {
		updates["auction_end_time"] = *params.NewEndTime
	}
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND total_bids = ? AND is_active = ?",
			params.ListingID, params.ExpectedTotalBids, true).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
