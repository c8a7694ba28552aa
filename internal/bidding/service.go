package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/alihaidary/souqna-backend/internal/users"
	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Outbid(ctx context.Context, userID, listingID uuid.UUID, listingTitle string, amount int64)
	NewBid(ctx context.Context, sellerID, listingID uuid.UUID, listingTitle string, amount int64)
}

// Service runs the bid-acceptance protocol.
type Service interface {
	PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error)
}

// PlaceBidInput is one bid attempt.
type PlaceBidInput struct {
	ListingID         uuid.UUID
	UserID            uuid.UUID
	AmountIQD         int64
	ShippingAddressID uuid.UUID
}

// PlaceBidResult reports the accepted bid and any anti-snipe extension.
type PlaceBidResult struct {
	Bid          *models.Bid `json:"bid"`
	TimeExtended bool        `json:"time_extended"`
	NewEndTime   *time.Time  `json:"new_end_time,omitempty"`
}

// ServiceParams configure the bid processor.
type ServiceParams struct {
	Repo     Repository
	Users    users.Repository
	Tx       txRunner
	Notifier notifier
	Config   config.AuctionConfig
	Logger   *logger.Logger
}

type service struct {
	repo            Repository
	users           users.Repository
	tx              txRunner
	notifier        notifier
	antiSnipeWindow time.Duration
	minIncrement    int64
	defaultBidLimit int64
	logg            *logger.Logger
	now             func() time.Time
}

// NewService wires the bid processor with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bidding repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.AntiSnipeWindow <= 0 {
		return nil, fmt.Errorf("anti-snipe window must be positive")
	}
	if params.Config.MinIncrementIQD <= 0 {
		return nil, fmt.Errorf("minimum increment must be positive")
	}
	if params.Config.DefaultBidLimit <= 0 {
		return nil, fmt.Errorf("default bid limit must be positive")
	}
	return &service{
		repo:            params.Repo,
		users:           params.Users,
		tx:              params.Tx,
		notifier:        params.Notifier,
		antiSnipeWindow: params.Config.AntiSnipeWindow,
		minIncrement:    params.Config.MinIncrementIQD,
		defaultBidLimit: params.Config.DefaultBidLimit,
		logg:            params.Logger,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

// PlaceBid validates every precondition before mutating anything, then
// inserts the bid and advances the listing under an optimistic guard. A lost
// race surfaces as CONFLICT and leaves no trace of the attempt.
func (s *service) PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error) {
	if input.ListingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.AmountIQD <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}
	if input.ShippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address id required")
	}

	var (
		result         PlaceBidResult
		listingTitle   string
		sellerID       uuid.UUID
		previousBidder *uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		listing, err := repo.FindListingByID(ctx, input.ListingID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		if !listing.IsAuction() || !listing.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not an active auction")
		}
		if !now.Before(*listing.AuctionEndTime) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "auction has ended")
		}

		bidder, err := s.users.WithTx(tx).FindByID(ctx, input.UserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bidder")
		}
		if bidder.IsBanned {
			return pkgerrors.New(pkgerrors.CodeForbidden, "account is banned from bidding")
		}
		if !bidder.PhoneVerified {
			return pkgerrors.New(pkgerrors.CodeForbidden, "phone verification required to bid")
		}
		if listing.SellerID == input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sellers cannot bid on their own listing")
		}
		if listing.HighestBidderID != nil && *listing.HighestBidderID == input.UserID {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "you already hold the highest bid")
		}

		minBid := listing.MinimumBid(s.minIncrement)
		if input.AmountIQD < minBid {
			return pkgerrors.New(pkgerrors.CodeValidation, "bid is below the minimum").
				WithDetails(map[string]any{"min_bid_iqd": minBid})
		}

		exposure, err := repo.ActiveBidExposure(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute active bid exposure")
		}
		limit := s.defaultBidLimit
		if bidder.BiddingLimitIQD != nil {
			limit = *bidder.BiddingLimitIQD
		}
		if exposure+input.AmountIQD > limit {
			return pkgerrors.New(pkgerrors.CodeForbidden, "bid would exceed your bidding limit").
				WithDetails(map[string]any{
					"bidding_limit_iqd": limit,
					"active_bids_iqd":   exposure,
					"available_iqd":     limit - exposure,
				})
		}

		owned, err := repo.AddressBelongsToUser(ctx, input.ShippingAddressID, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify shipping address")
		}
		if !owned {
			return pkgerrors.New(pkgerrors.CodeValidation, "shipping address does not belong to bidder")
		}

		// Anti-sniping: a bid landing inside the closing window slides the
		// deadline forward; every later bid inside the new window slides it
		// again.
		var newEndTime *time.Time
		if remaining := listing.AuctionEndTime.Sub(now); remaining <= s.antiSnipeWindow {
			extended := now.Add(s.antiSnipeWindow)
			newEndTime = &extended
		}

		bid := &models.Bid{
			ListingID:         input.ListingID,
			UserID:            input.UserID,
			AmountIQD:         input.AmountIQD,
			ShippingAddressID: input.ShippingAddressID,
		}
		if err := repo.CreateBid(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}

		advanced, err := repo.AdvanceListingBid(ctx, AdvanceListingBidParams{
			ListingID:         input.ListingID,
			ExpectedTotalBids: listing.TotalBids,
			AmountIQD:         input.AmountIQD,
			BidderID:          input.UserID,
			NewEndTime:        newEndTime,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance listing")
		}
		if !advanced {
			return pkgerrors.New(pkgerrors.CodeConflict, "a concurrent bid was accepted first, retry")
		}

		listingTitle = listing.Title
		sellerID = listing.SellerID
		previousBidder = listing.HighestBidderID
		result = PlaceBidResult{
			Bid:          bid,
			TimeExtended: newEndTime != nil,
			NewEndTime:   newEndTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previousBidder != nil {
		s.notifier.Outbid(ctx, *previousBidder, input.ListingID, listingTitle, input.AmountIQD)
	}
	s.notifier.NewBid(ctx, sellerID, input.ListingID, listingTitle, input.AmountIQD)

	ctx = s.logg.WithListingID(ctx, input.ListingID.String())
	ctx = s.logg.WithFields(ctx, map[string]any{
		"amount_iqd":    input.AmountIQD,
		"time_extended": result.TimeExtended,
	})
	s.logg.Info(ctx, "bid accepted")
	return &result, nil
}
