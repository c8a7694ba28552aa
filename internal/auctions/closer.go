package auctions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alihaidary/souqna-backend/internal/orders"
	"github.com/alihaidary/souqna-backend/internal/realtime"
	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRunInProgress signals that a previous closing run has not finished yet.
// The caller skips the tick; nothing is queued.
var ErrRunInProgress = errors.New("auction close run already in progress")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	AuctionWon(ctx context.Context, userID, orderID uuid.UUID, listingTitle string, amount int64)
	AuctionLost(ctx context.Context, userID, listingID uuid.UUID, listingTitle string, winningAmount int64)
	AuctionSold(ctx context.Context, sellerID, orderID uuid.UUID, listingTitle string, amount int64)
	AuctionNoBids(ctx context.Context, sellerID, listingID uuid.UUID, listingTitle string)
}

// Closer finalizes expired auctions into orders.
type Closer interface {
	ProcessAllEndedAuctions(ctx context.Context) (*RunReport, error)
	Status() Status
}

// Result captures one listing's closing outcome.
type Result struct {
	ListingID uuid.UUID  `json:"listing_id"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	WinnerID  *uuid.UUID `json:"winner_id,omitempty"`
	AmountIQD *int64     `json:"amount_iqd,omitempty"`
	BidCount  int        `json:"bid_count"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
}

// RunReport summarizes one closing cycle.
type RunReport struct {
	StartedAt time.Time `json:"started_at"`
	Duration  time.Duration
	Results   []Result `json:"results"`
}

// Status is an observability snapshot of the closer.
type Status struct {
	Running       bool       `json:"running"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastDuration  string     `json:"last_duration,omitempty"`
	LastProcessed int        `json:"last_processed"`
	LastErrors    int        `json:"last_errors"`
}

// CloserParams configure the auction closer. Status is optional: when set,
// every run's snapshot is published there so other processes can observe it.
type CloserParams struct {
	Repo      Repository
	Orders    orders.Repository
	Tx        txRunner
	Notifier  notifier
	Broadcast realtime.Broadcaster
	Status    StatusStore
	Config    config.AuctionConfig
	Logger    *logger.Logger
}

type closer struct {
	repo      Repository
	orders    orders.Repository
	tx        txRunner
	notifier  notifier
	broadcast realtime.Broadcaster
	status    StatusStore
	grace     time.Duration
	logg      *logger.Logger
	now       func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	last    Status
}

// NewCloser wires the auction closer with the provided dependencies.
func NewCloser(params CloserParams) (Closer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("auctions repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Broadcast == nil {
		params.Broadcast = realtime.NopBroadcaster{}
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.CloseGracePeriod < 0 {
		return nil, fmt.Errorf("close grace period must not be negative")
	}
	return &closer{
		repo:      params.Repo,
		orders:    params.Orders,
		tx:        params.Tx,
		notifier:  params.Notifier,
		broadcast: params.Broadcast,
		status:    params.Status,
		grace:     params.Config.CloseGracePeriod,
		logg:      params.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// ProcessAllEndedAuctions closes every auction whose deadline passed more
// than the grace period ago. Single-flight: a tick arriving while a run is in
// progress returns ErrRunInProgress and does nothing. Listings are processed
// independently; one failure never blocks the batch.
func (c *closer) ProcessAllEndedAuctions(ctx context.Context) (*RunReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer func() {
		c.running.Store(false)
		c.publishStatus(ctx)
	}()

	start := c.now()
	cutoff := start.Add(-c.grace)

	listings, err := c.repo.FindEndedAuctions(ctx, cutoff)
	if err != nil {
		c.recordRun(start, nil)
		return nil, fmt.Errorf("find ended auctions: %w", err)
	}

	results := make([]Result, 0, len(listings))
	for _, listing := range listings {
		result := c.closeOne(ctx, listing)
		if !result.Success {
			lctx := c.logg.WithListingID(ctx, listing.ID.String())
			c.logg.Error(lctx, "auction close failed", errors.New(result.Error))
		}
		results = append(results, result)
	}

	report := &RunReport{
		StartedAt: start,
		Duration:  c.now().Sub(start),
		Results:   results,
	}
	c.recordRun(start, report)

	if len(results) > 0 {
		ctx = c.logg.WithFields(ctx, map[string]any{
			"processed":   len(results),
			"duration_ms": report.Duration.Milliseconds(),
		})
		c.logg.Info(ctx, "auction close cycle complete")
	}
	return report, nil
}

func (c *closer) closeOne(ctx context.Context, listing models.Listing) Result {
	result := Result{ListingID: listing.ID}

	bids, err := c.repo.ListBidsForListing(ctx, listing.ID)
	if err != nil {
		result.Error = fmt.Sprintf("list bids: %v", err)
		return result
	}
	result.BidCount = len(bids)

	if len(bids) == 0 {
		return c.closeWithoutBids(ctx, listing, result)
	}
	return c.closeWithWinner(ctx, listing, bids, result)
}

func (c *closer) closeWithoutBids(ctx context.Context, listing models.Listing, result Result) Result {
	closed, err := c.repo.CloseListing(ctx, listing.ID)
	if err != nil {
		result.Error = fmt.Sprintf("close listing: %v", err)
		return result
	}
	if !closed {
		result.Error = "listing already closed"
		return result
	}

	c.notifier.AuctionNoBids(ctx, listing.SellerID, listing.ID, listing.Title)
	c.broadcast.Broadcast(ctx, realtime.Event{
		Type:      realtime.EventAuctionClosed,
		ListingID: &listing.ID,
	})
	result.Success = true
	return result
}

func (c *closer) closeWithWinner(ctx context.Context, listing models.Listing, bids []models.Bid, result Result) Result {
	winning := bids[0]

	var order *models.Order
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		closed, err := repo.CloseListing(ctx, listing.ID)
		if err != nil {
			return fmt.Errorf("close listing: %w", err)
		}
		if !closed {
			return errors.New("listing already closed")
		}

		order, err = c.orders.WithTx(tx).Create(ctx, &models.Order{
			ListingID:         listing.ID,
			BuyerID:           winning.UserID,
			SellerID:          listing.SellerID,
			AmountIQD:         winning.AmountIQD,
			ShippingCostIQD:   listing.ShippingCostIQD,
			Status:            enums.OrderStatusProcessing,
			DeliveryAddressID: winning.ShippingAddressID,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	c.notifier.AuctionWon(ctx, winning.UserID, order.ID, listing.Title, winning.AmountIQD)
	c.notifier.AuctionSold(ctx, listing.SellerID, order.ID, listing.Title, winning.AmountIQD)
	for _, loser := range distinctLosers(bids, winning.UserID) {
		c.notifier.AuctionLost(ctx, loser, listing.ID, listing.Title, winning.AmountIQD)
	}
	c.broadcast.Broadcast(ctx, realtime.Event{
		Type:      realtime.EventAuctionClosed,
		ListingID: &listing.ID,
		OrderID:   &order.ID,
		UserID:    &winning.UserID,
	})

	result.Success = true
	result.WinnerID = &winning.UserID
	result.AmountIQD = &winning.AmountIQD
	result.OrderID = &order.ID
	return result
}

// distinctLosers returns every bidder except the winner, deduplicated even
// if they bid multiple times.
func distinctLosers(bids []models.Bid, winnerID uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{winnerID: {}}
	var losers []uuid.UUID
	for _, bid := range bids {
		if _, ok := seen[bid.UserID]; ok {
			continue
		}
		seen[bid.UserID] = struct{}{}
		losers = append(losers, bid.UserID)
	}
	return losers
}

func (c *closer) recordRun(start time.Time, report *RunReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last.LastRunAt = &start
	if report != nil {
		c.last.LastDuration = report.Duration.String()
		c.last.LastProcessed = len(report.Results)
		errs := 0
		for _, r := range report.Results {
			if !r.Success {
				errs++
			}
		}
		c.last.LastErrors = errs
	}
}

// publishStatus shares the latest snapshot with other processes. A publish
// failure never fails the run.
func (c *closer) publishStatus(ctx context.Context) {
	if c.status == nil {
		return
	}
	if err := c.status.Save(ctx, c.Status()); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "failed to publish closer status")
	}
}

// Status reports whether a run is in flight and how the last one went.
func (c *closer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := c.last
	status.Running = c.running.Load()
	return status
}
