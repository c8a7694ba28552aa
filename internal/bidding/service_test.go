package bidding

import (
	"context"
	"testing"
	"time"

	"github.com/alihaidary/souqna-backend/internal/users"
	"github.com/alihaidary/souqna-backend/pkg/config"
	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepository struct {
	listing      *models.Listing
	exposure     int64
	addressOwned bool
	createdBids  []*models.Bid
	advances     []AdvanceListingBidParams
	advanceOK    bool
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindListingByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if f.listing == nil || f.listing.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.listing
	return &copied, nil
}

func (f *fakeRepository) AddressBelongsToUser(ctx context.Context, addressID, userID uuid.UUID) (bool, error) {
	return f.addressOwned, nil
}

func (f *fakeRepository) ActiveBidExposure(ctx context.Context, userID uuid.UUID) (int64, error) {
	return f.exposure, nil
}

func (f *fakeRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	f.createdBids = append(f.createdBids, bid)
	return nil
}

func (f *fakeRepository) AdvanceListingBid(ctx context.Context, params AdvanceListingBidParams) (bool, error) {
	f.advances = append(f.advances, params)
	return f.advanceOK, nil
}

type fakeUsersRepo struct {
	user *models.User
}

func (f *fakeUsersRepo) WithTx(tx *gorm.DB) users.Repository { return f }

func (f *fakeUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.user, nil
}

func (f *fakeUsersRepo) RecordNoAnswerStrike(ctx context.Context, id uuid.UUID, banUntil time.Time) error {
	return nil
}

type fakeNotifier struct {
	outbid []uuid.UUID
	newBid []uuid.UUID
}

func (f *fakeNotifier) Outbid(ctx context.Context, userID, listingID uuid.UUID, title string, amount int64) {
	f.outbid = append(f.outbid, userID)
}

func (f *fakeNotifier) NewBid(ctx context.Context, sellerID, listingID uuid.UUID, title string, amount int64) {
	f.newBid = append(f.newBid, sellerID)
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type bidFixture struct {
	repo     *fakeRepository
	users    *fakeUsersRepo
	notifier *fakeNotifier
	svc      Service
	listing  *models.Listing
	bidder   *models.User
}

func newBidFixture(t *testing.T, endIn time.Duration) *bidFixture {
	t.Helper()

	end := time.Now().UTC().Add(endIn)
	listing := &models.Listing{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		Title:          "ساعة قديمة",
		SaleType:       enums.SaleTypeAuction,
		PriceIQD:       50000,
		AuctionEndTime: &end,
		IsActive:       true,
	}
	bidder := &models.User{ID: uuid.New(), PhoneVerified: true}

	repo := &fakeRepository{listing: listing, addressOwned: true, advanceOK: true}
	usersRepo := &fakeUsersRepo{user: bidder}
	notifier := &fakeNotifier{}

	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Users:    usersRepo,
		Tx:       fakeTxRunner{},
		Notifier: notifier,
		Config: config.AuctionConfig{
			AntiSnipeWindow: 2 * time.Minute,
			MinIncrementIQD: 1000,
			DefaultBidLimit: 100000,
		},
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return &bidFixture{repo: repo, users: usersRepo, notifier: notifier, svc: svc, listing: listing, bidder: bidder}
}

func (f *bidFixture) input(amount int64) PlaceBidInput {
	return PlaceBidInput{
		ListingID:         f.listing.ID,
		UserID:            f.bidder.ID,
		AmountIQD:         amount,
		ShippingAddressID: uuid.New(),
	}
}

func TestPlaceBidFirstBid(t *testing.T) {
	f := newBidFixture(t, time.Hour)

	got, err := f.svc.PlaceBid(context.Background(), f.input(50000))
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if got.Bid == nil || got.Bid.AmountIQD != 50000 {
		t.Fatalf("unexpected bid %+v", got.Bid)
	}
	if got.TimeExtended {
		t.Fatal("no extension expected an hour before close")
	}
	if len(f.repo.advances) != 1 {
		t.Fatalf("expected one listing advance, got %d", len(f.repo.advances))
	}
	adv := f.repo.advances[0]
	if adv.ExpectedTotalBids != 0 || adv.AmountIQD != 50000 || adv.BidderID != f.bidder.ID {
		t.Fatalf("unexpected advance params %+v", adv)
	}
	// seller notified, nobody to outbid yet
	if len(f.notifier.newBid) != 1 || f.notifier.newBid[0] != f.listing.SellerID {
		t.Fatalf("seller should be notified, got %+v", f.notifier.newBid)
	}
	if len(f.notifier.outbid) != 0 {
		t.Fatal("no previous bidder to notify")
	}
}

func TestPlaceBidOutbidsPreviousBidder(t *testing.T) {
	f := newBidFixture(t, time.Hour)
	previous := uuid.New()
	current := int64(60000)
	f.listing.CurrentBidIQD = &current
	f.listing.HighestBidderID = &previous
	f.listing.TotalBids = 3

	got, err := f.svc.PlaceBid(context.Background(), f.input(61000))
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if got.Bid.AmountIQD != 61000 {
		t.Fatalf("unexpected amount %d", got.Bid.AmountIQD)
	}
	if f.repo.advances[0].ExpectedTotalBids != 3 {
		t.Fatalf("advance must carry the observed bid count")
	}
	if len(f.notifier.outbid) != 1 || f.notifier.outbid[0] != previous {
		t.Fatalf("previous bidder should be notified, got %+v", f.notifier.outbid)
	}
}

func TestPlaceBidAntiSnipeExtends(t *testing.T) {
	f := newBidFixture(t, 90*time.Second)

	got, err := f.svc.PlaceBid(context.Background(), f.input(50000))
	if err != nil {
		t.Fatalf("PlaceBid: %v", err)
	}
	if !got.TimeExtended || got.NewEndTime == nil {
		t.Fatal("bid inside the window must extend the deadline")
	}
	if until := time.Until(*got.NewEndTime); until < 115*time.Second || until > 125*time.Second {
		t.Fatalf("new deadline should be ~2 minutes out, got %s", until)
	}
	if f.repo.advances[0].NewEndTime == nil {
		t.Fatal("extension must ride in the same listing update")
	}
}

func TestPlaceBidPreconditions(t *testing.T) {
	tests := []struct {
		name     string
		arrange  func(f *bidFixture)
		amount   int64
		wantCode pkgerrors.Code
	}{
		{
			name:     "auction ended",
			arrange:  func(f *bidFixture) { past := time.Now().UTC().Add(-time.Minute); f.listing.AuctionEndTime = &past },
			amount:   50000,
			wantCode: pkgerrors.CodeStateConflict,
		},
		{
			name:     "listing inactive",
			arrange:  func(f *bidFixture) { f.listing.IsActive = false },
			amount:   50000,
			wantCode: pkgerrors.CodeStateConflict,
		},
		{
			name:     "not an auction",
			arrange:  func(f *bidFixture) { f.listing.SaleType = enums.SaleTypeDirect },
			amount:   50000,
			wantCode: pkgerrors.CodeStateConflict,
		},
		{
			name:     "banned bidder",
			arrange:  func(f *bidFixture) { f.bidder.IsBanned = true },
			amount:   50000,
			wantCode: pkgerrors.CodeForbidden,
		},
		{
			name:     "unverified phone",
			arrange:  func(f *bidFixture) { f.bidder.PhoneVerified = false },
			amount:   50000,
			wantCode: pkgerrors.CodeForbidden,
		},
		{
			name:     "seller self-bid",
			arrange:  func(f *bidFixture) { f.listing.SellerID = f.bidder.ID },
			amount:   50000,
			wantCode: pkgerrors.CodeForbidden,
		},
		{
			name:     "self-outbid",
			arrange:  func(f *bidFixture) { f.listing.HighestBidderID = &f.bidder.ID },
			amount:   50000,
			wantCode: pkgerrors.CodeStateConflict,
		},
		{
			name:     "below listing price",
			arrange:  func(f *bidFixture) {},
			amount:   49999,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name: "below increment over current bid",
			arrange: func(f *bidFixture) {
				current := int64(60000)
				other := uuid.New()
				f.listing.CurrentBidIQD = &current
				f.listing.HighestBidderID = &other
			},
			amount:   60500,
			wantCode: pkgerrors.CodeValidation,
		},
		{
			name:     "over bidding limit",
			arrange:  func(f *bidFixture) { f.repo.exposure = 70000 },
			amount:   50000,
			wantCode: pkgerrors.CodeForbidden,
		},
		{
			name:     "foreign shipping address",
			arrange:  func(f *bidFixture) { f.repo.addressOwned = false },
			amount:   50000,
			wantCode: pkgerrors.CodeValidation,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newBidFixture(t, time.Hour)
			tc.arrange(f)

			_, err := f.svc.PlaceBid(context.Background(), f.input(tc.amount))
			if err == nil {
				t.Fatal("expected error")
			}
			appErr := pkgerrors.As(err)
			if appErr == nil || appErr.Code() != tc.wantCode {
				t.Fatalf("expected code %s, got %v", tc.wantCode, err)
			}
			if len(f.repo.createdBids) != 0 && tc.wantCode != pkgerrors.CodeConflict {
				t.Fatal("failed preconditions must not create bids")
			}
			if len(f.notifier.newBid) != 0 || len(f.notifier.outbid) != 0 {
				t.Fatal("failed bids must not notify anyone")
			}
		})
	}
}

func TestPlaceBidLosesRace(t *testing.T) {
	f := newBidFixture(t, time.Hour)
	f.repo.advanceOK = false

	_, err := f.svc.PlaceBid(context.Background(), f.input(50000))
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if len(f.notifier.newBid) != 0 {
		t.Fatal("lost race must not notify")
	}
}

func TestPlaceBidCustomLimitApplies(t *testing.T) {
	f := newBidFixture(t, time.Hour)
	limit := int64(500000)
	f.bidder.BiddingLimitIQD = &limit
	f.repo.exposure = 420000

	if _, err := f.svc.PlaceBid(context.Background(), f.input(50000)); err != nil {
		t.Fatalf("bid within custom limit should pass: %v", err)
	}
}
