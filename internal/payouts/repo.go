package payouts

import (
	"context"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for payout batches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindBySellerWeek(ctx context.Context, sellerID uuid.UUID, weekStart time.Time) (*models.Payout, error)
	MarkPaid(ctx context.Context, params MarkPaidParams) (bool, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error)
	ListPending(ctx context.Context) ([]models.Payout, error)
}

// MarkPaidParams records the out-of-band money transfer on a pending payout.
type MarkPaidParams struct {
	PayoutID  uuid.UUID
	AdminID   uuid.UUID
	Method    string
	Reference string
	PaidAt    time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return nil, err
	}
	return payout, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindBySellerWeek(ctx context.Context, sellerID uuid.UUID, weekStart time.Time) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		First(&payout, "seller_id = ? AND week_start = ?", sellerID, weekStart).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// MarkPaid stamps the transfer metadata on a pending payout. Guarding on the
// pending status makes a double mark a visible no-op instead of an overwrite.
func (r *repository) MarkPaid(ctx context.Context, params MarkPaidParams) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", params.PayoutID, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":            enums.PayoutStatusPaid,
			"paid_at":           params.PaidAt,
			"paid_by":           params.AdminID,
			"payment_method":    params.Method,
			"payment_reference": params.Reference,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListPending(ctx context.Context) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutStatusPending).
		Order("week_start ASC, created_at ASC").
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("week_start DESC").
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}
