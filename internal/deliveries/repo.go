package deliveries

import (
	"context"

	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for delivery orders and their
// courier event history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.DeliveryOrder) (*models.DeliveryOrder, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.DeliveryOrder, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOrder, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, extra map[string]any) (bool, error)
	AppendStatusLog(ctx context.Context, log *models.DeliveryStatusLog) error
	ListStatusLogs(ctx context.Context, deliveryOrderID uuid.UUID) ([]models.DeliveryStatusLog, error)
	ListingTitle(ctx context.Context, listingID uuid.UUID) (string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, delivery *models.DeliveryOrder) (*models.DeliveryOrder, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*models.DeliveryOrder, error) {
	var delivery models.DeliveryOrder
	if err := r.db.WithContext(ctx).First(&delivery, "external_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.DeliveryOrder, error) {
	var deliveries []models.DeliveryOrder
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

// SetStatus advances the delivery order, applying any extra columns in the
// same statement. Guarding on the current status makes replayed courier
// webhooks harmless: a false return means the row already moved on.
func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) AppendStatusLog(ctx context.Context, log *models.DeliveryStatusLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) ListStatusLogs(ctx context.Context, deliveryOrderID uuid.UUID) ([]models.DeliveryStatusLog, error) {
	var logs []models.DeliveryStatusLog
	if err := r.db.WithContext(ctx).
		Where("delivery_order_id = ?", deliveryOrderID).
		Order("created_at ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repository) ListingTitle(ctx context.Context, listingID uuid.UUID) (string, error) {
	var title string
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", listingID).
		Pluck("title", &title).Error
	if err != nil {
		return "", err
	}
	return title, nil
}
