package returns

import (
	"context"
	"time"

	"github.com/alihaidary/souqna-backend/pkg/db/models"
	"github.com/alihaidary/souqna-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for return requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error)
	Decide(ctx context.Context, params DecideParams) (bool, error)
	ListPending(ctx context.Context) ([]models.ReturnRequest, error)
	ListingTitle(ctx context.Context, listingID uuid.UUID) (string, error)
}

// DecideParams finalizes a pending return request.
type DecideParams struct {
	RequestID    uuid.UUID
	Status       enums.ReturnStatus
	ReviewedBy   *uuid.UUID
	ReviewNotes  *string
	AutoApproved bool
	ReviewedAt   time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a returns repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	var request models.ReturnRequest
	if err := r.db.WithContext(ctx).First(&request, "order_id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// Decide moves a pending request to its final state. Guarding on pending
// makes a double decision a visible no-op.
func (r *repository) Decide(ctx context.Context, params DecideParams) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReturnRequest{}).
		Where("id = ? AND status = ?", params.RequestID, enums.ReturnStatusPending).
		Updates(map[string]any{
			"status":        params.Status,
			"reviewed_by":   params.ReviewedBy,
			"review_notes":  params.ReviewNotes,
			"auto_approved": params.AutoApproved,
			"reviewed_at":   params.ReviewedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListPending(ctx context.Context) ([]models.ReturnRequest, error) {
	var requests []models.ReturnRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ReturnStatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
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
