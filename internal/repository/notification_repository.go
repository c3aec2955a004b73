package repository

import (
	"context"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.DB.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) FindByID(ctx context.Context, id uint) (*model.Notification, error) {
	var n model.Notification
	if err := r.DB.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, translate(err, util.ErrNotificationNotFound, nil)
	}
	return &n, nil
}

func (r *NotificationRepository) ListByConsumer(ctx context.Context, consumerID string) ([]model.Notification, error) {
	list := []model.Notification{}
	err := r.DB.WithContext(ctx).Where("consumer_id = ?", consumerID).Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *NotificationRepository) MarkViewed(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Update("status", model.NotificationViewed).Error
}
