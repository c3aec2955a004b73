package service

import (
	"context"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/util"
)

type NotificationInput struct {
	Text string `json:"text" binding:"required"`
	Link string `json:"link" binding:"required,url"`
}

type NotificationService struct {
	Notifications *repository.NotificationRepository
	Consumers     *repository.ConsumerRepository
}

func NewNotificationService(notifications *repository.NotificationRepository, consumers *repository.ConsumerRepository) *NotificationService {
	return &NotificationService{Notifications: notifications, Consumers: consumers}
}

func (s *NotificationService) List(ctx context.Context, consumerID string) ([]model.Notification, error) {
	return s.Notifications.ListByConsumer(ctx, consumerID)
}

func (s *NotificationService) Create(ctx context.Context, consumerID string, in NotificationInput) (*model.Notification, error) {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return nil, err
	}
	n := &model.Notification{
		ConsumerID: consumerID,
		Text:       in.Text,
		Link:       in.Link,
		Status:     model.NotificationUnviewed,
	}
	if err := s.Notifications.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// MarkViewed 只能标记自己的通知
func (s *NotificationService) MarkViewed(ctx context.Context, consumerID string, id uint) error {
	n, err := s.Notifications.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if n.ConsumerID != consumerID {
		return util.ErrNotificationNotOwned
	}
	return s.Notifications.MarkViewed(ctx, id)
}
