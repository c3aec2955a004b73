package repository

import (
	"context"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"

	"gorm.io/gorm"
)

type ConsumerRepository struct {
	DB *gorm.DB
}

func NewConsumerRepository(db *gorm.DB) *ConsumerRepository {
	return &ConsumerRepository{DB: db}
}

func (r *ConsumerRepository) WithTx(tx *gorm.DB) *ConsumerRepository {
	return &ConsumerRepository{DB: tx}
}

func (r *ConsumerRepository) Create(ctx context.Context, consumer *model.Consumer) error {
	err := r.DB.WithContext(ctx).Create(consumer).Error
	return translate(err, nil, util.ErrConsumerExists)
}

func (r *ConsumerRepository) FindByID(ctx context.Context, consumerID string) (*model.Consumer, error) {
	var consumer model.Consumer
	err := r.DB.WithContext(ctx).Where("consumer_id = ?", consumerID).First(&consumer).Error
	if err != nil {
		return nil, translate(err, util.ErrConsumerNotFound, nil)
	}
	return &consumer, nil
}

func (r *ConsumerRepository) FindByEmail(ctx context.Context, email string) (*model.Consumer, error) {
	var consumer model.Consumer
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&consumer).Error
	if err != nil {
		return nil, translate(err, util.ErrConsumerNotFound, nil)
	}
	return &consumer, nil
}
