package repository

import (
	"context"
	"time"

	"marketplace_backend/internal/model"

	"gorm.io/gorm"
)

type SettlementRepository struct {
	DB *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{DB: db}
}

func (r *SettlementRepository) WithTx(tx *gorm.DB) *SettlementRepository {
	return &SettlementRepository{DB: tx}
}

func (r *SettlementRepository) Create(ctx context.Context, s *model.Settlement) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

func (r *SettlementRepository) FindByID(ctx context.Context, id string) (*model.Settlement, error) {
	var s model.Settlement
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStatus 同步更新内存中的记录
func (r *SettlementRepository) UpdateStatus(ctx context.Context, s *model.Settlement, status model.SettlementStatus, lastError string) error {
	err := r.DB.WithContext(ctx).Model(&model.Settlement{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return err
	}
	s.Status = status
	s.LastError = lastError
	return nil
}

// RecordAttempt 记录一次失败的远程尝试
func (r *SettlementRepository) RecordAttempt(ctx context.Context, s *model.Settlement, lastError string) error {
	err := r.DB.WithContext(ctx).Model(&model.Settlement{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return err
	}
	s.Attempts++
	s.LastError = lastError
	return nil
}

// FindRecoverable 最后一次更新早于 cutoff 且仍需推进的记录，按创建时间先后
func (r *SettlementRepository) FindRecoverable(ctx context.Context, cutoff time.Time, limit int) ([]model.Settlement, error) {
	list := []model.Settlement{}
	err := r.DB.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []model.SettlementStatus{
			model.SettlementPendingDebit,
			model.SettlementDebited,
			model.SettlementCompensating,
		}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// HasInFlightDebit 是否存在尚未落地的扣款
func (r *SettlementRepository) HasInFlightDebit(ctx context.Context, consumerID, courseID, bppID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Settlement{}).
		Where("kind = ? AND consumer_id = ? AND course_id = ? AND bpp_id = ? AND status IN ?",
			model.SettlementDebit, consumerID, courseID, bppID,
			[]model.SettlementStatus{model.SettlementPendingDebit, model.SettlementDebited}).
		Count(&count).Error
	return count > 0, err
}

func (r *SettlementRepository) ListByConsumer(ctx context.Context, consumerID string) ([]model.Settlement, error) {
	list := []model.Settlement{}
	err := r.DB.WithContext(ctx).Where("consumer_id = ?", consumerID).Order("created_at DESC").Find(&list).Error
	return list, err
}
