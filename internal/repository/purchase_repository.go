package repository

import (
	"context"
	"time"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"

	"gorm.io/gorm"
)

type PurchaseRepository struct {
	DB *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{DB: db}
}

func (r *PurchaseRepository) WithTx(tx *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{DB: tx}
}

func withCourse(db *gorm.DB) *gorm.DB {
	return db.Preload("CourseInfo", func(db *gorm.DB) *gorm.DB {
		return db.Select(courseInfoColumns)
	})
}

// Create 同一消费者对同一课程只能有一条记录
func (r *PurchaseRepository) Create(ctx context.Context, record *model.PurchaseRecord) error {
	err := r.DB.WithContext(ctx).Create(record).Error
	return translate(err, nil, util.ErrAlreadyPurchased)
}

func (r *PurchaseRepository) Find(ctx context.Context, consumerID string, courseInfoID uint) (*model.PurchaseRecord, error) {
	var record model.PurchaseRecord
	err := withCourse(r.DB.WithContext(ctx)).
		Where("consumer_id = ? AND course_info_id = ?", consumerID, courseInfoID).
		First(&record).Error
	if err != nil {
		return nil, translate(err, util.ErrPurchaseNotFound, nil)
	}
	return &record, nil
}

// FindByCourseKey 按课程自然键查找购买记录
func (r *PurchaseRepository) FindByCourseKey(ctx context.Context, consumerID, courseID, bppID string) (*model.PurchaseRecord, error) {
	var record model.PurchaseRecord
	err := withCourse(r.DB.WithContext(ctx)).
		Joins("JOIN course_infos ON course_infos.id = consumer_course_metadata.course_info_id").
		Where("consumer_course_metadata.consumer_id = ? AND course_infos.course_id = ? AND course_infos.bpp_id = ?",
			consumerID, courseID, bppID).
		First(&record).Error
	if err != nil {
		return nil, translate(err, util.ErrPurchaseNotFound, nil)
	}
	return &record, nil
}

// MarkCompleted 仅在未完成时写入，返回是否发生了状态迁移
func (r *PurchaseRepository) MarkCompleted(ctx context.Context, id uint, credentialID *string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":       model.CourseCompleted,
		"completed_at": at,
	}
	if credentialID != nil {
		updates["certificate_credential_id"] = *credentialID
	}

	result := r.DB.WithContext(ctx).Model(&model.PurchaseRecord{}).
		Where("id = ? AND status <> ?", id, model.CourseCompleted).
		Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// UpdateFeedback 评分只能写入一次，已有评分时返回 ErrFeedbackGiven
func (r *PurchaseRepository) UpdateFeedback(ctx context.Context, id uint, rating int, feedback *string) error {
	result := r.DB.WithContext(ctx).Model(&model.PurchaseRecord{}).
		Where("id = ? AND rating IS NULL", id).
		Updates(map[string]interface{}{
			"rating":   rating,
			"feedback": feedback,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrFeedbackGiven
	}
	return nil
}

func (r *PurchaseRepository) SetBecknIDs(ctx context.Context, id uint, transactionID, messageID *string) error {
	updates := map[string]interface{}{}
	if transactionID != nil {
		updates["beckn_transaction_id"] = *transactionID
	}
	if messageID != nil {
		updates["beckn_message_id"] = *messageID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&model.PurchaseRecord{}).Where("id = ?", id).Updates(updates).Error
}

func (r *PurchaseRepository) Delete(ctx context.Context, consumerID string, courseInfoID uint) error {
	result := r.DB.WithContext(ctx).
		Where("consumer_id = ? AND course_info_id = ?", consumerID, courseInfoID).
		Delete(&model.PurchaseRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrPurchaseNotFound
	}
	return nil
}

// ListByConsumer status 为空时返回全部
func (r *PurchaseRepository) ListByConsumer(ctx context.Context, consumerID string, status model.CourseProgressStatus) ([]model.PurchaseRecord, error) {
	records := []model.PurchaseRecord{}
	db := withCourse(r.DB.WithContext(ctx)).Where("consumer_id = ?", consumerID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	err := db.Order("purchased_at DESC, id DESC").Find(&records).Error
	return records, err
}

func (r *PurchaseRepository) CountByConsumer(ctx context.Context, consumerID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.PurchaseRecord{}).Where("consumer_id = ?", consumerID).Count(&count).Error
	return count, err
}
