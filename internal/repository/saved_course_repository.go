package repository

import (
	"context"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"

	"gorm.io/gorm"
)

type SavedCourseRepository struct {
	DB *gorm.DB
}

func NewSavedCourseRepository(db *gorm.DB) *SavedCourseRepository {
	return &SavedCourseRepository{DB: db}
}

func (r *SavedCourseRepository) WithTx(tx *gorm.DB) *SavedCourseRepository {
	return &SavedCourseRepository{DB: tx}
}

// Add 重复收藏由唯一索引拒绝
func (r *SavedCourseRepository) Add(ctx context.Context, consumerID string, courseInfoID uint) error {
	err := r.DB.WithContext(ctx).Create(&model.SavedCourse{
		ConsumerID:   consumerID,
		CourseInfoID: courseInfoID,
	}).Error
	return translate(err, nil, util.ErrAlreadySaved)
}

func (r *SavedCourseRepository) Remove(ctx context.Context, consumerID string, courseInfoID uint) error {
	result := r.DB.WithContext(ctx).
		Where("consumer_id = ? AND course_info_id = ?", consumerID, courseInfoID).
		Delete(&model.SavedCourse{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrNotSaved
	}
	return nil
}

func (r *SavedCourseRepository) Exists(ctx context.Context, consumerID string, courseInfoID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.SavedCourse{}).
		Where("consumer_id = ? AND course_info_id = ?", consumerID, courseInfoID).
		Count(&count).Error
	return count > 0, err
}

// Toggle 已收藏则移除，否则加入；返回操作后的收藏状态
func (r *SavedCourseRepository) Toggle(ctx context.Context, consumerID string, courseInfoID uint) (bool, error) {
	saved := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("consumer_id = ? AND course_info_id = ?", consumerID, courseInfoID).
			Delete(&model.SavedCourse{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		saved = true
		return tx.Create(&model.SavedCourse{ConsumerID: consumerID, CourseInfoID: courseInfoID}).Error
	})
	// 并发切换时另一方已先插入
	return saved, translate(err, nil, util.ErrAlreadySaved)
}

// ListCourses 按收藏先后返回课程，附带实时购买数
func (r *SavedCourseRepository) ListCourses(ctx context.Context, consumerID string) ([]model.CourseInfo, error) {
	courses := []model.CourseInfo{}
	err := r.DB.WithContext(ctx).Model(&model.CourseInfo{}).
		Select(courseInfoColumns).
		Joins("JOIN consumer_saved_courses ON consumer_saved_courses.course_info_id = course_infos.id").
		Where("consumer_saved_courses.consumer_id = ?", consumerID).
		Order("consumer_saved_courses.created_at ASC, consumer_saved_courses.id ASC").
		Find(&courses).Error
	return courses, err
}
