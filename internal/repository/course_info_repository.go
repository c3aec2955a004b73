package repository

import (
	"context"
	"database/sql"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// courseInfoColumns 附带实时购买数
const courseInfoColumns = "course_infos.*, " +
	"(SELECT COUNT(*) FROM consumer_course_metadata WHERE consumer_course_metadata.course_info_id = course_infos.id) AS number_of_purchases"

// upsertColumns 冲突时覆盖的非键字段；course_link 与 avg_rating 仅在传入时覆盖
var upsertColumns = []string{
	"bpp_uri", "title", "description", "credits", "image_link", "language",
	"provider_id", "provider_name", "author", "competency", "updated_at",
}

type CourseInfoRepository struct {
	DB *gorm.DB
}

func NewCourseInfoRepository(db *gorm.DB) *CourseInfoRepository {
	return &CourseInfoRepository{DB: db}
}

func (r *CourseInfoRepository) WithTx(tx *gorm.DB) *CourseInfoRepository {
	return &CourseInfoRepository{DB: tx}
}

func (r *CourseInfoRepository) withCount(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&model.CourseInfo{}).Select(courseInfoColumns)
}

// Upsert 以 (course_id, bpp_id) 为键单语句插入或覆盖，返回带购买数的最新行
func (r *CourseInfoRepository) Upsert(ctx context.Context, course *model.CourseInfo) (*model.CourseInfo, error) {
	columns := append([]string{}, upsertColumns...)
	if course.CourseLink != nil && *course.CourseLink != "" {
		columns = append(columns, "course_link")
	}
	if course.AvgRating != nil {
		columns = append(columns, "avg_rating")
	}

	row := *course
	row.ID = 0
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}, {Name: "bpp_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	return r.FindByNaturalKey(ctx, course.CourseID, course.BppID)
}

func (r *CourseInfoRepository) FindByNaturalKey(ctx context.Context, courseID, bppID string) (*model.CourseInfo, error) {
	var course model.CourseInfo
	err := r.withCount(ctx).
		Where("course_infos.course_id = ? AND course_infos.bpp_id = ?", courseID, bppID).
		First(&course).Error
	if err != nil {
		return nil, translate(err, util.ErrCourseNotFound, nil)
	}
	return &course, nil
}

func (r *CourseInfoRepository) FindByID(ctx context.Context, id uint) (*model.CourseInfo, error) {
	var course model.CourseInfo
	err := r.withCount(ctx).Where("course_infos.id = ?", id).First(&course).Error
	if err != nil {
		return nil, translate(err, util.ErrCourseNotFound, nil)
	}
	return &course, nil
}

// FindByIDs 不存在的 ID 被忽略，结果按 ID 升序
func (r *CourseInfoRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.CourseInfo, error) {
	courses := []model.CourseInfo{}
	if len(ids) == 0 {
		return courses, nil
	}
	err := r.withCount(ctx).Where("course_infos.id IN ?", ids).Order("course_infos.id ASC").Find(&courses).Error
	return courses, err
}

func (r *CourseInfoRepository) UpdateCourseLink(ctx context.Context, id uint, link string) error {
	result := r.DB.WithContext(ctx).Model(&model.CourseInfo{}).Where("id = ?", id).Update("course_link", link)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return util.ErrCourseNotFound
	}
	return nil
}

// RefreshAvgRating 按已评分的购买记录重新计算平均分，没有评分时置空
func (r *CourseInfoRepository) RefreshAvgRating(ctx context.Context, id uint) error {
	var avg sql.NullFloat64
	err := r.DB.WithContext(ctx).Model(&model.PurchaseRecord{}).
		Select("AVG(rating)").
		Where("course_info_id = ? AND rating IS NOT NULL", id).
		Row().Scan(&avg)
	if err != nil {
		return err
	}

	var value interface{}
	if avg.Valid {
		value = avg.Float64
	}
	return r.DB.WithContext(ctx).Model(&model.CourseInfo{}).Where("id = ?", id).Update("avg_rating", value).Error
}
