package service

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/logger"

	"go.uber.org/zap"
)

const (
	assessmentType  = "CBP"
	assessmentScore = "100"
)

type FeedbackInput struct {
	CourseInfoID uint    `json:"courseInfoId" binding:"required"`
	Rating       int     `json:"rating" binding:"required"`
	Feedback     *string `json:"feedback"`
}

type FeedbackService struct {
	Catalog       *CatalogService
	Purchases     *repository.PurchaseRepository
	Beckn         Beckn
	CourseManager CourseManager
	Users         UserDirectory
	Passbook      Passbook

	now func() time.Time
}

func NewFeedbackService(
	catalog *CatalogService,
	purchases *repository.PurchaseRepository,
	beckn Beckn,
	courseManager CourseManager,
	users UserDirectory,
	passbook Passbook,
) *FeedbackService {
	return &FeedbackService{
		Catalog:       catalog,
		Purchases:     purchases,
		Beckn:         beckn,
		CourseManager: courseManager,
		Users:         users,
		Passbook:      passbook,
		now:           time.Now,
	}
}

// GiveFeedback 只有已完成的课程可以评分。评分先提交给课程所属方，
// 再把课程的每个能力等级写入能力护照，最后落库
func (s *FeedbackService) GiveFeedback(ctx context.Context, consumerID string, in FeedbackInput) error {
	if in.Rating < 1 || in.Rating > 5 {
		return util.ErrInvalidRating
	}

	record, err := s.Purchases.Find(ctx, consumerID, in.CourseInfoID)
	if errors.Is(err, util.ErrPurchaseNotFound) {
		return util.ErrNotSubscribed
	}
	if err != nil {
		return err
	}
	if !record.IsCompleted() {
		return util.ErrCourseNotCompleted
	}
	if record.Rating != nil {
		return util.ErrFeedbackGiven
	}
	course := record.CourseInfo
	if course == nil {
		if course, err = s.Catalog.Courses.FindByID(ctx, record.CourseInfoID); err != nil {
			return err
		}
	}

	if s.Catalog.IsExternal(course) {
		err = s.Beckn.Rate(ctx, gateway.RatingRequest{
			CourseID: course.CourseID,
			Rating:   in.Rating,
			BppID:    course.BppID,
			BppURI:   course.BppURI,
		})
	} else {
		err = s.CourseManager.SubmitFeedback(ctx, course.CourseID, consumerID, in.Rating)
	}
	if err != nil {
		return err
	}

	competencyIDs, err := s.Users.CompetencyIDs(ctx)
	if err != nil {
		logger.Log.Warn("Failed to fetch competency catalog, continuing without ids", zap.Error(err))
		competencyIDs = map[string]int{}
	}

	issuedAt := s.now().UTC().Format(time.RFC3339)
	for _, name := range course.Competency.Names() {
		for _, level := range course.Competency[name] {
			err := s.Passbook.AddAssessment(ctx, gateway.Assessment{
				UserID:         consumerID,
				CompetencyID:   competencyIDs[name],
				Competency:     name,
				LevelNumber:    level.Number(),
				Type:           assessmentType,
				Score:          assessmentScore,
				CertificateID:  record.CertificateCredentialID,
				DateOfIssuance: issuedAt,
			})
			if err != nil {
				return err
			}
		}
	}

	if err := s.Purchases.UpdateFeedback(ctx, record.ID, in.Rating, in.Feedback); err != nil {
		return err
	}
	if err := s.Catalog.Courses.RefreshAvgRating(ctx, record.CourseInfoID); err != nil {
		logger.Log.Warn("Failed to refresh course rating", zap.Uint("courseInfoId", record.CourseInfoID), zap.Error(err))
	}

	logger.Log.Info("Feedback recorded",
		zap.String("consumerId", consumerID),
		zap.String("courseId", course.CourseID),
		zap.Int("rating", in.Rating))
	return nil
}
