package service

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/model"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/logger"

	"go.uber.org/zap"
)

const completionCredentialTag = "courseCompletionCredential"

type CompletionService struct {
	Consumers  *repository.ConsumerRepository
	Catalog    *CatalogService
	Purchases  *repository.PurchaseRepository
	Users      UserDirectory
	Credential CredentialIssuer
	Archive    *ArchiveService

	cfg config.CredentialConfig
	now func() time.Time
}

func NewCompletionService(
	consumers *repository.ConsumerRepository,
	catalog *CatalogService,
	purchases *repository.PurchaseRepository,
	users UserDirectory,
	credential CredentialIssuer,
	archive *ArchiveService,
	cfg config.CredentialConfig,
) *CompletionService {
	return &CompletionService{
		Consumers:  consumers,
		Catalog:    catalog,
		Purchases:  purchases,
		Users:      users,
		Credential: credential,
		Archive:    archive,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *CompletionService) findPurchase(ctx context.Context, consumerID string, key CourseKey, missing error) (*model.PurchaseRecord, error) {
	course, err := s.Catalog.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	record, err := s.Purchases.Find(ctx, consumerID, course.ID)
	if errors.Is(err, util.ErrPurchaseNotFound) {
		return nil, missing
	}
	if err != nil {
		return nil, err
	}
	record.CourseInfo = course
	return record, nil
}

// Complete 内部触发的完成：仅迁移状态。重复完成视为成功
func (s *CompletionService) Complete(ctx context.Context, consumerID string, key CourseKey) (*model.PurchaseRecord, error) {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return nil, err
	}
	record, err := s.findPurchase(ctx, consumerID, key, util.ErrNotSubscribed)
	if err != nil {
		return nil, err
	}
	if record.IsCompleted() {
		return record, nil
	}

	changed, err := s.Purchases.MarkCompleted(ctx, record.ID, nil, s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		logger.Log.Info("Course completed",
			zap.String("consumerId", consumerID),
			zap.String("courseId", record.CourseInfo.CourseID))
	}
	return s.Purchases.Find(ctx, consumerID, record.CourseInfoID)
}

// CompleteOnConfirm 外部完成回调：签发结业凭证后迁移状态。
// 已完成的记录不会再次签发
func (s *CompletionService) CompleteOnConfirm(ctx context.Context, c Confirmation) (*model.PurchaseRecord, error) {
	consumer, err := s.Consumers.FindByEmail(ctx, c.Email)
	if err != nil {
		return nil, err
	}
	record, err := s.findPurchase(ctx, consumer.ConsumerID, c.CourseKey(), util.ErrCourseNotPurchased)
	if err != nil {
		return nil, err
	}
	if record.IsCompleted() {
		return record, nil
	}

	profile, err := s.Users.Profile(ctx, consumer.ConsumerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	issued, err := s.Credential.Issue(ctx, s.credentialRequest(record.CourseInfo, profile, now), credentialKey(record))
	if err != nil {
		return nil, err
	}

	changed, err := s.Purchases.MarkCompleted(ctx, record.ID, &issued.ID, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return s.Purchases.Find(ctx, consumer.ConsumerID, record.CourseInfoID)
	}

	logger.Log.Info("Completion credential issued",
		zap.String("consumerId", consumer.ConsumerID),
		zap.String("courseId", record.CourseInfo.CourseID),
		zap.String("credentialId", issued.ID))

	if s.Archive != nil {
		if _, err := s.Archive.StoreCredential(ctx, consumer.ConsumerID, issued.ID, issued.Raw); err != nil {
			logger.Log.Warn("Failed to archive credential",
				zap.String("credentialId", issued.ID),
				zap.Error(err))
		}
	}
	return s.Purchases.Find(ctx, consumer.ConsumerID, record.CourseInfoID)
}

func credentialKey(record *model.PurchaseRecord) string {
	return "credential:" + record.ConsumerID + ":" + record.PurchasedAt.UTC().Format(time.RFC3339Nano) + ":" + record.CourseInfo.CourseID
}

func (s *CompletionService) credentialRequest(course *model.CourseInfo, profile *gateway.UserProfile, now time.Time) gateway.IssueRequest {
	years := s.cfg.ValidityYears
	if years <= 0 {
		years = 10
	}
	competency := course.Competency
	if competency == nil {
		competency = model.Competency{}
	}

	return gateway.IssueRequest{
		Credential: gateway.Credential{
			Context: []string{
				"https://www.w3.org/2018/credentials/v1",
				"https://www.w3.org/2018/credentials/examples/v1",
			},
			Type:           []string{"VerifiableCredential"},
			Issuer:         s.cfg.IssuerDID,
			ExpirationDate: now.AddDate(years, 0, 0).Format(time.RFC3339),
			CredentialSubject: gateway.CredentialSubject{
				ID:                   s.cfg.SchemaDID,
				CompletionScore:      100,
				CourseName:           course.Title,
				CourseProvider:       course.ProviderName,
				Username:             profile.UserName,
				Competency:           competency,
				CourseCompletionDate: now.Format(time.RFC3339),
			},
			Options: gateway.CredentialOptions{
				Created:          now.Format(time.RFC3339),
				CredentialStatus: map[string]string{"type": "RevocationList2020Status"},
			},
		},
		CredentialSchemaID:      s.cfg.SchemaDID,
		CredentialSchemaVersion: s.cfg.SchemaVersion,
		Tags:                    []string{completionCredentialTag},
	}
}
