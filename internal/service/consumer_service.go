package service

import (
	"context"
	"encoding/json"
	"time"

	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/model"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/logger"

	"go.uber.org/zap"
)

type SignupInput struct {
	ConsumerID  string `json:"consumerId" binding:"required,uuid"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phoneNumber" binding:"required,e164"`
}

// AccountDetails 本地记录 + 钱包余额 + 用户服务资料
type AccountDetails struct {
	ConsumerID               string    `json:"consumerId"`
	Name                     string    `json:"name"`
	Designation              string    `json:"designation"`
	ProfilePicture           string    `json:"profilePicture"`
	EmailID                  string    `json:"emailId"`
	PhoneNumber              string    `json:"phoneNumber"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
	Credits                  int       `json:"credits"`
	NumberOfPurchasedCourses int64     `json:"numberOfPurchasedCourses"`
}

type CreditRequestInput struct {
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description" binding:"required"`
	RequestContent json.RawMessage `json:"requestContent"`
	Remark         string          `json:"remark"`
}

type ConsumerService struct {
	Consumers *repository.ConsumerRepository
	Saved     *repository.SavedCourseRepository
	Purchases *repository.PurchaseRepository
	Catalog   *CatalogService
	Wallet    Wallet
	Users     UserDirectory
	Requests  RequestDesk
}

func NewConsumerService(
	consumers *repository.ConsumerRepository,
	saved *repository.SavedCourseRepository,
	purchases *repository.PurchaseRepository,
	catalog *CatalogService,
	wallet Wallet,
	users UserDirectory,
	requests RequestDesk,
) *ConsumerService {
	return &ConsumerService{
		Consumers: consumers,
		Saved:     saved,
		Purchases: purchases,
		Catalog:   catalog,
		Wallet:    wallet,
		Users:     users,
		Requests:  requests,
	}
}

func (s *ConsumerService) Signup(ctx context.Context, in SignupInput) (*model.Consumer, error) {
	consumer := &model.Consumer{
		ConsumerID:  in.ConsumerID,
		Name:        in.Name,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
	}
	if err := s.Consumers.Create(ctx, consumer); err != nil {
		return nil, err
	}
	logger.Log.Info("Consumer signed up", zap.String("consumerId", consumer.ConsumerID))
	return consumer, nil
}

func (s *ConsumerService) Get(ctx context.Context, consumerID string) (*model.Consumer, error) {
	return s.Consumers.FindByID(ctx, consumerID)
}

func (s *ConsumerService) AccountDetails(ctx context.Context, consumerID string) (*AccountDetails, error) {
	consumer, err := s.Consumers.FindByID(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	count, err := s.Purchases.CountByConsumer(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	credits, err := s.Wallet.Credits(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	profile, err := s.Users.Profile(ctx, consumerID)
	if err != nil {
		return nil, err
	}

	return &AccountDetails{
		ConsumerID:               consumer.ConsumerID,
		Name:                     profile.Name,
		Designation:              profile.Designation,
		ProfilePicture:           profile.ProfilePicture,
		EmailID:                  consumer.Email,
		PhoneNumber:              consumer.PhoneNumber,
		CreatedAt:                consumer.CreatedAt,
		UpdatedAt:                consumer.UpdatedAt,
		Credits:                  credits,
		NumberOfPurchasedCourses: count,
	}, nil
}

// PurchaseHistory status 为空时返回全部购买记录
func (s *ConsumerService) PurchaseHistory(ctx context.Context, consumerID string, status model.CourseProgressStatus) ([]model.PurchaseRecord, error) {
	return s.Purchases.ListByConsumer(ctx, consumerID, status)
}

func (s *ConsumerService) Ongoing(ctx context.Context, consumerID string) ([]model.PurchaseRecord, error) {
	return s.Purchases.ListByConsumer(ctx, consumerID, model.CourseInProgress)
}

// Save 课程先写入目录缓存，再加入收藏
func (s *ConsumerService) Save(ctx context.Context, consumerID string, in CourseInput) error {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return err
	}
	course, err := s.Catalog.Normalize(in)
	if err != nil {
		return err
	}
	course, err = s.Catalog.Upsert(ctx, course)
	if err != nil {
		return err
	}
	return s.Saved.Add(ctx, consumerID, course.ID)
}

// Unsave 课程未进入目录缓存时同样视为未收藏
func (s *ConsumerService) Unsave(ctx context.Context, consumerID string, key CourseKey) error {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return err
	}
	course, err := s.Catalog.Find(ctx, key)
	if isNotFound(err) {
		return util.ErrNotSaved
	}
	if err != nil {
		return err
	}
	return s.Saved.Remove(ctx, consumerID, course.ID)
}

// ToggleSaved 按目录 ID 切换收藏状态，返回切换后的状态
func (s *ConsumerService) ToggleSaved(ctx context.Context, consumerID string, courseInfoID uint) (bool, error) {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return false, err
	}
	if _, err := s.Catalog.Courses.FindByID(ctx, courseInfoID); err != nil {
		return false, err
	}
	return s.Saved.Toggle(ctx, consumerID, courseInfoID)
}

// CheckSaved 课程未进入目录缓存时视为未收藏
func (s *ConsumerService) CheckSaved(ctx context.Context, consumerID string, key CourseKey) (bool, error) {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return false, err
	}
	course, err := s.Catalog.Find(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return s.Saved.Exists(ctx, consumerID, course.ID)
}

func (s *ConsumerService) ListSaved(ctx context.Context, consumerID string) ([]model.CourseInfo, error) {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return nil, err
	}
	return s.Saved.ListCourses(ctx, consumerID)
}

func (s *ConsumerService) WalletCredits(ctx context.Context, consumerID string) (int, error) {
	return s.Wallet.Credits(ctx, consumerID)
}

func (s *ConsumerService) WalletTransactions(ctx context.Context, consumerID string) (json.RawMessage, error) {
	return s.Wallet.Transactions(ctx, consumerID)
}

// RequestCredits 在工单服务中创建积分申请
func (s *ConsumerService) RequestCredits(ctx context.Context, consumerID string, in CreditRequestInput) (json.RawMessage, error) {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return nil, err
	}
	return s.Requests.Create(ctx, gateway.CreditRequest{
		UserID:         consumerID,
		Title:          in.Title,
		Status:         gateway.RequestStatusPending,
		Description:    in.Description,
		Type:           gateway.RequestTypeCredit,
		RequestContent: in.RequestContent,
		Remark:         in.Remark,
	})
}
