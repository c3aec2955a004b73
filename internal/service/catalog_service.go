package service

import (
	"context"
	"encoding/json"
	"strings"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/util"
)

// CourseInput 客户端提交的课程元数据
type CourseInput struct {
	CourseID     string           `json:"courseId" binding:"required"`
	BppID        string           `json:"bppId"`
	BppURI       string           `json:"bppUri"`
	Title        string           `json:"title" binding:"required"`
	Description  string           `json:"description"`
	Credits      int              `json:"credits" binding:"min=0"`
	ImageLink    string           `json:"imageLink"`
	Language     []string         `json:"language"`
	CourseLink   string           `json:"courseLink"`
	ProviderID   string           `json:"providerId"`
	ProviderName string           `json:"providerName"`
	Author       string           `json:"author"`
	AvgRating    *float64         `json:"avgRating"`
	Competency   model.Competency `json:"competency"`
}

// CourseKey 课程自然键，BppID 为空表示平台自有课程
type CourseKey struct {
	CourseID string `json:"courseId" binding:"required"`
	BppID    string `json:"bppId"`
}

// SearchResult 本地课程管理器结果 + Beckn 搜索的 messageId
type SearchResult struct {
	Courses   json.RawMessage `json:"courses"`
	MessageID string          `json:"messageId"`
}

type CatalogService struct {
	Courses       *repository.CourseInfoRepository
	CourseManager CourseManager
	Beckn         Beckn

	platformBppID string
	platformURI   string
}

func NewCatalogService(courses *repository.CourseInfoRepository, cm CourseManager, beckn Beckn, platformBppID, platformURI string) *CatalogService {
	return &CatalogService{
		Courses:       courses,
		CourseManager: cm,
		Beckn:         beckn,
		platformBppID: platformBppID,
		platformURI:   platformURI,
	}
}

func (s *CatalogService) PlatformBppID() string {
	return s.platformBppID
}

func (s *CatalogService) resolveBpp(bppID string) string {
	if strings.TrimSpace(bppID) == "" {
		return s.platformBppID
	}
	return bppID
}

// Normalize 补齐平台默认的 BPP 标识与地址，外部课程必须带 bppUri
func (s *CatalogService) Normalize(in CourseInput) (*model.CourseInfo, error) {
	if strings.TrimSpace(in.CourseID) == "" || strings.TrimSpace(in.Title) == "" {
		return nil, util.ErrInvalidCourse
	}

	course := &model.CourseInfo{
		CourseID:     in.CourseID,
		BppID:        s.resolveBpp(in.BppID),
		BppURI:       in.BppURI,
		Title:        in.Title,
		Description:  in.Description,
		Credits:      in.Credits,
		ImageLink:    in.ImageLink,
		Language:     in.Language,
		ProviderID:   in.ProviderID,
		ProviderName: in.ProviderName,
		Author:       in.Author,
		AvgRating:    in.AvgRating,
		Competency:   in.Competency,
	}
	if in.CourseLink != "" {
		link := in.CourseLink
		course.CourseLink = &link
	}
	if course.Language == nil {
		course.Language = []string{}
	}
	if course.Competency == nil {
		course.Competency = model.Competency{}
	}

	if course.BppID == s.platformBppID {
		if course.BppURI == "" {
			course.BppURI = s.platformURI
		}
	} else if course.BppURI == "" {
		return nil, util.ErrMissingBppURI
	}
	return course, nil
}

// IsExternal 课程是否需要经 BAP 路由
func (s *CatalogService) IsExternal(course *model.CourseInfo) bool {
	return course.IsExternal(s.platformBppID)
}

func (s *CatalogService) Upsert(ctx context.Context, course *model.CourseInfo) (*model.CourseInfo, error) {
	return s.Courses.Upsert(ctx, course)
}

func (s *CatalogService) Find(ctx context.Context, key CourseKey) (*model.CourseInfo, error) {
	return s.Courses.FindByNaturalKey(ctx, key.CourseID, s.resolveBpp(key.BppID))
}

func (s *CatalogService) FindByIDs(ctx context.Context, ids []uint) ([]model.CourseInfo, error) {
	return s.Courses.FindByIDs(ctx, ids)
}

// Search 同时向 BAP 发起网络搜索并查询本地课程管理器
func (s *CatalogService) Search(ctx context.Context, text string) (*SearchResult, error) {
	messageID, err := s.Beckn.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	courses, err := s.CourseManager.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Courses: courses, MessageID: messageID}, nil
}

func (s *CatalogService) PollSearch(ctx context.Context, messageID string) (json.RawMessage, error) {
	return s.Beckn.Poll(ctx, messageID)
}

func (s *CatalogService) Popular(ctx context.Context, limit, offset int) (json.RawMessage, error) {
	return s.CourseManager.Popular(ctx, limit, offset)
}

func (s *CatalogService) View(ctx context.Context, courseID string) (json.RawMessage, error) {
	return s.CourseManager.Course(ctx, courseID)
}
