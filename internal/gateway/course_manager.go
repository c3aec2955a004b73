package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"marketplace_backend/internal/config"
)

const ServiceCourseManager = "course_manager"

type CourseManagerClient struct {
	c *client
}

func NewCourseManagerClient(cfg config.CollaboratorsConfig) *CourseManagerClient {
	return &CourseManagerClient{c: newClient(ServiceCourseManager, cfg.CourseManagerURL, cfg)}
}

// Purchase 在本地课程管理器登记购买，返回课程访问链接
func (m *CourseManagerClient) Purchase(ctx context.Context, courseID, consumerID, idempotencyKey string) (string, error) {
	var out envelope[struct {
		CourseLink string `json:"courseLink"`
	}]
	err := m.c.do(ctx, call{
		method:         http.MethodPost,
		path:           "/api/course/{courseId}/purchase/{consumerId}",
		pathParams:     map[string]string{"courseId": courseID, "consumerId": consumerID},
		operation:      "purchase",
		idempotencyKey: idempotencyKey,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Data.CourseLink, nil
}

func (m *CourseManagerClient) SubmitFeedback(ctx context.Context, courseID, consumerID string, rating int) error {
	return m.c.do(ctx, call{
		method:     http.MethodPatch,
		path:       "/api/course/{courseId}/feedback/{consumerId}",
		pathParams: map[string]string{"courseId": courseID, "consumerId": consumerID},
		operation:  "feedback",
		body:       map[string]int{"rating": rating},
	}, nil)
}

func (m *CourseManagerClient) Course(ctx context.Context, courseID string) (json.RawMessage, error) {
	var out envelope[json.RawMessage]
	err := m.c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/api/course/{courseId}",
		pathParams: map[string]string{"courseId": courseID},
		operation:  "course",
	}, &out)
	return out.Data, err
}

func (m *CourseManagerClient) Search(ctx context.Context, text string) (json.RawMessage, error) {
	var out envelope[json.RawMessage]
	err := m.c.do(ctx, call{
		method:    http.MethodGet,
		path:      "/api/course/search",
		operation: "search",
		query:     map[string]string{"searchInput": text},
	}, &out)
	return out.Data, err
}

func (m *CourseManagerClient) Popular(ctx context.Context, limit, offset int) (json.RawMessage, error) {
	var out envelope[json.RawMessage]
	err := m.c.do(ctx, call{
		method:    http.MethodGet,
		path:      "/api/course/popular",
		operation: "popular",
		query: map[string]string{
			"limit":  strconv.Itoa(limit),
			"offset": strconv.Itoa(offset),
		},
	}, &out)
	return out.Data, err
}
