package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"marketplace_backend/internal/config"
)

const ServiceBAP = "bap"

type ApplicantProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ConfirmRequest 经 BAP 向外部 BPP 确认订单
type ConfirmRequest struct {
	ProviderID       string           `json:"providerId"`
	CourseID         string           `json:"courseId"`
	Amount           int              `json:"amount"`
	BppID            string           `json:"bppId"`
	BppURI           string           `json:"bppUri"`
	ApplicantProfile ApplicantProfile `json:"applicantProfile"`
}

type RatingRequest struct {
	CourseID string `json:"courseId"`
	Rating   int    `json:"rating"`
	BppID    string `json:"bppId"`
	BppURI   string `json:"bppUri"`
}

type BAPClient struct {
	c *client
}

func NewBAPClient(cfg config.CollaboratorsConfig) *BAPClient {
	return &BAPClient{c: newClient(ServiceBAP, cfg.BapURL, cfg)}
}

func (b *BAPClient) Confirm(ctx context.Context, req ConfirmRequest, idempotencyKey string) error {
	return b.c.do(ctx, call{
		method:         http.MethodPost,
		path:           "/courses/confirm",
		operation:      "confirm",
		body:           req,
		idempotencyKey: idempotencyKey,
	}, nil)
}

func (b *BAPClient) Rate(ctx context.Context, req RatingRequest) error {
	return b.c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/courses/rating",
		operation: "rating",
		body:      req,
	}, nil)
}

// Search 发起 Beckn 搜索，结果需要按 messageId 轮询
func (b *BAPClient) Search(ctx context.Context, text string) (string, error) {
	var out struct {
		MessageID string `json:"messageId"`
	}
	err := b.c.do(ctx, call{
		method:    http.MethodGet,
		path:      "/courses/search",
		operation: "search",
		query:     map[string]string{"searchText": text},
	}, &out)
	return out.MessageID, err
}

func (b *BAPClient) Poll(ctx context.Context, messageID string) (json.RawMessage, error) {
	var out json.RawMessage
	err := b.c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/on_search/poll/{messageId}",
		pathParams: map[string]string{"messageId": messageID},
		operation:  "poll",
	}, &out)
	return out, err
}
