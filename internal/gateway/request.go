package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"marketplace_backend/internal/config"
)

const ServiceRequest = "request"

const (
	RequestStatusPending = "PENDING"
	RequestTypeCredit    = "CREDIT"
)

// CreditRequest 工单服务中的积分申请
type CreditRequest struct {
	UserID         string          `json:"userId"`
	Title          string          `json:"title"`
	Status         string          `json:"status"`
	Description    string          `json:"description"`
	Type           string          `json:"type"`
	RequestContent json.RawMessage `json:"requestContent,omitempty"`
	Remark         string          `json:"remark,omitempty"`
}

type RequestClient struct {
	c *client
}

func NewRequestClient(cfg config.CollaboratorsConfig) *RequestClient {
	return &RequestClient{c: newClient(ServiceRequest, cfg.RequestServiceURL, cfg)}
}

func (r *RequestClient) Create(ctx context.Context, req CreditRequest) (json.RawMessage, error) {
	var out json.RawMessage
	err := r.c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/api/requests/",
		operation: "create",
		body:      req,
	}, &out)
	return out, err
}
