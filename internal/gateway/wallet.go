package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"marketplace_backend/internal/config"
)

const ServiceWallet = "wallet"

// WalletTransfer 扣款或退款请求体
type WalletTransfer struct {
	ProviderID  string `json:"providerId"`
	Credits     int    `json:"credits"`
	Description string `json:"description"`
}

type WalletClient struct {
	c *client
}

func NewWalletClient(cfg config.CollaboratorsConfig) *WalletClient {
	return &WalletClient{c: newClient(ServiceWallet, cfg.WalletURL, cfg)}
}

func (w *WalletClient) Credits(ctx context.Context, consumerID string) (int, error) {
	var out envelope[struct {
		Credits int `json:"credits"`
	}]
	err := w.c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/api/consumers/{consumerId}/credits",
		pathParams: map[string]string{"consumerId": consumerID},
		operation:  "credits",
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.Data.Credits, nil
}

// Transactions 钱包流水，结构由钱包服务决定，原样透传
func (w *WalletClient) Transactions(ctx context.Context, consumerID string) (json.RawMessage, error) {
	var out envelope[struct {
		Transactions json.RawMessage `json:"transactions"`
	}]
	err := w.c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/api/consumers/{consumerId}/transactions",
		pathParams: map[string]string{"consumerId": consumerID},
		operation:  "transactions",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data.Transactions, nil
}

func (w *WalletClient) Debit(ctx context.Context, consumerID string, t WalletTransfer, idempotencyKey string) error {
	return w.c.do(ctx, call{
		method:         http.MethodPost,
		path:           "/api/consumers/{consumerId}/purchase",
		pathParams:     map[string]string{"consumerId": consumerID},
		operation:      "purchase",
		body:           t,
		idempotencyKey: idempotencyKey,
	}, nil)
}

func (w *WalletClient) Refund(ctx context.Context, consumerID string, t WalletTransfer, idempotencyKey string) error {
	return w.c.do(ctx, call{
		method:         http.MethodPost,
		path:           "/api/consumers/{consumerId}/refund",
		pathParams:     map[string]string{"consumerId": consumerID},
		operation:      "refund",
		body:           t,
		idempotencyKey: idempotencyKey,
	}, nil)
}
