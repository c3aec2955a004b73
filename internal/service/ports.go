package service

import (
	"context"
	"encoding/json"

	"marketplace_backend/internal/gateway"
)

// 外部协作服务，由 internal/gateway 实现

type Wallet interface {
	Credits(ctx context.Context, consumerID string) (int, error)
	Transactions(ctx context.Context, consumerID string) (json.RawMessage, error)
	Debit(ctx context.Context, consumerID string, t gateway.WalletTransfer, idempotencyKey string) error
	Refund(ctx context.Context, consumerID string, t gateway.WalletTransfer, idempotencyKey string) error
}

type CourseManager interface {
	Purchase(ctx context.Context, courseID, consumerID, idempotencyKey string) (string, error)
	SubmitFeedback(ctx context.Context, courseID, consumerID string, rating int) error
	Course(ctx context.Context, courseID string) (json.RawMessage, error)
	Search(ctx context.Context, text string) (json.RawMessage, error)
	Popular(ctx context.Context, limit, offset int) (json.RawMessage, error)
}

type Beckn interface {
	Confirm(ctx context.Context, req gateway.ConfirmRequest, idempotencyKey string) error
	Rate(ctx context.Context, req gateway.RatingRequest) error
	Search(ctx context.Context, text string) (string, error)
	Poll(ctx context.Context, messageID string) (json.RawMessage, error)
}

type CredentialIssuer interface {
	Issue(ctx context.Context, req gateway.IssueRequest, idempotencyKey string) (*gateway.IssuedCredential, error)
}

type Passbook interface {
	AddAssessment(ctx context.Context, a gateway.Assessment) error
}

type UserDirectory interface {
	Profile(ctx context.Context, consumerID string) (*gateway.UserProfile, error)
	CompetencyIDs(ctx context.Context) (map[string]int, error)
}

type RequestDesk interface {
	Create(ctx context.Context, req gateway.CreditRequest) (json.RawMessage, error)
}
