package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"marketplace_backend/internal/config"
)

const ServiceCredential = "credential"

type CredentialSubject struct {
	ID                   string      `json:"id"`
	CompletionScore      int         `json:"completionScore"`
	CourseName           string      `json:"courseName"`
	CourseProvider       string      `json:"courseProvider"`
	Username             string      `json:"username"`
	Competency           interface{} `json:"competency"`
	CourseCompletionDate string      `json:"courseCompletionDate"`
}

type CredentialOptions struct {
	Created          string            `json:"created"`
	CredentialStatus map[string]string `json:"credentialStatus"`
}

type Credential struct {
	Context           []string          `json:"@context"`
	Type              []string          `json:"type"`
	Issuer            string            `json:"issuer"`
	ExpirationDate    string            `json:"expirationDate"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
	Options           CredentialOptions `json:"options"`
}

// IssueRequest W3C 可验证凭证签发请求
type IssueRequest struct {
	Credential              Credential `json:"credential"`
	CredentialSchemaID      string     `json:"credentialSchemaId"`
	CredentialSchemaVersion string     `json:"credentialSchemaVersion"`
	Tags                    []string   `json:"tags"`
}

// IssuedCredential 签发结果，Raw 保留完整响应用于归档
type IssuedCredential struct {
	ID  string
	Raw json.RawMessage
}

type CredentialClient struct {
	c *client
}

func NewCredentialClient(cfg config.CollaboratorsConfig) *CredentialClient {
	return &CredentialClient{c: newClient(ServiceCredential, cfg.CredentialURL, cfg)}
}

func (cc *CredentialClient) Issue(ctx context.Context, req IssueRequest, idempotencyKey string) (*IssuedCredential, error) {
	var raw json.RawMessage
	err := cc.c.do(ctx, call{
		method:         http.MethodPost,
		path:           "/credentials/issue",
		operation:      "issue",
		body:           req,
		idempotencyKey: idempotencyKey,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var out struct {
		Credential struct {
			ID string `json:"id"`
		} `json:"credential"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Credential.ID == "" {
		return nil, &UpstreamError{Service: ServiceCredential, StatusCode: http.StatusOK, Message: "response carries no credential id"}
	}
	return &IssuedCredential{ID: out.Credential.ID, Raw: raw}, nil
}
