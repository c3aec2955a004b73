package gateway

import (
	"context"
	"net/http"

	"marketplace_backend/internal/config"
)

const ServicePassbook = "passbook"

// Assessment 写入能力护照的一条能力等级记录
type Assessment struct {
	UserID         string  `json:"userId"`
	CompetencyID   int     `json:"competencyId"`
	Competency     string  `json:"competency"`
	LevelNumber    int     `json:"levelNumber"`
	Type           string  `json:"type"`
	Score          string  `json:"score"`
	CertificateID  *string `json:"certificateId"`
	DateOfIssuance string  `json:"dateOfIssuance"`
}

type PassbookClient struct {
	c *client
}

func NewPassbookClient(cfg config.CollaboratorsConfig) *PassbookClient {
	return &PassbookClient{c: newClient(ServicePassbook, cfg.PassbookURL, cfg)}
}

func (p *PassbookClient) AddAssessment(ctx context.Context, a Assessment) error {
	return p.c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/api/user/assessment",
		operation: "assessment",
		body:      a,
	}, nil)
}
