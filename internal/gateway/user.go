package gateway

import (
	"context"
	"net/http"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/util"
)

const ServiceUser = "user"

type UserProfile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UserName       string `json:"userName"`
	Email          string `json:"email"`
	Designation    string `json:"designation"`
	ProfilePicture string `json:"profilePicture"`
}

type CompetencyRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type UserClient struct {
	c *client
}

func NewUserClient(cfg config.CollaboratorsConfig) *UserClient {
	return &UserClient{c: newClient(ServiceUser, cfg.UserServiceURL, cfg)}
}

func (u *UserClient) Profile(ctx context.Context, consumerID string) (*UserProfile, error) {
	var out envelope[*UserProfile]
	err := u.c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/api/mockFracService/user/{consumerId}",
		pathParams: map[string]string{"consumerId": consumerID},
		operation:  "user",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, util.ErrConsumerNotFound
	}
	return out.Data, nil
}

// CompetencyIDs 能力名称 -> 能力 ID
func (u *UserClient) CompetencyIDs(ctx context.Context) (map[string]int, error) {
	var out envelope[[]CompetencyRef]
	err := u.c.do(ctx, call{
		method:    http.MethodGet,
		path:      "/api/mockFracService/competency",
		operation: "competency",
	}, &out)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int, len(out.Data))
	for _, c := range out.Data {
		ids[c.Name] = c.ID
	}
	return ids, nil
}
