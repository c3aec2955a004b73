// Package gateway 封装对外部协作服务的 HTTP 调用
package gateway

import "marketplace_backend/internal/config"

type Gateways struct {
	Wallet        *WalletClient
	CourseManager *CourseManagerClient
	BAP           *BAPClient
	Credential    *CredentialClient
	Passbook      *PassbookClient
	User          *UserClient
	Request       *RequestClient
}

func New(cfg config.CollaboratorsConfig) *Gateways {
	return &Gateways{
		Wallet:        NewWalletClient(cfg),
		CourseManager: NewCourseManagerClient(cfg),
		BAP:           NewBAPClient(cfg),
		Credential:    NewCredentialClient(cfg),
		Passbook:      NewPassbookClient(cfg),
		User:          NewUserClient(cfg),
		Request:       NewRequestClient(cfg),
	}
}
