package model

import (
	"gorm.io/gorm"
)

type SettlementKind string

const (
	SettlementDebit  SettlementKind = "DEBIT"
	SettlementRefund SettlementKind = "REFUND"
)

// SettlementStatus 钱包结算的状态流转：
//
//	DEBIT:  PENDING_DEBIT -> DEBITED -> COMMITTED
//	        DEBITED -> COMPENSATING -> COMMITTED   (本地写入冲突，需要退款)
//	REFUND: COMPENSATING -> COMMITTED
//
// 无法重试的失败终止于 FAILED
type SettlementStatus string

const (
	SettlementPendingDebit SettlementStatus = "PENDING_DEBIT"
	SettlementDebited      SettlementStatus = "DEBITED"
	SettlementCommitted    SettlementStatus = "COMMITTED"
	SettlementCompensating SettlementStatus = "COMPENSATING"
	SettlementFailed       SettlementStatus = "FAILED"
)

// Settlement 钱包扣款/退款的发件箱记录。远程调用无法参与本地事务，
// 记录幂等键与课程快照，使对账任务可以用同一个键重放
type Settlement struct {
	UUIDBase
	Kind           SettlementKind   `gorm:"size:16;not null" json:"kind"`
	Status         SettlementStatus `gorm:"size:20;not null;index" json:"status"`
	ConsumerID     string           `gorm:"type:varchar(36);not null;index:idx_settlement_consumer_course,priority:1" json:"consumerId"`
	CourseID       string           `gorm:"size:64;not null;index:idx_settlement_consumer_course,priority:2" json:"courseId"`
	BppID          string           `gorm:"size:191;not null;index:idx_settlement_consumer_course,priority:3" json:"bppId"`
	ProviderID     string           `gorm:"size:64" json:"providerId"`
	Credits        int              `gorm:"not null" json:"credits"`
	Description    string           `gorm:"size:255" json:"description"`
	IdempotencyKey string           `gorm:"size:64;not null;uniqueIndex" json:"idempotencyKey"`
	Attempts       int              `gorm:"not null;default:0" json:"attempts"`
	LastError      string           `gorm:"type:text" json:"lastError"`
	Course         CourseSnapshot   `gorm:"type:text;serializer:json" json:"course"`
}

func (Settlement) TableName() string {
	return "settlements"
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if err := s.UUIDBase.BeforeCreate(tx); err != nil {
		return err
	}
	if s.IdempotencyKey == "" {
		s.IdempotencyKey = s.ID
	}
	return nil
}

// RefundKey 退款请求使用的幂等键
func (s *Settlement) RefundKey() string {
	if s.Kind == SettlementRefund {
		return s.IdempotencyKey
	}
	return s.IdempotencyKey + ":refund"
}
