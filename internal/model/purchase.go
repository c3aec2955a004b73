package model

import (
	"time"

	"gorm.io/gorm"
)

type CourseProgressStatus string

const (
	CourseInProgress CourseProgressStatus = "IN_PROGRESS"
	CourseCompleted  CourseProgressStatus = "COMPLETED"
)

// PurchaseRecord 每个 (消费者, 课程) 至多一条购买记录
type PurchaseRecord struct {
	ID                      uint                 `gorm:"primaryKey;autoIncrement" json:"id"`
	ConsumerID              string               `gorm:"type:varchar(36);not null;uniqueIndex:ux_purchase_consumer_course,priority:1" json:"consumerId"`
	CourseInfoID            uint                 `gorm:"not null;uniqueIndex:ux_purchase_consumer_course,priority:2;index" json:"courseInfoId"`
	Status                  CourseProgressStatus `gorm:"size:20;not null;default:'IN_PROGRESS'" json:"status"`
	Rating                  *int                 `json:"rating"`
	Feedback                *string              `gorm:"type:text" json:"feedback"`
	BecknTransactionID      *string              `gorm:"size:128" json:"becknTransactionId"`
	BecknMessageID          *string              `gorm:"size:128" json:"becknMessageId"`
	CertificateCredentialID *string              `gorm:"size:255" json:"certificateCredentialId"`
	PurchasedAt             time.Time            `gorm:"autoCreateTime" json:"purchasedAt"`
	CompletedAt             *time.Time           `json:"completedAt"`

	CourseInfo *CourseInfo `gorm:"foreignKey:CourseInfoID" json:"CourseInfo,omitempty"`
}

func (PurchaseRecord) TableName() string {
	return "consumer_course_metadata"
}

func (p *PurchaseRecord) BeforeCreate(tx *gorm.DB) error {
	if p.Status == "" {
		p.Status = CourseInProgress
	}
	return nil
}

func (p *PurchaseRecord) IsCompleted() bool {
	return p.Status == CourseCompleted
}
