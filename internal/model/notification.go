package model

type NotificationStatus string

const (
	NotificationUnviewed NotificationStatus = "UNVIEWED"
	NotificationViewed   NotificationStatus = "VIEWED"
)

type Notification struct {
	BaseModel
	ConsumerID string             `gorm:"type:varchar(36);not null;index" json:"consumerId"`
	Text       string             `gorm:"type:text;not null" json:"text"`
	Link       string             `gorm:"size:512" json:"link"`
	Status     NotificationStatus `gorm:"size:20;not null;default:'UNVIEWED'" json:"status"`
}

func (Notification) TableName() string {
	return "notifications"
}
