package model

import "time"

// Consumer 平台消费者，ConsumerID 由用户服务分配且不可变
type Consumer struct {
	ConsumerID  string    `gorm:"primaryKey;type:varchar(36)" json:"consumerId"`
	Name        string    `gorm:"size:100" json:"name"`
	Email       string    `gorm:"size:100;uniqueIndex;not null" json:"emailId"`
	PhoneNumber string    `gorm:"size:20;uniqueIndex;not null" json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Consumer) TableName() string {
	return "consumer_metadata"
}

// SavedCourse 消费者收藏的课程。每次收藏/取消收藏只插入或删除一行，
// 由 (consumer_id, course_info_id) 唯一索引保证同一课程不会出现两次
type SavedCourse struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConsumerID   string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_saved_consumer_course,priority:1" json:"consumerId"`
	CourseInfoID uint      `gorm:"not null;uniqueIndex:ux_saved_consumer_course,priority:2" json:"courseInfoId"`
	CreatedAt    time.Time `json:"savedAt"`
}

func (SavedCourse) TableName() string {
	return "consumer_saved_courses"
}
