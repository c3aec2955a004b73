package database

import (
	"log"
	"marketplace_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var demoConsumers = []model.Consumer{
	{ConsumerID: "123e4567-e89b-42d3-a456-556642440000", Name: "Consumer One", Email: "consumer.one@example.com", PhoneNumber: "+919876543210"},
	{ConsumerID: "123e4567-e89b-42d3-a456-556642440001", Name: "Consumer Two", Email: "consumer.two@example.com", PhoneNumber: "+919876543211"},
	{ConsumerID: "123e4567-e89b-42d3-a456-556642440002", Name: "Consumer Three", Email: "consumer.three@example.com", PhoneNumber: "+919876543212"},
}

// SeedConsumers 插入演示用消费者，已存在则跳过
func SeedConsumers(db *gorm.DB) error {
	for _, c := range demoConsumers {
		consumer := c
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&consumer).Error; err != nil {
			return err
		}
	}

	var count int64
	db.Model(&model.Consumer{}).Count(&count)
	log.Printf("Seed completed, %d consumers present", count)
	return nil
}
