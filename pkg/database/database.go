package database

import (
	"fmt"
	"log"
	"marketplace_backend/internal/config"
	"marketplace_backend/internal/model"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}

	// TranslateError: 唯一索引冲突统一转换为 gorm.ErrDuplicatedKey
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
	return db, nil
}

// Migrate 创建/更新所有表及唯一索引
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Consumer{},
		&model.CourseInfo{},
		&model.SavedCourse{},
		&model.PurchaseRecord{},
		&model.Notification{},
		&model.Settlement{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}
