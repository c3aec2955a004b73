// 手动触发一轮结算对账
//
// 对账已集成到主应用的定时任务中（settlement.reconcile_spec）。
// 此脚本仅用于手动处理积压，例如钱包服务长时间不可用恢复之后。
//
// 用法: go run scripts/reconcile_settlements.go

package main

import (
	"context"
	"log"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/service"
	"marketplace_backend/pkg/database"
	"marketplace_backend/pkg/lock"
	"marketplace_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			log.Fatalf("Redis 连接失败: %v", err)
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, "marketplace:lock:")
	}

	gw := gateway.New(cfg.Collaborators)
	consumers := repository.NewConsumerRepository(db)
	catalog := service.NewCatalogService(repository.NewCourseInfoRepository(db), gw.CourseManager, gw.BAP,
		cfg.Platform.BppID, cfg.Collaborators.CourseManagerURL)
	purchases := service.NewPurchaseService(db, consumers, catalog,
		repository.NewPurchaseRepository(db), repository.NewSettlementRepository(db),
		gw.Wallet, gw.CourseManager, gw.BAP, gw.User, locker, cfg.Settlement.LockTTL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	resolved, err := service.NewSettlementReconciler(purchases, cfg.Settlement).RunOnce(ctx)
	if err != nil {
		log.Fatalf("对账失败: %v", err)
	}
	log.Printf("对账完成，处理 %d 条结算记录", resolved)
}
