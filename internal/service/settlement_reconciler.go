package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/lock"
	"marketplace_backend/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SettlementReconciler 定期推进停留在中间状态的结算记录，
// 使用与首次请求相同的幂等键重放钱包调用
type SettlementReconciler struct {
	Purchases *PurchaseService
	cfg       config.SettlementConfig
	cron      *cron.Cron
	now       func() time.Time
}

func NewSettlementReconciler(purchases *PurchaseService, cfg config.SettlementConfig) *SettlementReconciler {
	return &SettlementReconciler{
		Purchases: purchases,
		cfg:       cfg,
		cron:      cron.New(),
		now:       time.Now,
	}
}

func (r *SettlementReconciler) Start() error {
	_, err := r.cron.AddFunc(r.cfg.ReconcileSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			logger.Log.Error("Settlement reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid settlement.reconcile_spec %q: %w", r.cfg.ReconcileSpec, err)
	}
	r.cron.Start()
	logger.Log.Info("Settlement reconciler started", zap.String("spec", r.cfg.ReconcileSpec))
	return nil
}

// Stop 等待正在执行的任务结束
func (r *SettlementReconciler) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce 处理一批超过宽限期的记录，返回被推进的条数
func (r *SettlementReconciler) RunOnce(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.cfg.GracePeriod)
	list, err := r.Purchases.Settlements.FindRecoverable(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	progressed := 0
	for i := range list {
		if ctx.Err() != nil {
			return progressed, ctx.Err()
		}
		st := &list[i]
		ok, err := r.resume(ctx, st)
		if err != nil {
			logger.Log.Warn("Settlement still pending",
				zap.String("settlementId", st.ID),
				zap.String("status", string(st.Status)),
				zap.Int("attempts", st.Attempts),
				zap.Error(err))
		}
		if ok {
			progressed++
		}
	}
	return progressed, nil
}

func (r *SettlementReconciler) resume(ctx context.Context, st *model.Settlement) (bool, error) {
	p := r.Purchases
	release, err := p.Locker.Acquire(ctx, purchaseLockKey(st.ConsumerID, st.CourseID, st.BppID), p.lockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer release()

	if st.Attempts >= r.cfg.MaxAttempts {
		logger.Log.Error("Settlement exceeded max attempts, manual settlement required",
			zap.String("settlementId", st.ID),
			zap.String("kind", string(st.Kind)),
			zap.String("status", string(st.Status)),
			zap.String("consumerId", st.ConsumerID),
			zap.Int("credits", st.Credits),
			zap.String("lastError", st.LastError))
		return true, p.transition(ctx, st, model.SettlementFailed, "max attempts exceeded: "+st.LastError)
	}

	switch st.Status {
	case model.SettlementPendingDebit:
		if err := p.debit(ctx, st); err != nil {
			return false, err
		}
		return r.commit(ctx, st)
	case model.SettlementDebited:
		return r.commit(ctx, st)
	case model.SettlementCompensating:
		if err := p.refund(ctx, st); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// commit 重放落库；已有购买记录时 commit 内部已转入退款
func (r *SettlementReconciler) commit(ctx context.Context, st *model.Settlement) (bool, error) {
	_, err := r.Purchases.commit(ctx, st)
	if err == nil || errors.Is(err, util.ErrAlreadyPurchased) {
		return true, nil
	}
	return false, err
}
