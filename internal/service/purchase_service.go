package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/model"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/lock"
	"marketplace_backend/pkg/logger"
	"marketplace_backend/pkg/monitoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Confirmation BPP 网络异步回调的订单确认
type Confirmation struct {
	Email         string  `json:"email" binding:"required,email"`
	CourseID      string  `json:"courseId" binding:"required"`
	BppID         string  `json:"bppId"`
	CourseLink    string  `json:"courseLink"`
	TransactionID *string `json:"transactionId"`
	MessageID     *string `json:"messageId"`
}

func (c Confirmation) CourseKey() CourseKey {
	return CourseKey{CourseID: c.CourseID, BppID: c.BppID}
}

type PurchaseStatus struct {
	Purchased  bool    `json:"purchased"`
	CourseLink *string `json:"courseLink"`
}

// ReversalResult 退款被对账任务接管时 RefundStatus 为 COMPENSATING
type ReversalResult struct {
	SettlementID string                 `json:"settlementId"`
	RefundStatus model.SettlementStatus `json:"refundStatus"`
}

type PurchaseService struct {
	DB            *gorm.DB
	Consumers     *repository.ConsumerRepository
	Catalog       *CatalogService
	Purchases     *repository.PurchaseRepository
	Settlements   *repository.SettlementRepository
	Wallet        Wallet
	CourseManager CourseManager
	Beckn         Beckn
	Users         UserDirectory
	Locker        lock.Locker

	lockTTL time.Duration
}

func NewPurchaseService(
	db *gorm.DB,
	consumers *repository.ConsumerRepository,
	catalog *CatalogService,
	purchases *repository.PurchaseRepository,
	settlements *repository.SettlementRepository,
	wallet Wallet,
	courseManager CourseManager,
	beckn Beckn,
	users UserDirectory,
	locker lock.Locker,
	lockTTL time.Duration,
) *PurchaseService {
	return &PurchaseService{
		DB:            db,
		Consumers:     consumers,
		Catalog:       catalog,
		Purchases:     purchases,
		Settlements:   settlements,
		Wallet:        wallet,
		CourseManager: courseManager,
		Beckn:         beckn,
		Users:         users,
		Locker:        locker,
		lockTTL:       lockTTL,
	}
}

func purchaseLockKey(consumerID, courseID, bppID string) string {
	return fmt.Sprintf("purchase:%s:%s:%s", consumerID, courseID, bppID)
}

func (s *PurchaseService) acquire(ctx context.Context, consumerID, courseID, bppID string) (func(), error) {
	release, err := s.Locker.Acquire(ctx, purchaseLockKey(consumerID, courseID, bppID), s.lockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return nil, util.ErrPurchaseInProgress
	}
	return release, err
}

// Purchase 购买课程：本地校验 -> 课程提供方登记 -> 钱包扣款 -> 本地落库。
// 扣款通过结算记录跟踪，失败的中间状态由对账任务推进
func (s *PurchaseService) Purchase(ctx context.Context, consumerID string, in CourseInput) (*model.PurchaseRecord, error) {
	record, err := s.purchase(ctx, consumerID, in)
	outcome := "ok"
	if err != nil {
		outcome = util.KindOf(err).String()
	}
	monitoring.PurchaseOutcomes.WithLabelValues(s.routeOf(in), outcome).Inc()
	return record, err
}

// routeOf 与 purchase 中的分支判断一致；课程信息不合法时为 invalid
func (s *PurchaseService) routeOf(in CourseInput) string {
	course, err := s.Catalog.Normalize(in)
	if err != nil {
		return "invalid"
	}
	if s.Catalog.IsExternal(course) {
		return "external"
	}
	return "local"
}

func (s *PurchaseService) purchase(ctx context.Context, consumerID string, in CourseInput) (*model.PurchaseRecord, error) {
	consumer, err := s.Consumers.FindByID(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	course, err := s.Catalog.Normalize(in)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, consumerID, course.CourseID, course.BppID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.ensureNotPurchased(ctx, consumerID, course); err != nil {
		return nil, err
	}

	credits, err := s.Wallet.Credits(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	if credits < course.Credits {
		return nil, util.ErrInsufficientCredits
	}

	key := uuid.New().String()
	if s.Catalog.IsExternal(course) {
		profile, err := s.Users.Profile(ctx, consumerID)
		if err != nil {
			return nil, err
		}
		err = s.Beckn.Confirm(ctx, gateway.ConfirmRequest{
			ProviderID: course.ProviderID,
			CourseID:   course.CourseID,
			Amount:     course.Credits,
			BppID:      course.BppID,
			BppURI:     course.BppURI,
			ApplicantProfile: gateway.ApplicantProfile{
				Name:  profile.Name,
				Email: profile.Email,
				Phone: consumer.PhoneNumber,
			},
		}, key)
		if err != nil {
			return nil, err
		}
	} else {
		link, err := s.CourseManager.Purchase(ctx, course.CourseID, consumerID, key)
		if err != nil {
			return nil, err
		}
		if link != "" {
			course.CourseLink = &link
		}
	}

	settlement := &model.Settlement{
		UUIDBase:       model.UUIDBase{ID: key},
		Kind:           model.SettlementDebit,
		Status:         model.SettlementPendingDebit,
		ConsumerID:     consumerID,
		CourseID:       course.CourseID,
		BppID:          course.BppID,
		ProviderID:     course.ProviderID,
		Credits:        course.Credits,
		Description:    "Purchased course " + course.Title,
		IdempotencyKey: key,
		Course:         course.Snapshot(),
	}
	if err := s.Settlements.Create(ctx, settlement); err != nil {
		return nil, err
	}
	monitoring.SettlementTransitions.WithLabelValues(string(settlement.Kind), string(settlement.Status)).Inc()

	if err := s.debit(ctx, settlement); err != nil {
		return nil, err
	}
	return s.commit(ctx, settlement)
}

func (s *PurchaseService) ensureNotPurchased(ctx context.Context, consumerID string, course *model.CourseInfo) error {
	_, err := s.Purchases.FindByCourseKey(ctx, consumerID, course.CourseID, course.BppID)
	if err == nil {
		return util.ErrAlreadyPurchased
	}
	if !errors.Is(err, util.ErrPurchaseNotFound) {
		return err
	}

	inFlight, err := s.Settlements.HasInFlightDebit(ctx, consumerID, course.CourseID, course.BppID)
	if err != nil {
		return err
	}
	if inFlight {
		return util.ErrPurchaseInProgress
	}
	return nil
}

func (s *PurchaseService) transition(ctx context.Context, st *model.Settlement, status model.SettlementStatus, lastError string) error {
	if err := s.Settlements.UpdateStatus(ctx, st, status, lastError); err != nil {
		return err
	}
	monitoring.SettlementTransitions.WithLabelValues(string(st.Kind), string(status)).Inc()
	return nil
}

// settlementFailure 远程调用失败：可重试的只记录尝试次数，其余直接终止
func (s *PurchaseService) settlementFailure(ctx context.Context, st *model.Settlement, cause error) error {
	if util.IsTransient(cause) {
		if err := s.Settlements.RecordAttempt(ctx, st, cause.Error()); err != nil {
			logger.Log.Error("Failed to record settlement attempt", zap.String("settlementId", st.ID), zap.Error(err))
		}
		return cause
	}
	if err := s.transition(ctx, st, model.SettlementFailed, cause.Error()); err != nil {
		logger.Log.Error("Failed to mark settlement failed", zap.String("settlementId", st.ID), zap.Error(err))
	}
	return cause
}

func (s *PurchaseService) debit(ctx context.Context, st *model.Settlement) error {
	err := s.Wallet.Debit(ctx, st.ConsumerID, gateway.WalletTransfer{
		ProviderID:  st.ProviderID,
		Credits:     st.Credits,
		Description: st.Description,
	}, st.IdempotencyKey)
	if err != nil {
		return s.settlementFailure(ctx, st, err)
	}
	return s.transition(ctx, st, model.SettlementDebited, "")
}

// commit 在一个事务中写入课程缓存与购买记录，并把结算记录标记为完成。
// 唯一索引冲突说明已有购买记录，此时转入退款
func (s *PurchaseService) commit(ctx context.Context, st *model.Settlement) (*model.PurchaseRecord, error) {
	var record *model.PurchaseRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		course, err := s.Catalog.Courses.WithTx(tx).Upsert(ctx, st.Course.CourseInfo())
		if err != nil {
			return err
		}
		record = &model.PurchaseRecord{
			ConsumerID:   st.ConsumerID,
			CourseInfoID: course.ID,
		}
		if err := s.Purchases.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		// 重新读取，使购买数包含刚写入的记录
		if record.CourseInfo, err = s.Catalog.Courses.WithTx(tx).FindByID(ctx, course.ID); err != nil {
			return err
		}
		return s.Settlements.WithTx(tx).UpdateStatus(ctx, st, model.SettlementCommitted, "")
	})

	switch {
	case err == nil:
		monitoring.SettlementTransitions.WithLabelValues(string(st.Kind), string(model.SettlementCommitted)).Inc()
		logger.Log.Info("Course purchased",
			zap.String("consumerId", st.ConsumerID),
			zap.String("courseId", st.CourseID),
			zap.String("bppId", st.BppID),
			zap.String("settlementId", st.ID))
		return record, nil
	case errors.Is(err, util.ErrAlreadyPurchased):
		logger.Log.Warn("Purchase record already exists after debit, refunding",
			zap.String("settlementId", st.ID),
			zap.String("consumerId", st.ConsumerID))
		if terr := s.transition(ctx, st, model.SettlementCompensating, err.Error()); terr != nil {
			return nil, terr
		}
		if rerr := s.refund(ctx, st); rerr != nil && !util.IsTransient(rerr) {
			return nil, rerr
		}
		return nil, util.ErrAlreadyPurchased
	default:
		if rerr := s.Settlements.RecordAttempt(ctx, st, err.Error()); rerr != nil {
			logger.Log.Error("Failed to record settlement attempt", zap.String("settlementId", st.ID), zap.Error(rerr))
		}
		return nil, err
	}
}

func (s *PurchaseService) refund(ctx context.Context, st *model.Settlement) error {
	err := s.Wallet.Refund(ctx, st.ConsumerID, gateway.WalletTransfer{
		ProviderID:  st.ProviderID,
		Credits:     st.Credits,
		Description: "Refund for course " + st.Course.Title,
	}, st.RefundKey())
	if err != nil {
		if !util.IsTransient(err) {
			logger.Log.Error("Refund rejected by wallet, manual settlement required",
				zap.String("settlementId", st.ID),
				zap.String("consumerId", st.ConsumerID),
				zap.Int("credits", st.Credits),
				zap.Error(err))
		}
		return s.settlementFailure(ctx, st, err)
	}
	return s.transition(ctx, st, model.SettlementCommitted, "")
}

// Reverse 撤销购买：删除购买记录并退款。退款暂时失败时记录保持 COMPENSATING，由对账任务重试
func (s *PurchaseService) Reverse(ctx context.Context, consumerID string, key CourseKey) (*ReversalResult, error) {
	if _, err := s.Consumers.FindByID(ctx, consumerID); err != nil {
		return nil, err
	}
	course, err := s.Catalog.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, consumerID, course.CourseID, course.BppID)
	if err != nil {
		return nil, err
	}
	defer release()

	settlement := &model.Settlement{
		Kind:        model.SettlementRefund,
		Status:      model.SettlementCompensating,
		ConsumerID:  consumerID,
		CourseID:    course.CourseID,
		BppID:       course.BppID,
		ProviderID:  course.ProviderID,
		Credits:     course.Credits,
		Description: "Refund for course " + course.Title,
		Course:      course.Snapshot(),
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Purchases.WithTx(tx).Delete(ctx, consumerID, course.ID); err != nil {
			return err
		}
		return s.Settlements.WithTx(tx).Create(ctx, settlement)
	})
	if err != nil {
		return nil, err
	}
	monitoring.SettlementTransitions.WithLabelValues(string(settlement.Kind), string(settlement.Status)).Inc()

	if err := s.refund(ctx, settlement); err != nil && !util.IsTransient(err) {
		return nil, err
	} else if err != nil {
		logger.Log.Warn("Refund deferred to reconciler",
			zap.String("settlementId", settlement.ID),
			zap.Error(err))
	}

	logger.Log.Info("Purchase reversed",
		zap.String("consumerId", consumerID),
		zap.String("courseId", course.CourseID),
		zap.String("refundStatus", string(settlement.Status)))
	return &ReversalResult{SettlementID: settlement.ID, RefundStatus: settlement.Status}, nil
}

func (s *PurchaseService) Status(ctx context.Context, consumerID string, key CourseKey) (*PurchaseStatus, error) {
	record, err := s.Purchases.FindByCourseKey(ctx, consumerID, key.CourseID, s.Catalog.resolveBpp(key.BppID))
	if errors.Is(err, util.ErrPurchaseNotFound) {
		return &PurchaseStatus{Purchased: false}, nil
	}
	if err != nil {
		return nil, err
	}

	status := &PurchaseStatus{Purchased: true}
	if record.CourseInfo != nil {
		status.CourseLink = record.CourseInfo.CourseLink
	}
	return status, nil
}

// ConfirmPurchase 外部订单确认后补写课程链接与 Beckn 关联 ID；
// 没有对应购买记录的确认被拒绝
func (s *PurchaseService) ConfirmPurchase(ctx context.Context, c Confirmation) error {
	consumer, err := s.Consumers.FindByEmail(ctx, c.Email)
	if err != nil {
		return err
	}
	key := c.CourseKey()
	record, err := s.Purchases.FindByCourseKey(ctx, consumer.ConsumerID, key.CourseID, s.Catalog.resolveBpp(key.BppID))
	if errors.Is(err, util.ErrPurchaseNotFound) {
		return util.ErrCourseNotPurchased
	}
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.CourseLink != "" {
			if err := s.Catalog.Courses.WithTx(tx).UpdateCourseLink(ctx, record.CourseInfoID, c.CourseLink); err != nil {
				return err
			}
		}
		return s.Purchases.WithTx(tx).SetBecknIDs(ctx, record.ID, c.TransactionID, c.MessageID)
	})
	if err != nil {
		return err
	}

	logger.Log.Info("External purchase confirmed",
		zap.String("consumerId", consumer.ConsumerID),
		zap.String("courseId", c.CourseID))
	return nil
}
