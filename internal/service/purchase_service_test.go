package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"
	"marketplace_backend/pkg/monitoring"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseLocalCourse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	record, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)

	assert.Equal(t, model.CourseInProgress, record.Status)
	assert.Nil(t, record.BecknTransactionID)
	assert.Nil(t, record.BecknMessageID)
	require.NotNil(t, record.CourseInfo)
	assert.Equal(t, platformBpp, record.CourseInfo.BppID)
	assert.Equal(t, platformURI, record.CourseInfo.BppURI)
	require.NotNil(t, record.CourseInfo.CourseLink)
	assert.Equal(t, "https://learn.example.com/42", *record.CourseInfo.CourseLink)
	assert.Equal(t, int64(1), record.CourseInfo.NumberOfPurchases)

	assert.Equal(t, []string{"42/" + consumerID}, h.cm.purchases)
	assert.Empty(t, h.beckn.confirms)

	require.Len(t, h.wallet.debits, 1)
	debit := h.wallet.debits[0]
	assert.Equal(t, gateway.WalletTransfer{ProviderID: "p-1", Credits: 40, Description: "Purchased course Go in Practice"}, debit.transfer)
	assert.NotEmpty(t, debit.key)

	settlements := h.settlements(t)
	require.Len(t, settlements, 1)
	assert.Equal(t, model.SettlementCommitted, settlements[0].Status)
	assert.Equal(t, debit.key, settlements[0].IdempotencyKey)
	assert.Equal(t, h.cm.purchaseKeys[0], debit.key)
}

func TestPurchaseExternalCourseConfirmsThroughBAP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	record, err := h.purchases.Purchase(ctx, consumerID, externalCourse())
	require.NoError(t, err)

	require.Len(t, h.beckn.confirms, 1)
	assert.Equal(t, gateway.ConfirmRequest{
		ProviderID: "p-9",
		CourseID:   "ext-7",
		Amount:     30,
		BppID:      "partner.bpp",
		BppURI:     "https://partner.example.com",
		ApplicantProfile: gateway.ApplicantProfile{
			Name:  "Asha",
			Email: "asha@users.example.com",
			Phone: "+919876543210",
		},
	}, h.beckn.confirms[0])
	assert.Empty(t, h.cm.purchases)
	assert.Nil(t, record.CourseInfo.CourseLink)
	assert.Len(t, h.wallet.debits, 1)
}

func TestPurchaseExternalCourseRequiresBppURI(t *testing.T) {
	h := newHarness(t)
	in := externalCourse()
	in.BppURI = ""

	_, err := h.purchases.Purchase(context.Background(), consumerID, in)
	assert.ErrorIs(t, err, util.ErrMissingBppURI)
	assert.Empty(t, h.beckn.confirms)
	assert.Empty(t, h.wallet.debits)
}

func TestPurchaseWithInsufficientCreditsHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	h.wallet.credits = 39

	_, err := h.purchases.Purchase(context.Background(), consumerID, localCourse())
	assert.ErrorIs(t, err, util.ErrInsufficientCredits)
	assert.Equal(t, util.KindPreconditionFailed, util.KindOf(err))

	assert.Empty(t, h.cm.purchases)
	assert.Empty(t, h.wallet.debits)
	assert.Empty(t, h.settlements(t))
	assert.Zero(t, h.purchaseCount(t))
}

func TestPurchaseUnknownConsumer(t *testing.T) {
	h := newHarness(t)

	_, err := h.purchases.Purchase(context.Background(), "nobody", localCourse())
	assert.ErrorIs(t, err, util.ErrConsumerNotFound)
	assert.Empty(t, h.cm.purchases)
	assert.Empty(t, h.wallet.debits)
}

func TestDuplicatePurchaseIsRejectedBeforeAnyRemoteCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)

	_, err = h.purchases.Purchase(ctx, consumerID, localCourse())
	assert.ErrorIs(t, err, util.ErrAlreadyPurchased)
	assert.Len(t, h.cm.purchases, 1)
	assert.Len(t, h.wallet.debits, 1)
	assert.Equal(t, int64(1), h.purchaseCount(t))
}

func TestConcurrentPurchaseIsRejectedWhileLocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	release, err := h.locker.Acquire(ctx, purchaseLockKey(consumerID, "42", platformBpp), time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = h.purchases.Purchase(ctx, consumerID, localCourse())
	assert.ErrorIs(t, err, util.ErrPurchaseInProgress)
	assert.Empty(t, h.wallet.debits)
}

func TestSimultaneousPurchasesCreateOneRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.purchases.Purchase(ctx, consumerID, localCourse())
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, util.ErrAlreadyPurchased) || errors.Is(err, util.ErrPurchaseInProgress), err.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), h.purchaseCount(t))
	assert.Len(t, h.wallet.debits, 1)
	assert.Len(t, h.cm.purchases, 1)
}

func TestPurchaseOutcomeRouteFollowsBranch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	counter := func(route, outcome string) float64 {
		return promtest.ToFloat64(monitoring.PurchaseOutcomes.WithLabelValues(route, outcome))
	}
	local, external := counter("local", "ok"), counter("external", "ok")

	// 空白 bppId 归入平台，按本地课程处理
	in := localCourse()
	in.BppID = "  "
	_, err := h.purchases.Purchase(ctx, consumerID, in)
	require.NoError(t, err)
	assert.Empty(t, h.beckn.confirms)
	assert.Equal(t, local+1, counter("local", "ok"))
	assert.Equal(t, external, counter("external", "ok"))

	_, err = h.purchases.Purchase(ctx, consumerID, externalCourse())
	require.NoError(t, err)
	assert.Equal(t, external+1, counter("external", "ok"))

	// 外部 bppId 缺少 bppUri 时不会路由到任何一方
	invalidOutcome := util.KindOf(util.ErrMissingBppURI).String()
	invalid := counter("invalid", invalidOutcome)
	in = externalCourse()
	in.CourseID = "ext-8"
	in.BppURI = ""
	_, err = h.purchases.Purchase(ctx, consumerID, in)
	assert.ErrorIs(t, err, util.ErrMissingBppURI)
	assert.Equal(t, invalid+1, counter("invalid", invalidOutcome))
	assert.Equal(t, external+1, counter("external", "ok"))
}

func TestProviderFailureAbortsBeforeDebit(t *testing.T) {
	h := newHarness(t)
	h.cm.purchaseErr = rejectedErr(gateway.ServiceCourseManager)

	_, err := h.purchases.Purchase(context.Background(), consumerID, localCourse())
	assert.Equal(t, util.KindUpstreamRejected, util.KindOf(err))
	assert.Empty(t, h.wallet.debits)
	assert.Empty(t, h.settlements(t))
}

func TestRejectedDebitFailsSettlement(t *testing.T) {
	h := newHarness(t)
	h.wallet.debitErrs = []error{rejectedErr(gateway.ServiceWallet)}

	_, err := h.purchases.Purchase(context.Background(), consumerID, localCourse())
	assert.Equal(t, util.KindUpstreamRejected, util.KindOf(err))

	settlements := h.settlements(t)
	require.Len(t, settlements, 1)
	assert.Equal(t, model.SettlementFailed, settlements[0].Status)
	assert.Zero(t, h.purchaseCount(t))

	// 失败的扣款不阻止再次购买
	_, err = h.purchases.Purchase(context.Background(), consumerID, localCourse())
	require.NoError(t, err)
}

func TestTransientDebitIsReplayedByReconciler(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.wallet.debitErrs = []error{transientErr(gateway.ServiceWallet)}

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	assert.Equal(t, util.KindUpstreamUnavailable, util.KindOf(err))

	settlements := h.settlements(t)
	require.Len(t, settlements, 1)
	assert.Equal(t, model.SettlementPendingDebit, settlements[0].Status)
	assert.Equal(t, 1, settlements[0].Attempts)
	assert.Zero(t, h.purchaseCount(t))

	_, err = h.purchases.Purchase(ctx, consumerID, localCourse())
	assert.ErrorIs(t, err, util.ErrPurchaseInProgress)

	progressed, err := h.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, progressed)

	require.Len(t, h.wallet.debits, 2)
	assert.Equal(t, h.wallet.debits[0].key, h.wallet.debits[1].key)

	settlements = h.settlements(t)
	assert.Equal(t, model.SettlementCommitted, settlements[0].Status)
	assert.Equal(t, int64(1), h.purchaseCount(t))

	status, err := h.purchases.Status(ctx, consumerID, CourseKey{CourseID: "42"})
	require.NoError(t, err)
	assert.True(t, status.Purchased)
	require.NotNil(t, status.CourseLink)
	assert.Equal(t, "https://learn.example.com/42", *status.CourseLink)
}

func TestReconcilerRefundsWhenPurchaseAlreadyCommitted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)

	course, err := h.catalog.Find(ctx, CourseKey{CourseID: "42"})
	require.NoError(t, err)
	orphan := &model.Settlement{
		Kind:        model.SettlementDebit,
		Status:      model.SettlementDebited,
		ConsumerID:  consumerID,
		CourseID:    "42",
		BppID:       platformBpp,
		ProviderID:  "p-1",
		Credits:     40,
		Description: "Purchased course Go in Practice",
		Course:      course.Snapshot(),
	}
	require.NoError(t, h.purchases.Settlements.Create(ctx, orphan))

	progressed, err := h.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, progressed)

	require.Len(t, h.wallet.refunds, 1)
	assert.Equal(t, orphan.IdempotencyKey+":refund", h.wallet.refunds[0].key)
	assert.Equal(t, "Refund for course Go in Practice", h.wallet.refunds[0].transfer.Description)

	found, err := h.purchases.Settlements.FindByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementCommitted, found.Status)
	assert.Equal(t, int64(1), h.purchaseCount(t))
}

func TestReconcilerGivesUpAfterMaxAttempts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.wallet.debitErrs = []error{
		transientErr(gateway.ServiceWallet),
		transientErr(gateway.ServiceWallet),
		transientErr(gateway.ServiceWallet),
	}

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.Error(t, err)

	for i := 0; i < 2; i++ {
		progressed, err := h.reconciler.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, progressed)
	}
	assert.Equal(t, 3, h.settlements(t)[0].Attempts)

	progressed, err := h.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, progressed)
	assert.Equal(t, model.SettlementFailed, h.settlements(t)[0].Status)
	assert.Len(t, h.wallet.debits, 3)
}

func TestReconcilerSkipsLockedSettlements(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.wallet.debitErrs = []error{transientErr(gateway.ServiceWallet)}

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.Error(t, err)

	release, err := h.locker.Acquire(ctx, purchaseLockKey(consumerID, "42", platformBpp), time.Minute)
	require.NoError(t, err)
	progressed, err := h.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, progressed)
	assert.Len(t, h.wallet.debits, 1)
	release()
}

func TestReversePurchase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)

	result, err := h.purchases.Reverse(ctx, consumerID, CourseKey{CourseID: "42"})
	require.NoError(t, err)
	assert.Equal(t, model.SettlementCommitted, result.RefundStatus)
	assert.Zero(t, h.purchaseCount(t))

	require.Len(t, h.wallet.refunds, 1)
	assert.Equal(t, gateway.WalletTransfer{ProviderID: "p-1", Credits: 40, Description: "Refund for course Go in Practice"}, h.wallet.refunds[0].transfer)

	status, err := h.purchases.Status(ctx, consumerID, CourseKey{CourseID: "42"})
	require.NoError(t, err)
	assert.False(t, status.Purchased)
	assert.Nil(t, status.CourseLink)

	_, err = h.purchases.Reverse(ctx, consumerID, CourseKey{CourseID: "42"})
	assert.ErrorIs(t, err, util.ErrPurchaseNotFound)
	assert.Len(t, h.wallet.refunds, 1)
}

func TestReversePurchaseDefersTransientRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)
	h.wallet.refundErrs = []error{transientErr(gateway.ServiceWallet)}

	result, err := h.purchases.Reverse(ctx, consumerID, CourseKey{CourseID: "42"})
	require.NoError(t, err)
	assert.Equal(t, model.SettlementCompensating, result.RefundStatus)
	assert.Zero(t, h.purchaseCount(t))

	progressed, err := h.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, progressed)
	require.Len(t, h.wallet.refunds, 2)
	assert.Equal(t, h.wallet.refunds[0].key, h.wallet.refunds[1].key)

	found, err := h.purchases.Settlements.FindByID(ctx, result.SettlementID)
	require.NoError(t, err)
	assert.Equal(t, model.SettlementCommitted, found.Status)
}

func TestReversePurchaseFailsRejectedRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)
	h.wallet.refundErrs = []error{rejectedErr(gateway.ServiceWallet)}

	_, err = h.purchases.Reverse(ctx, consumerID, CourseKey{CourseID: "42"})
	assert.Equal(t, util.KindUpstreamRejected, util.KindOf(err))
	assert.Zero(t, h.purchaseCount(t))

	var refund model.Settlement
	require.NoError(t, h.db.Where("kind = ?", model.SettlementRefund).First(&refund).Error)
	assert.Equal(t, model.SettlementFailed, refund.Status)
	assert.NotEmpty(t, refund.LastError)

	// 终态记录不再由对账任务重试
	progressed, err := h.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, progressed)
	assert.Len(t, h.wallet.refunds, 1)
}

func TestReverseUnknownCourse(t *testing.T) {
	h := newHarness(t)

	_, err := h.purchases.Reverse(context.Background(), consumerID, CourseKey{CourseID: "missing"})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
	assert.Empty(t, h.wallet.refunds)
}

func TestConfirmPurchaseFillsCourseLinkAndBecknIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.purchases.Purchase(ctx, consumerID, externalCourse())
	require.NoError(t, err)

	txID, msgID := "tx-1", "msg-1"
	err = h.purchases.ConfirmPurchase(ctx, Confirmation{
		Email:         consumerMail,
		CourseID:      "ext-7",
		BppID:         "partner.bpp",
		CourseLink:    "https://partner.example.com/learn/ext-7",
		TransactionID: &txID,
		MessageID:     &msgID,
	})
	require.NoError(t, err)

	status, err := h.purchases.Status(ctx, consumerID, CourseKey{CourseID: "ext-7", BppID: "partner.bpp"})
	require.NoError(t, err)
	require.NotNil(t, status.CourseLink)
	assert.Equal(t, "https://partner.example.com/learn/ext-7", *status.CourseLink)

	record, err := h.purchases.Purchases.FindByCourseKey(ctx, consumerID, "ext-7", "partner.bpp")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", *record.BecknTransactionID)
	assert.Equal(t, "msg-1", *record.BecknMessageID)
}

func TestConfirmPurchaseWithoutPurchaseIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.purchases.ConfirmPurchase(ctx, Confirmation{Email: consumerMail, CourseID: "ext-7", BppID: "partner.bpp"})
	assert.ErrorIs(t, err, util.ErrCourseNotPurchased)

	err = h.purchases.ConfirmPurchase(ctx, Confirmation{Email: "ghost@example.com", CourseID: "ext-7"})
	assert.ErrorIs(t, err, util.ErrConsumerNotFound)
}
