package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/model"
	"marketplace_backend/internal/repository"
	"marketplace_backend/internal/testutil"
	"marketplace_backend/pkg/lock"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	platformBpp  = "compass.bpp.course_manager"
	platformURI  = "http://course-manager"
	consumerID   = "c-1"
	consumerMail = "one@example.com"
)

func transientErr(service string) error {
	return &gateway.UpstreamError{Service: service, StatusCode: 503, Message: "unavailable", Transient: true}
}

func rejectedErr(service string) error {
	return &gateway.UpstreamError{Service: service, StatusCode: 400, Message: "rejected"}
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

type walletCall struct {
	consumerID string
	transfer   gateway.WalletTransfer
	key        string
}

type fakeWallet struct {
	mu         sync.Mutex
	credits    int
	creditsErr error
	debitErrs  []error
	refundErrs []error
	debits     []walletCall
	refunds    []walletCall
}

func (f *fakeWallet) Credits(ctx context.Context, consumerID string) (int, error) {
	return f.credits, f.creditsErr
}

func (f *fakeWallet) Transactions(ctx context.Context, consumerID string) (json.RawMessage, error) {
	return json.RawMessage(`[{"transactionId":1,"credits":10,"type":"purchase"}]`), nil
}

func (f *fakeWallet) Debit(ctx context.Context, consumerID string, t gateway.WalletTransfer, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.debits = append(f.debits, walletCall{consumerID, t, key})
	return popErr(&f.debitErrs)
}

func (f *fakeWallet) Refund(ctx context.Context, consumerID string, t gateway.WalletTransfer, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunds = append(f.refunds, walletCall{consumerID, t, key})
	return popErr(&f.refundErrs)
}

type fakeCourseManager struct {
	mu           sync.Mutex
	link         string
	purchaseErr  error
	feedbackErr  error
	purchases    []string
	purchaseKeys []string
	feedback     map[string]int
}

func (f *fakeCourseManager) Purchase(ctx context.Context, courseID, consumerID, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchases = append(f.purchases, courseID+"/"+consumerID)
	f.purchaseKeys = append(f.purchaseKeys, key)
	return f.link, f.purchaseErr
}

func (f *fakeCourseManager) SubmitFeedback(ctx context.Context, courseID, consumerID string, rating int) error {
	if f.feedback == nil {
		f.feedback = map[string]int{}
	}
	f.feedback[courseID+"/"+consumerID] = rating
	return f.feedbackErr
}

func (f *fakeCourseManager) Course(ctx context.Context, courseID string) (json.RawMessage, error) {
	return json.RawMessage(`{"courseId":"` + courseID + `"}`), nil
}

func (f *fakeCourseManager) Search(ctx context.Context, text string) (json.RawMessage, error) {
	return json.RawMessage(`[{"courseId":"42"}]`), nil
}

func (f *fakeCourseManager) Popular(ctx context.Context, limit, offset int) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

type fakeBeckn struct {
	confirmErr  error
	rateErr     error
	confirms    []gateway.ConfirmRequest
	confirmKeys []string
	ratings     []gateway.RatingRequest
}

func (f *fakeBeckn) Confirm(ctx context.Context, req gateway.ConfirmRequest, key string) error {
	f.confirms = append(f.confirms, req)
	f.confirmKeys = append(f.confirmKeys, key)
	return f.confirmErr
}

func (f *fakeBeckn) Rate(ctx context.Context, req gateway.RatingRequest) error {
	f.ratings = append(f.ratings, req)
	return f.rateErr
}

func (f *fakeBeckn) Search(ctx context.Context, text string) (string, error) {
	return "msg-1", nil
}

func (f *fakeBeckn) Poll(ctx context.Context, messageID string) (json.RawMessage, error) {
	return json.RawMessage(`{"courses":[]}`), nil
}

type fakeUsers struct {
	profile       *gateway.UserProfile
	profileErr    error
	competencies  map[string]int
	competencyErr error
}

func (f *fakeUsers) Profile(ctx context.Context, consumerID string) (*gateway.UserProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeUsers) CompetencyIDs(ctx context.Context) (map[string]int, error) {
	if f.competencyErr != nil {
		return nil, f.competencyErr
	}
	return f.competencies, nil
}

type fakeCredential struct {
	id       string
	err      error
	requests []gateway.IssueRequest
}

func (f *fakeCredential) Issue(ctx context.Context, req gateway.IssueRequest, key string) (*gateway.IssuedCredential, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.IssuedCredential{ID: f.id, Raw: json.RawMessage(`{"credential":{"id":"` + f.id + `"}}`)}, nil
}

type fakePassbook struct {
	errs        []error
	assessments []gateway.Assessment
}

func (f *fakePassbook) AddAssessment(ctx context.Context, a gateway.Assessment) error {
	f.assessments = append(f.assessments, a)
	return popErr(&f.errs)
}

type fakeRequests struct {
	created []gateway.CreditRequest
}

func (f *fakeRequests) Create(ctx context.Context, req gateway.CreditRequest) (json.RawMessage, error) {
	f.created = append(f.created, req)
	return json.RawMessage(`{"requestId":"r-1"}`), nil
}

type harness struct {
	db     *gorm.DB
	locker *lock.MemoryLocker

	wallet     *fakeWallet
	cm         *fakeCourseManager
	beckn      *fakeBeckn
	users      *fakeUsers
	credential *fakeCredential
	passbook   *fakePassbook
	requests   *fakeRequests

	catalog       *CatalogService
	consumers     *ConsumerService
	purchases     *PurchaseService
	completion    *CompletionService
	feedback      *FeedbackService
	notifications *NotificationService
	reconciler    *SettlementReconciler
	archiveDir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		db:         testutil.NewDB(t),
		locker:     lock.NewMemoryLocker(),
		wallet:     &fakeWallet{credits: 100},
		cm:         &fakeCourseManager{link: "https://learn.example.com/42"},
		beckn:      &fakeBeckn{},
		users:      &fakeUsers{profile: &gateway.UserProfile{Name: "Asha", UserName: "asha", Email: "asha@users.example.com"}},
		credential: &fakeCredential{id: "did:cred:1"},
		passbook:   &fakePassbook{},
		requests:   &fakeRequests{},
		archiveDir: t.TempDir(),
	}

	consumerRepo := repository.NewConsumerRepository(h.db)
	courseRepo := repository.NewCourseInfoRepository(h.db)
	savedRepo := repository.NewSavedCourseRepository(h.db)
	purchaseRepo := repository.NewPurchaseRepository(h.db)
	settlementRepo := repository.NewSettlementRepository(h.db)
	notificationRepo := repository.NewNotificationRepository(h.db)

	h.catalog = NewCatalogService(courseRepo, h.cm, h.beckn, platformBpp, platformURI)
	h.consumers = NewConsumerService(consumerRepo, savedRepo, purchaseRepo, h.catalog, h.wallet, h.users, h.requests)
	h.purchases = NewPurchaseService(h.db, consumerRepo, h.catalog, purchaseRepo, settlementRepo,
		h.wallet, h.cm, h.beckn, h.users, h.locker, time.Minute)
	archive := &ArchiveService{Provider: &LocalArchiveProvider{Config: &config.StorageConfig{LocalPath: h.archiveDir}}}
	h.completion = NewCompletionService(consumerRepo, h.catalog, purchaseRepo, h.users, h.credential, archive, config.CredentialConfig{
		IssuerDID:     "did:issuer:1",
		SchemaDID:     "did:schema:1",
		SchemaVersion: "1.0",
		ValidityYears: 10,
	})
	h.feedback = NewFeedbackService(h.catalog, purchaseRepo, h.beckn, h.cm, h.users, h.passbook)
	h.notifications = NewNotificationService(notificationRepo, consumerRepo)
	h.reconciler = NewSettlementReconciler(h.purchases, config.SettlementConfig{
		ReconcileSpec: "@every 1m",
		MaxAttempts:   3,
		GracePeriod:   time.Minute,
		BatchSize:     10,
	})
	h.reconciler.now = func() time.Time { return time.Now().Add(time.Hour) }

	require.NoError(t, consumerRepo.Create(context.Background(), &model.Consumer{
		ConsumerID:  consumerID,
		Name:        "Consumer One",
		Email:       consumerMail,
		PhoneNumber: "+919876543210",
	}))
	return h
}

func localCourse() CourseInput {
	return CourseInput{
		CourseID:     "42",
		Title:        "Go in Practice",
		Description:  "Idiomatic Go",
		Credits:      40,
		Language:     []string{"en"},
		ProviderID:   "p-1",
		ProviderName: "Compass",
		Competency: model.Competency{
			"Testing":     {model.NumericLevel(2)},
			"Concurrency": {model.NumericLevel(1), model.SymbolicLevel("advanced")},
		},
	}
}

func externalCourse() CourseInput {
	return CourseInput{
		CourseID:   "ext-7",
		BppID:      "partner.bpp",
		BppURI:     "https://partner.example.com",
		Title:      "Distributed Systems",
		Credits:    30,
		ProviderID: "p-9",
	}
}

func (h *harness) settlements(t *testing.T) []model.Settlement {
	t.Helper()
	var list []model.Settlement
	require.NoError(t, h.db.Order("created_at ASC").Find(&list).Error)
	return list
}

func (h *harness) purchaseCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.db.Model(&model.PurchaseRecord{}).Count(&count).Error)
	return count
}
