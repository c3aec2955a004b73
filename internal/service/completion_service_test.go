package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketplace_backend/internal/gateway"
	"marketplace_backend/internal/model"
	"marketplace_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteCourseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)

	record, err := h.completion.Complete(ctx, consumerID, CourseKey{CourseID: "42"})
	require.NoError(t, err)
	assert.Equal(t, model.CourseCompleted, record.Status)
	require.NotNil(t, record.CompletedAt)
	first := *record.CompletedAt

	record, err = h.completion.Complete(ctx, consumerID, CourseKey{CourseID: "42"})
	require.NoError(t, err)
	assert.Equal(t, model.CourseCompleted, record.Status)
	assert.True(t, first.Equal(*record.CompletedAt))
}

func TestCompleteCourseRequiresSubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.completion.Complete(ctx, consumerID, CourseKey{CourseID: "42"})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, err = h.catalog.Upsert(ctx, &model.CourseInfo{CourseID: "42", BppID: platformBpp, Title: "Go"})
	require.NoError(t, err)
	_, err = h.completion.Complete(ctx, consumerID, CourseKey{CourseID: "42"})
	assert.ErrorIs(t, err, util.ErrNotSubscribed)

	_, err = h.completion.Complete(ctx, "nobody", CourseKey{CourseID: "42"})
	assert.ErrorIs(t, err, util.ErrConsumerNotFound)
}

func TestCompleteOnConfirmIssuesCredentialOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.completion.now = func() time.Time { return now }

	_, err := h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)

	confirmation := Confirmation{Email: consumerMail, CourseID: "42"}
	record, err := h.completion.CompleteOnConfirm(ctx, confirmation)
	require.NoError(t, err)
	assert.Equal(t, model.CourseCompleted, record.Status)
	require.NotNil(t, record.CertificateCredentialID)
	assert.Equal(t, "did:cred:1", *record.CertificateCredentialID)

	require.Len(t, h.credential.requests, 1)
	req := h.credential.requests[0]
	assert.Equal(t, "did:issuer:1", req.Credential.Issuer)
	assert.Equal(t, "did:schema:1", req.CredentialSchemaID)
	assert.Equal(t, "1.0", req.CredentialSchemaVersion)
	assert.Equal(t, []string{"courseCompletionCredential"}, req.Tags)
	assert.Equal(t, "2036-03-01T10:00:00Z", req.Credential.ExpirationDate)
	assert.Equal(t, "Go in Practice", req.Credential.CredentialSubject.CourseName)
	assert.Equal(t, "Compass", req.Credential.CredentialSubject.CourseProvider)
	assert.Equal(t, "asha", req.Credential.CredentialSubject.Username)
	assert.Equal(t, "2026-03-01T10:00:00Z", req.Credential.CredentialSubject.CourseCompletionDate)

	archived, err := os.ReadFile(filepath.Join(h.archiveDir, "credentials", consumerID, "did_cred_1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"credential":{"id":"did:cred:1"}}`, string(archived))

	_, err = h.completion.CompleteOnConfirm(ctx, confirmation)
	require.NoError(t, err)
	assert.Len(t, h.credential.requests, 1)
}

func TestCompleteOnConfirmFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.completion.CompleteOnConfirm(ctx, Confirmation{Email: "ghost@example.com", CourseID: "42"})
	assert.ErrorIs(t, err, util.ErrConsumerNotFound)

	_, err = h.catalog.Upsert(ctx, &model.CourseInfo{CourseID: "42", BppID: platformBpp, Title: "Go"})
	require.NoError(t, err)
	_, err = h.completion.CompleteOnConfirm(ctx, Confirmation{Email: consumerMail, CourseID: "42"})
	assert.ErrorIs(t, err, util.ErrCourseNotPurchased)
	assert.Empty(t, h.credential.requests)

	_, err = h.purchases.Purchase(ctx, consumerID, localCourse())
	require.NoError(t, err)
	h.credential.err = rejectedErr(gateway.ServiceCredential)
	_, err = h.completion.CompleteOnConfirm(ctx, Confirmation{Email: consumerMail, CourseID: "42"})
	assert.Equal(t, util.KindUpstreamRejected, util.KindOf(err))

	record, err := h.purchases.Purchases.FindByCourseKey(ctx, consumerID, "42", platformBpp)
	require.NoError(t, err)
	assert.Equal(t, model.CourseInProgress, record.Status)
}
