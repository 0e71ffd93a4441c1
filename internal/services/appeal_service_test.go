package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/models"
)

func setupAppealTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Appeal{}, &models.BlockedIP{}, &models.User{}))
	return db
}

func blockIP(t *testing.T, db *gorm.DB, ip string) {
	t.Helper()
	require.NoError(t, db.Create(&models.BlockedIP{UUID: "b-" + ip, IP: ip, Reason: "test", BlockedAt: time.Now()}).Error)
}

func TestAppealService_SubmitWithoutRestriction(t *testing.T) {
	svc := NewAppealService(setupAppealTestDB(t))

	_, err := svc.Submit(context.Background(), "1.2.3.4", "who@example.com", "please", "ua")
	assert.ErrorIs(t, err, ErrNoRestriction)
}

func TestAppealService_SubmitForBlockedIP(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.2.3.4")

	appeal, err := svc.Submit(context.Background(), "1.2.3.4", "me@example.com", "it wasn't me", "ua")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictionIPBlock, appeal.RestrictionType)
	assert.Equal(t, models.AppealStatusPending, appeal.Status)
	assert.Equal(t, 1, appeal.TimesAppealed)
}

func TestAppealService_ExpiredBlockDoesNotQualify(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&models.BlockedIP{UUID: "b1", IP: "1.2.3.4", BlockedAt: past.Add(-time.Hour), ExpiresAt: &past}).Error)

	_, err := svc.Submit(context.Background(), "1.2.3.4", "", "please", "ua")
	assert.ErrorIs(t, err, ErrNoRestriction)
}

func TestAppealService_SubmitForSuspendedAccount(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	require.NoError(t, db.Create(&models.User{UUID: "u1", Email: "sus@example.com", Status: models.UserStatusSuspended}).Error)

	appeal, err := svc.Submit(context.Background(), "8.8.8.8", "sus@example.com", "reinstate me", "ua")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictionAccountSuspend, appeal.RestrictionType)
}

func TestAppealService_OnePendingPerSubject(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.2.3.4")

	_, err := svc.Submit(context.Background(), "1.2.3.4", "me@example.com", "first", "ua")
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "1.2.3.4", "me@example.com", "second", "ua")
	assert.ErrorIs(t, err, ErrAppealPending)
}

func TestAppealService_SubjectsAreIndependent(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.1.1.1")
	blockIP(t, db, "2.2.2.2")
	ctx := context.Background()

	// Neither appellant supplies an email; a pending appeal for one IP must
	// not bar the other.
	first, err := svc.Submit(ctx, "1.1.1.1", "", "first subject", "ua")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusPending, first.Status)

	second, err := svc.Submit(ctx, "2.2.2.2", "", "second subject", "ua")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusPending, second.Status)
	assert.Equal(t, 1, second.TimesAppealed)
}

func TestAppealService_AccountHistoryKeyedByEmail(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.1.1.1")
	require.NoError(t, db.Create(&models.User{UUID: "u1", Email: "sus@example.com", Status: models.UserStatusSuspended}).Error)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "1.1.1.1", "", "ip dispute", "ua")
	require.NoError(t, err)

	// The account appeal is keyed by email, so the pending IP appeal from an
	// unrelated subject does not count against it.
	appeal, err := svc.Submit(ctx, "8.8.8.8", "sus@example.com", "account dispute", "ua")
	require.NoError(t, err)
	assert.Equal(t, models.RestrictionAccountSuspend, appeal.RestrictionType)
	assert.Equal(t, 1, appeal.TimesAppealed)
}

func TestAppealService_ReappealAfterDenial(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.2.3.4")
	ctx := context.Background()

	first, err := svc.Submit(ctx, "1.2.3.4", "me@example.com", "first", "ua")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, first.UUID, models.AppealStatusDenied, "no")
	require.NoError(t, err)

	second, err := svc.Submit(ctx, "1.2.3.4", "me@example.com", "second try", "ua")
	require.NoError(t, err)
	assert.Equal(t, 2, second.TimesAppealed)
	assert.Equal(t, models.AppealStatusDenied, second.PreviousStatus)
}

func TestAppealService_ApproveAccountAppealReinstates(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.User{UUID: "u1", Email: "sus@example.com", Status: models.UserStatusSuspended}).Error)

	appeal, err := svc.Submit(ctx, "8.8.8.8", "sus@example.com", "please", "ua")
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, appeal.UUID, models.AppealStatusApproved, "checks out")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusApproved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	var user models.User
	require.NoError(t, db.Where("email = ?", "sus@example.com").First(&user).Error)
	assert.Equal(t, models.UserStatusActive, user.Status)
}

func TestAppealService_ApproveIPAppealKeepsBlock(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.2.3.4")
	ctx := context.Background()

	appeal, err := svc.Submit(ctx, "1.2.3.4", "me@example.com", "please", "ua")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, appeal.UUID, models.AppealStatusApproved, "ok")
	require.NoError(t, err)

	// The block stays: lifting it is a separate admin action.
	var count int64
	require.NoError(t, db.Model(&models.BlockedIP{}).Where("ip = ?", "1.2.3.4").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAppealService_ResolveValidation(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.2.3.4")
	ctx := context.Background()

	appeal, err := svc.Submit(ctx, "1.2.3.4", "", "please", "ua")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, appeal.UUID, models.AppealStatus("Maybe"), "")
	assert.ErrorIs(t, err, ErrInvalidVerdict)

	_, err = svc.Resolve(ctx, "no-such-id", models.AppealStatusDenied, "")
	assert.ErrorIs(t, err, ErrAppealNotFound)

	_, err = svc.Resolve(ctx, appeal.UUID, models.AppealStatusDenied, "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, appeal.UUID, models.AppealStatusApproved, "")
	assert.ErrorIs(t, err, ErrAppealResolved)
}

func TestAppealService_Stats(t *testing.T) {
	db := setupAppealTestDB(t)
	svc := NewAppealService(db)
	blockIP(t, db, "1.2.3.4")
	ctx := context.Background()

	appeal, err := svc.Submit(ctx, "1.2.3.4", "", "please", "ua")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, appeal.UUID, models.AppealStatusDenied, "")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Denied)
	assert.Equal(t, int64(0), stats.Pending)
}
