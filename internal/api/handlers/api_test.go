package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/api/handlers"
	"github.com/mathi4s/gatehouse/internal/api/routes"
	"github.com/mathi4s/gatehouse/internal/config"
	"github.com/mathi4s/gatehouse/internal/models"
)

const testAdminToken = "test-admin-token"

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := handlers.OpenTestDB(t)

	cfg := config.Config{
		Environment: "test",
		SiteURL:     "https://example.com",
		AdminToken:  testAdminToken,
		JWTSecret:   "test-secret",
	}
	cfg.Admission.NotifyCooldown = 15 * time.Minute

	router := gin.New()
	require.NoError(t, routes.Register(router, db, cfg, routes.Deps{}))
	return router, db
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestAdmissionCheck_AllowsThenRateLimits(t *testing.T) {
	router, _ := setupTestRouter(t)

	// Normal newsletter budget is 3 per hour per client.
	for i := 0; i < 3; i++ {
		w := doJSON(router, http.MethodPost, "/api/v1/admission/check", gin.H{"action": "newsletter"}, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"allowed":true`)
	}

	w := doJSON(router, http.MethodPost, "/api/v1/admission/check", gin.H{"action": "newsletter"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"rateLimited":true`)
	assert.Contains(t, w.Body.String(), "retryAfterMinutes")
}

func TestAdmissionCheck_BlockedIP(t *testing.T) {
	router, db := setupTestRouter(t)
	require.NoError(t, db.Create(&models.BlockedIP{
		UUID: "b1", IP: "192.0.2.1", Reason: "abuse", BlockedAt: time.Now(),
	}).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admission/check",
		bytes.NewBufferString(`{"action":"contact"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"blocked":true`)
	assert.Contains(t, w.Body.String(), "appealUrl")
}

func TestAdmissionCheck_BadRequests(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/admission/check", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/admission/check", gin.H{"action": "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown action")
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/admin/appeals", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/admin/appeals", nil,
		map[string]string{"Authorization": "Bearer wrong-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/admin/appeals", nil, adminHeaders())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAppealSubmit_NoRestriction(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/appeals",
		gin.H{"email": "me@example.com", "reason": "please"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAppealFlow_SubmitAndResolve(t *testing.T) {
	router, db := setupTestRouter(t)
	require.NoError(t, db.Create(&models.User{
		UUID: "u1", Email: "sus@example.com", Status: models.UserStatusSuspended,
	}).Error)

	w := doJSON(router, http.MethodPost, "/api/v1/appeals",
		gin.H{"email": "sus@example.com", "reason": "I was hacked"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var appeal models.Appeal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &appeal))
	assert.Equal(t, models.RestrictionAccountSuspend, appeal.RestrictionType)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/appeals/"+appeal.UUID+"/resolve",
		gin.H{"verdict": "Approved", "admin_notes": "ok"}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "sus@example.com").First(&user).Error)
	assert.Equal(t, models.UserStatusActive, user.Status)
}

func TestNewsletterSubscribeAndConfirm(t *testing.T) {
	router, db := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/newsletter/subscribe",
		gin.H{"email": "reader@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sub models.Subscriber
	require.NoError(t, db.Where("email = ?", "reader@example.com").First(&sub).Error)
	assert.Equal(t, models.SubscriberPending, sub.Status)

	w = doJSON(router, http.MethodGet, "/api/v1/newsletter/confirm?token="+sub.ConfirmToken, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.Where("email = ?", "reader@example.com").First(&sub).Error)
	assert.Equal(t, models.SubscriberActive, sub.Status)
}

func TestNewsletterSubscribe_InvalidEmail(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/newsletter/subscribe",
		gin.H{"email": "nope"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountRegisterLoginMe(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/account/register",
		gin.H{"email": "a@example.com", "name": "A", "password": "longpassword"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/account/login",
		gin.H{"email": "a@example.com", "password": "longpassword"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Token)

	w = doJSON(router, http.MethodGet, "/api/v1/account/me", nil,
		map[string]string{"Authorization": "Bearer " + loginResp.Token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@example.com")

	w = doJSON(router, http.MethodGet, "/api/v1/account/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccountLogin_SuspendedGetsAppealURL(t *testing.T) {
	router, db := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/account/register",
		gin.H{"email": "sus@example.com", "name": "S", "password": "longpassword"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, db.Model(&models.User{}).Where("email = ?", "sus@example.com").
		Update("status", models.UserStatusSuspended).Error)

	w = doJSON(router, http.MethodPost, "/api/v1/account/login",
		gin.H{"email": "sus@example.com", "password": "longpassword"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "appealUrl")
}

func TestAccountPasswordResetFlow(t *testing.T) {
	router, db := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/account/register",
		gin.H{"email": "r@example.com", "name": "R", "password": "oldpassword"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/account/password/forgot",
		gin.H{"email": "r@example.com"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Unknown addresses get the same answer.
	w = doJSON(router, http.MethodPost, "/api/v1/account/password/forgot",
		gin.H{"email": "ghost@example.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "r@example.com").First(&user).Error)
	require.NotEmpty(t, user.ResetToken)

	w = doJSON(router, http.MethodPost, "/api/v1/account/password/reset",
		gin.H{"token": user.ResetToken, "password": "newpassword"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/account/login",
		gin.H{"email": "r@example.com", "password": "newpassword"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewsletterBroadcast(t *testing.T) {
	router, db := setupTestRouter(t)
	require.NoError(t, db.Create(&models.Subscriber{
		UUID: "s1", Email: "a@example.com", Status: models.SubscriberActive, SubscribedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&models.Subscriber{
		UUID: "s2", Email: "b@example.com", Status: models.SubscriberPending, SubscribedAt: time.Now(),
	}).Error)

	w := doJSON(router, http.MethodPost, "/api/v1/admin/newsletter/send",
		gin.H{"subject": "Issue #1", "body": "<p>hello</p>"}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	// Only confirmed subscribers receive the issue.
	assert.Contains(t, w.Body.String(), `"recipients":1`)

	w = doJSON(router, http.MethodPost, "/api/v1/admin/newsletter/send",
		gin.H{"subject": "Issue #1"}, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDonationSession_WithoutGateway(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/donations/session",
		gin.H{"amount_cents": 2500}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestContactSubmit(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/contact",
		gin.H{"name": "A", "email": "a@example.com", "message": "hello"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/contact",
		gin.H{"name": "A", "email": "bad", "message": "hello"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsTrackAndStats(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/analytics/track",
		gin.H{"page": "/blog/", "session_id": "s1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tracked":true`)

	w = doJSON(router, http.MethodGet, "/api/v1/admin/analytics/pages", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/blog"`)
}

func TestModerationLedgerEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/admin/blocked-ips",
		gin.H{"ip": "203.0.113.7", "reason": "abuse"}, adminHeaders())
	require.Equal(t, http.StatusCreated, w.Code)

	var block models.BlockedIP
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &block))

	w = doJSON(router, http.MethodGet, "/api/v1/admin/blocked-ips", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "203.0.113.7")

	w = doJSON(router, http.MethodDelete, "/api/v1/admin/blocked-ips/"+block.UUID, nil, adminHeaders())
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/v1/admin/blocked-ips/"+block.UUID, nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVpnAlertReview_BlockWritesLedger(t *testing.T) {
	router, db := setupTestRouter(t)
	require.NoError(t, db.Create(&models.VpnAlert{
		UUID: "a1", IP: "198.51.100.9", Action: "newsletter",
		Status: models.VpnAlertOpen, Count: 3, Type: "vpn", Risk: "high",
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}).Error)

	w := doJSON(router, http.MethodPut, "/api/v1/admin/vpn-alerts/a1",
		gin.H{"status": "Blocked", "note": "repeat offender"}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	var block models.BlockedIP
	require.NoError(t, db.Where("ip = ?", "198.51.100.9").First(&block).Error)
	assert.Contains(t, block.Reason, "vpn")
}

func TestVpnAlertReview_BlockWithExpiry(t *testing.T) {
	router, db := setupTestRouter(t)
	require.NoError(t, db.Create(&models.VpnAlert{
		UUID: "a2", IP: "198.51.100.10", Action: "contact",
		Status: models.VpnAlertOpen, Count: 1, Type: "proxy", Risk: "medium",
		FirstSeen: time.Now(), LastSeen: time.Now(),
	}).Error)

	w := doJSON(router, http.MethodPut, "/api/v1/admin/vpn-alerts/a2",
		gin.H{"status": "Blocked", "expires_in_hours": 24}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	var block models.BlockedIP
	require.NoError(t, db.Where("ip = ?", "198.51.100.10").First(&block).Error)
	require.NotNil(t, block.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *block.ExpiresAt, time.Minute)
}

func TestSettingsEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPut, "/api/v1/admin/settings/analytics.tracking_enabled",
		gin.H{"value": "false", "type": "bool", "category": "analytics"}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/admin/settings/analytics.tracking_enabled", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"false"`)

	w = doJSON(router, http.MethodGet, "/api/v1/admin/settings/missing.key", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)
}
