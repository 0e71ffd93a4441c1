package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signPayload(t *testing.T, payload []byte, secret string, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestParseWebhook_CompletedSession(t *testing.T) {
	client := NewClient("sk_test", "whsec_test", "")
	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_123","amount_total":2500,"currency":"usd","customer_details":{"email":"donor@example.com"}}}}`)

	sess, err := client.ParseWebhook(payload, signPayload(t, payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "cs_123", sess.SessionID)
	assert.Equal(t, 25.0, sess.Amount)
	assert.Equal(t, "usd", sess.Currency)
	assert.Equal(t, "donor@example.com", sess.Email)
}

func TestParseWebhook_IgnoredEventType(t *testing.T) {
	client := NewClient("sk_test", "whsec_test", "")
	payload := []byte(`{"type":"payment_intent.created","data":{"object":{}}}`)

	sess, err := client.ParseWebhook(payload, signPayload(t, payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestParseWebhook_BadSignature(t *testing.T) {
	client := NewClient("sk_test", "whsec_test", "")
	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_123"}}}`)

	_, err := client.ParseWebhook(payload, signPayload(t, payload, "wrong_secret", time.Now()))
	assert.Error(t, err)

	_, err = client.ParseWebhook(payload, "garbage")
	assert.Error(t, err)
}

func TestParseWebhook_StaleTimestamp(t *testing.T) {
	client := NewClient("sk_test", "whsec_test", "")
	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_123"}}}`)

	_, err := client.ParseWebhook(payload, signPayload(t, payload, "whsec_test", time.Now().Add(-10*time.Minute)))
	assert.Error(t, err)
}

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "2500", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		_, _ = w.Write([]byte(`{"id":"cs_456","url":"https://checkout.example.com/cs_456"}`))
	}))
	defer srv.Close()

	client := NewClient("sk_test", "whsec_test", srv.URL)
	sess, err := client.CreateSession(context.Background(), 2500, "usd", "https://site/thanks", "https://site/donate")
	require.NoError(t, err)
	assert.Equal(t, "cs_456", sess.ID)
	assert.Equal(t, "https://checkout.example.com/cs_456", sess.URL)
}
