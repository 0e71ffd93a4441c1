package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWebhookURL(t *testing.T) {
	assert.Equal(t, "discord://token-abc_123@987654321",
		normalizeWebhookURL("https://discord.com/api/webhooks/987654321/token-abc_123"))
	assert.Equal(t, "discord://tok@123",
		normalizeWebhookURL("https://discordapp.com/api/webhooks/123/tok"))

	// Non-discord URLs pass through for shoutrrr to interpret.
	assert.Equal(t, "slack://tokenA/tokenB/tokenC",
		normalizeWebhookURL("slack://tokenA/tokenB/tokenC"))
}

func TestNotificationService_Disabled(t *testing.T) {
	svc := NewNotificationService("", "")
	assert.False(t, svc.Enabled())
	assert.Error(t, svc.Test())

	// Sends on a disabled service are silent no-ops.
	svc.NewSubscriber("reader@example.com")
	svc.IPBlocked("1.2.3.4", "spam", true)
}
