package coordinator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/keyfleet/internal/keyspace"
)

func TestBuildPayload(t *testing.T) {
	cfg := testConfig()
	cfg.Notify = map[string]string{
		"telegram_chat_id":   "42",
		"telegram_bot_token": "secret",
	}

	iv, err := keyspace.ParseInterval("0x20000000000000000", "0x27fffffffffffffff")
	require.NoError(t, err)

	payload := BuildPayload(cfg, "worker-1", iv)
	lines := strings.Split(strings.TrimSpace(payload), "\n")

	assert.Equal(t, "# generated for worker-1", lines[0])
	assert.Contains(t, lines, "start=0x20000000000000000")
	assert.Contains(t, lines, "end=0x27fffffffffffffff")
	assert.Contains(t, lines, "mode=smart")
	assert.Contains(t, lines, "cores=0")
	assert.Contains(t, lines, "stop_on_find=true")
	assert.Contains(t, lines, "baby_steps=true")
	assert.Contains(t, lines, "giant_steps=true")
	assert.Contains(t, lines, "bloom_filter=false")
	assert.Contains(t, lines, "smart_jump=true")

	// Passthrough pairs come last, sorted by key.
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "telegram_bot_token=secret", lines[len(lines)-2])
	assert.Equal(t, "telegram_chat_id=42", lines[len(lines)-1])
}

func TestBuildPayload_NoPassthrough(t *testing.T) {
	cfg := testConfig()
	iv, err := keyspace.ParseInterval("0x1", "0x10")
	require.NoError(t, err)

	payload := BuildPayload(cfg, "w", iv)
	assert.NotContains(t, payload, "telegram")
	assert.Contains(t, payload, "start=0x1\n")
	assert.Contains(t, payload, "end=0x10\n")
}
