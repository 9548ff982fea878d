package log_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "shopfront/internal/log"
	"shopfront/internal/metrics"
)

type logLine struct {
	Level     string         `json:"level"`
	Action    string         `json:"action"`
	ReqID     string         `json:"req_id"`
	UserID    string         `json:"user_id"`
	Method    string         `json:"method"`
	Path      string         `json:"path"`
	LatencyMs int64          `json:"latency_ms"`
	Err       string         `json:"err"`
	Fields    map[string]any `json:"fields"`
}

func captureLines(t *testing.T, fn func()) []logLine {
	t.Helper()
	var buf bytes.Buffer
	oldW, oldFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	var out []logLine
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l logLine
		require.NoError(t, json.Unmarshal([]byte(raw), &l), raw)
		out = append(out, l)
	}
	return out
}

func TestLinesCarryRequestDetailsAndLatency(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(metrics.Middleware())
	app.Post("/things", func(c *fiber.Ctx) error {
		c.Locals("user_id", "u-1")
		time.Sleep(5 * time.Millisecond)
		applog.Audit(c, "things.create", map[string]any{"id": "t-1"})
		return c.SendStatus(fiber.StatusCreated)
	})

	lines := captureLines(t, func() {
		resp, err := app.Test(httptest.NewRequest("POST", "/things", nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	})

	require.Len(t, lines, 1)
	l := lines[0]
	assert.Equal(t, "audit", l.Level)
	assert.Equal(t, "things.create", l.Action)
	assert.Equal(t, "POST", l.Method)
	assert.Equal(t, "/things", l.Path)
	assert.Equal(t, "u-1", l.UserID)
	assert.NotEmpty(t, l.ReqID)
	assert.GreaterOrEqual(t, l.LatencyMs, int64(5))
	assert.Equal(t, "t-1", l.Fields["id"])
}

func TestLinesOutsideRequest(t *testing.T) {
	lines := captureLines(t, func() {
		applog.Info(nil, "server.start", map[string]any{"port": "8080"})
		applog.Error(nil, "db.open", errors.New("boom"), nil)
		applog.Info(nil, "odd", map[string]any{"ch": make(chan int)})
	})

	require.Len(t, lines, 3)
	assert.Equal(t, "info", lines[0].Level)
	assert.Zero(t, lines[0].LatencyMs)
	assert.Empty(t, lines[0].Path)
	assert.Equal(t, "error", lines[1].Level)
	assert.Equal(t, "boom", lines[1].Err)
	assert.Equal(t, "odd", lines[2].Action)
	assert.Contains(t, lines[2].Fields, "unencodable")
}
