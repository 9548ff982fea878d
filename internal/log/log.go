package log

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StartKey is the fiber Locals key holding the time.Time a request started.
// Lines written during that request report latency_ms from it.
const StartKey = "request_start"

type entry struct {
	TS        string         `json:"ts"`
	Level     string         `json:"level"`
	Action    string         `json:"action,omitempty"`
	ReqID     string         `json:"req_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Method    string         `json:"method,omitempty"`
	Path      string         `json:"path,omitempty"`
	Status    int            `json:"status,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Err       string         `json:"err,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Setup sends log lines to stdout and, when path is set, appends them to a
// file as well. The returned closer releases the file.
func Setup(path string) (io.Closer, error) {
	if path == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

// fromCtx copies the request details of c into e.
func (e *entry) fromCtx(c *fiber.Ctx) {
	e.IP = c.IP()
	e.Method = c.Method()
	e.Path = c.Path()
	e.Status = c.Response().StatusCode()
	if rid, ok := c.Locals("requestid").(string); ok {
		e.ReqID = rid
	}
	if uid, ok := c.Locals("user_id").(string); ok {
		e.UserID = uid
	}
	if start, ok := c.Locals(StartKey).(time.Time); ok {
		e.LatencyMs = time.Since(start).Milliseconds()
	}
}

func write(level string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	now := time.Now().UTC()
	e := entry{TS: now.Format(time.RFC3339), Level: level, Action: action, Fields: fields}
	if c != nil {
		e.fromCtx(c)
	}
	if err != nil {
		e.Err = err.Error()
	}
	b, merr := json.Marshal(e)
	if merr != nil {
		// fields carried something json cannot encode; keep the line.
		e.Fields = map[string]any{"unencodable": merr.Error()}
		b, _ = json.Marshal(e)
	}
	log.Println(string(b))
}

// c may be nil for log lines raised outside a request.
func Info(c *fiber.Ctx, action string, fields map[string]any) { write("info", c, action, nil, fields) }

// Audit records a state change made through the admin API.
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	write("audit", c, action, nil, fields)
}

// Security records rejected input and access failures.
func Security(c *fiber.Ctx, action string, fields map[string]any) {
	write("warn", c, action, nil, fields)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write("error", c, action, err, fields)
}
