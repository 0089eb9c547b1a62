package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/evanschultz/stampla/internal/app"
	"github.com/evanschultz/stampla/internal/domain"
)

// stubTracker provides deterministic tracker responses for MCP tool tests.
type stubTracker struct {
	status      app.TimerStatus
	mealStatus  app.MealBreakStatus
	startEntry  domain.TimeEntry
	startErr    error
	stopEntry   domain.TimeEntry
	stopStopped bool
	tasks       []domain.Task
	created     domain.Task
	createErr   error
	archiveErr  error
	daily       app.DailyReport
	weekly      domain.WeekSummary
	counter     domain.ActivityCounter
	settings    domain.Settings
	audit       app.AuditData
	auditErr    error

	lastStartTaskID string
	lastCreateName  string
	lastSettingKey  string
}

func (s *stubTracker) Status() app.TimerStatus { return s.status }

func (s *stubTracker) CurrentMealBreak() app.MealBreakStatus { return s.mealStatus }

func (s *stubTracker) Tasks(includeArchived bool) []domain.Task {
	return append([]domain.Task(nil), s.tasks...)
}

func (s *stubTracker) Settings() domain.Settings { return s.settings }

func (s *stubTracker) StartTimer(_ context.Context, taskID string) (domain.TimeEntry, error) {
	s.lastStartTaskID = taskID
	if s.startErr != nil {
		return domain.TimeEntry{}, s.startErr
	}
	return s.startEntry, nil
}

func (s *stubTracker) StopTimer(context.Context) (domain.TimeEntry, bool, error) {
	return s.stopEntry, s.stopStopped, nil
}

func (s *stubTracker) StartMealBreak(context.Context) (domain.MealBreak, error) {
	return domain.MealBreak{ID: "b1", Date: "2026-08-31"}, nil
}

func (s *stubTracker) StopMealBreak(context.Context) (domain.MealBreak, bool, error) {
	return domain.MealBreak{}, false, nil
}

func (s *stubTracker) CreateTask(_ context.Context, name, color string) (domain.Task, error) {
	s.lastCreateName = name
	if s.createErr != nil {
		return domain.Task{}, s.createErr
	}
	return s.created, nil
}

func (s *stubTracker) ArchiveTask(context.Context, string) error { return s.archiveErr }

func (s *stubTracker) DailyReport(domain.Date) app.DailyReport { return s.daily }

func (s *stubTracker) WeeklyReport(domain.Date) domain.WeekSummary { return s.weekly }

func (s *stubTracker) IncrementActivityCounter(_ context.Context, activityType string) (domain.ActivityCounter, error) {
	return s.counter, nil
}

func (s *stubTracker) UpdateSetting(_ context.Context, key, value string) (domain.Settings, error) {
	s.lastSettingKey = key
	return s.settings, nil
}

func (s *stubTracker) Audit(from, to domain.Date) (app.AuditData, error) {
	if s.auditErr != nil {
		return app.AuditData{}, s.auditErr
	}
	return s.audit, nil
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()

	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "stampla-test",
				"version": "1.0.0",
			},
		},
	}
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubTracker{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersTrackerTools verifies MCP tool discovery lists the tracker surface.
func TestHandlerRegistersTrackerTools(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubTracker{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := toolMap["name"].(string); ok {
			toolNames = append(toolNames, name)
		}
	}
	for _, want := range []string{
		"stampla.status",
		"stampla.start_timer",
		"stampla.stop_timer",
		"stampla.start_meal_break",
		"stampla.stop_meal_break",
		"stampla.create_task",
		"stampla.archive_task",
		"stampla.list_tasks",
		"stampla.daily_report",
		"stampla.weekly_report",
		"stampla.log_activity",
		"stampla.audit",
		"stampla.get_settings",
		"stampla.update_setting",
	} {
		if !slices.Contains(toolNames, want) {
			t.Fatalf("tool %s not registered, got %v", want, toolNames)
		}
	}
}

// TestStartTimerToolForwardsTaskID verifies argument plumbing and the JSON result.
func TestStartTimerToolForwardsTaskID(t *testing.T) {
	tracker := &stubTracker{
		startEntry: domain.TimeEntry{
			ID:        "e1",
			TaskID:    "t1",
			StartTime: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
			Date:      "2026-08-31",
		},
	}
	handler, err := NewHandler(Config{}, tracker)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "stampla.start_timer", map[string]any{"task_id": "t1"}))

	if tracker.lastStartTaskID != "t1" {
		t.Fatalf("task_id not forwarded, got %q", tracker.lastStartTaskID)
	}
	text := toolResultText(t, callResp.Result)
	if !strings.Contains(text, `"id":"e1"`) {
		t.Fatalf("unexpected start_timer payload: %s", text)
	}
}

// TestStartTimerToolMapsValidationError verifies rule violations surface as invalid_request.
func TestStartTimerToolMapsValidationError(t *testing.T) {
	tracker := &stubTracker{
		startErr: &app.ValidationError{Rule: app.RuleTimerAlreadyRunning, Detail: "a timer is already running"},
	}
	handler, err := NewHandler(Config{}, tracker)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "stampla.start_timer", map[string]any{"task_id": "t1"}))

	text := toolResultText(t, callResp.Result)
	if !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("expected invalid_request prefix, got %q", text)
	}
	if isError, _ := callResp.Result["isError"].(bool); !isError {
		t.Fatalf("expected isError result, got %#v", callResp.Result)
	}
}

// TestStartTimerToolMapsUnknownTask verifies unknown tasks surface as not_found.
func TestStartTimerToolMapsUnknownTask(t *testing.T) {
	tracker := &stubTracker{startErr: app.ErrInvalidTask}
	handler, err := NewHandler(Config{}, tracker)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "stampla.start_timer", map[string]any{"task_id": "ghost"}))

	text := toolResultText(t, callResp.Result)
	if !strings.HasPrefix(text, "not_found:") {
		t.Fatalf("expected not_found prefix, got %q", text)
	}
}

// TestDailyReportToolRejectsBadDate verifies date parsing failures map to invalid_request.
func TestDailyReportToolRejectsBadDate(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubTracker{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "stampla.daily_report", map[string]any{"date": "31/08/2026"}))

	text := toolResultText(t, callResp.Result)
	if !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("expected invalid_request prefix, got %q", text)
	}
}

// TestStopTimerToolReportsNoOp verifies the idle stop is visible to clients.
func TestStopTimerToolReportsNoOp(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubTracker{stopStopped: false})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	_, callResp := postJSONRPC(t, server.Client(), server.URL,
		callToolRequest(2, "stampla.stop_timer", map[string]any{}))

	text := toolResultText(t, callResp.Result)
	if !strings.Contains(text, `"stopped":false`) {
		t.Fatalf("expected stopped:false payload, got %q", text)
	}
}

// TestNewHandlerRequiresService verifies construction fails without a tracker.
func TestNewHandlerRequiresService(t *testing.T) {
	if _, err := NewHandler(Config{}, nil); err == nil {
		t.Fatal("expected error for nil tracker service")
	}
}
