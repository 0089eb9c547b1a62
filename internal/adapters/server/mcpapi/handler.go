// Package mcpapi provides a stateless MCP streamable-HTTP adapter over the
// tracker service.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/stampla/internal/app"
	"github.com/evanschultz/stampla/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// TrackerService is the slice of the application service the MCP tools use.
type TrackerService interface {
	Status() app.TimerStatus
	CurrentMealBreak() app.MealBreakStatus
	StartTimer(ctx context.Context, taskID string) (domain.TimeEntry, error)
	StopTimer(ctx context.Context) (domain.TimeEntry, bool, error)
	StartMealBreak(ctx context.Context) (domain.MealBreak, error)
	StopMealBreak(ctx context.Context) (domain.MealBreak, bool, error)
	CreateTask(ctx context.Context, name, color string) (domain.Task, error)
	ArchiveTask(ctx context.Context, taskID string) error
	Tasks(includeArchived bool) []domain.Task
	DailyReport(date domain.Date) app.DailyReport
	WeeklyReport(weekStart domain.Date) domain.WeekSummary
	IncrementActivityCounter(ctx context.Context, activityType string) (domain.ActivityCounter, error)
	UpdateSetting(ctx context.Context, key, value string) (domain.Settings, error)
	Settings() domain.Settings
	Audit(from, to domain.Date) (app.AuditData, error)
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the tracker tools.
func NewHandler(cfg Config, tracker TrackerService) (*Handler, error) {
	if tracker == nil {
		return nil, fmt.Errorf("tracker service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerStatusTools(mcpSrv, tracker)
	registerTimerTools(mcpSrv, tracker)
	registerMealBreakTools(mcpSrv, tracker)
	registerTaskTools(mcpSrv, tracker)
	registerReportTools(mcpSrv, tracker)
	registerSettingsTools(mcpSrv, tracker)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "stampla"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerStatusTools registers the `stampla.status` tool.
func registerStatusTools(srv *mcpserver.MCPServer, tracker TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"stampla.status",
			mcp.WithDescription("Return the current timer and meal-break status."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			timer := tracker.Status()
			brk := tracker.CurrentMealBreak()
			result, err := mcp.NewToolResultJSON(map[string]any{
				"timer":      timerStatusPayload(timer),
				"meal_break": mealBreakStatusPayload(brk),
			})
			if err != nil {
				return nil, fmt.Errorf("encode status result: %w", err)
			}
			return result, nil
		},
	)
}

// registerTimerTools registers the start/stop timer tools.
func registerTimerTools(srv *mcpserver.MCPServer, tracker TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"stampla.start_timer",
			mcp.WithDescription("Start tracking time against a task."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			entry, err := tracker.StartTimer(ctx, taskID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(entryPayload(entry))
			if err != nil {
				return nil, fmt.Errorf("encode start_timer result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.stop_timer",
			mcp.WithDescription("Stop the running timer. A stop with no running timer is a no-op."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			entry, stopped, err := tracker.StopTimer(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			payload := map[string]any{"stopped": stopped}
			if stopped {
				payload["entry"] = entryPayload(entry)
			}
			result, err := mcp.NewToolResultJSON(payload)
			if err != nil {
				return nil, fmt.Errorf("encode stop_timer result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMealBreakTools registers the meal-break tools.
func registerMealBreakTools(srv *mcpserver.MCPServer, tracker TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"stampla.start_meal_break",
			mcp.WithDescription("Start today's meal break. Presence keeps accruing while task time does not."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			brk, err := tracker.StartMealBreak(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(breakPayload(brk))
			if err != nil {
				return nil, fmt.Errorf("encode start_meal_break result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.stop_meal_break",
			mcp.WithDescription("Stop the open meal break. A stop with no open break is a no-op."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			brk, stopped, err := tracker.StopMealBreak(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			payload := map[string]any{"stopped": stopped}
			if stopped {
				payload["meal_break"] = breakPayload(brk)
			}
			result, err := mcp.NewToolResultJSON(payload)
			if err != nil {
				return nil, fmt.Errorf("encode stop_meal_break result: %w", err)
			}
			return result, nil
		},
	)
}

// registerTaskTools registers create/archive/list task tools.
func registerTaskTools(srv *mcpserver.MCPServer, tracker TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"stampla.create_task",
			mcp.WithDescription("Create a trackable task."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Task name")),
			mcp.WithString("color", mcp.Description("Optional hex color, e.g. #ff8800")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, err := tracker.CreateTask(ctx, name, req.GetString("color", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(taskPayload(task))
			if err != nil {
				return nil, fmt.Errorf("encode create_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.archive_task",
			mcp.WithDescription("Archive a task. Archived tasks keep their history but cannot be started."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := tracker.ArchiveTask(ctx, taskID); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"archived": true, "task_id": taskID})
			if err != nil {
				return nil, fmt.Errorf("encode archive_task result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.list_tasks",
			mcp.WithDescription("List tasks in creation order."),
			mcp.WithBoolean("include_archived", mcp.Description("Include archived tasks")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tasks := tracker.Tasks(req.GetBool("include_archived", false))
			payload := make([]map[string]any, 0, len(tasks))
			for _, task := range tasks {
				payload = append(payload, taskPayload(task))
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"tasks": payload})
			if err != nil {
				return nil, fmt.Errorf("encode list_tasks result: %w", err)
			}
			return result, nil
		},
	)
}

// registerReportTools registers the daily/weekly/audit report tools.
func registerReportTools(srv *mcpserver.MCPServer, tracker TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"stampla.daily_report",
			mcp.WithDescription("Return the daily rollup for a date (defaults to today)."),
			mcp.WithString("date", mcp.Description("Date in YYYY-MM-DD form")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			date, err := resolveDate(req.GetString("date", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			report := tracker.DailyReport(date)
			result, err := mcp.NewToolResultJSON(dailyReportPayload(report))
			if err != nil {
				return nil, fmt.Errorf("encode daily_report result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.weekly_report",
			mcp.WithDescription("Return the Monday-Friday summary for the week containing a date (defaults to today)."),
			mcp.WithString("date", mcp.Description("Any date inside the week, YYYY-MM-DD")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			date, err := resolveDate(req.GetString("date", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			summary := tracker.WeeklyReport(date)
			result, err := mcp.NewToolResultJSON(weekSummaryPayload(summary))
			if err != nil {
				return nil, fmt.Errorf("encode weekly_report result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.log_activity",
			mcp.WithDescription("Increment today's counter for an activity type, e.g. commit or review."),
			mcp.WithString("activity_type", mcp.Required(), mcp.Description("Activity type")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			activityType, err := req.RequireString("activity_type")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			counter, err := tracker.IncrementActivityCounter(ctx, activityType)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"date":          string(counter.Date),
				"activity_type": counter.ActivityType,
				"count":         counter.Count,
			})
			if err != nil {
				return nil, fmt.Errorf("encode log_activity result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.audit",
			mcp.WithDescription("Return raw ledger records for an inclusive date range."),
			mcp.WithString("from", mcp.Required(), mcp.Description("Range start, YYYY-MM-DD")),
			mcp.WithString("to", mcp.Required(), mcp.Description("Range end, YYYY-MM-DD")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			from, err := req.RequireString("from")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			to, err := req.RequireString("to")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			data, err := tracker.Audit(domain.Date(from), domain.Date(to))
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(auditPayload(data))
			if err != nil {
				return nil, fmt.Errorf("encode audit result: %w", err)
			}
			return result, nil
		},
	)
}

// registerSettingsTools registers the settings tools.
func registerSettingsTools(srv *mcpserver.MCPServer, tracker TrackerService) {
	srv.AddTool(
		mcp.NewTool(
			"stampla.get_settings",
			mcp.WithDescription("Return the current tracker settings."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := mcp.NewToolResultJSON(settingsPayload(tracker.Settings()))
			if err != nil {
				return nil, fmt.Errorf("encode get_settings result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"stampla.update_setting",
			mcp.WithDescription("Update one tracker setting. Out-of-range values are rejected."),
			mcp.WithString("key", mcp.Required(), mcp.Description("Setting key, e.g. timer_max_duration")),
			mcp.WithString("value", mcp.Required(), mcp.Description("New value, e.g. 10h")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			key, err := req.RequireString("key")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			value, err := req.RequireString("value")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			settings, err := tracker.UpdateSetting(ctx, key, value)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(settingsPayload(settings))
			if err != nil {
				return nil, fmt.Errorf("encode update_setting result: %w", err)
			}
			return result, nil
		},
	)
}

// resolveDate parses an optional YYYY-MM-DD argument, defaulting to today.
func resolveDate(raw string) (domain.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DateOf(time.Now()), nil
	}
	return domain.ParseDate(raw)
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	var verr *app.ValidationError
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.As(err, &verr):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, app.ErrInvalidTask):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, app.ErrConcurrentMealBreak):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, domain.ErrInvalidDate):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

func timerStatusPayload(status app.TimerStatus) map[string]any {
	payload := map[string]any{
		"is_running": status.IsRunning,
		"elapsed":    status.FormattedElapsed,
	}
	if status.IsRunning {
		payload["task_id"] = status.TaskID
		payload["task_name"] = status.TaskName
		payload["entry_id"] = status.EntryID
		payload["started_at"] = status.StartedAt
		payload["elapsed_ms"] = status.Elapsed.Milliseconds()
	}
	return payload
}

func mealBreakStatusPayload(status app.MealBreakStatus) map[string]any {
	payload := map[string]any{
		"on_break": status.OnBreak,
		"elapsed":  status.FormattedElapsed,
	}
	if status.OnBreak {
		payload["break_id"] = status.BreakID
		payload["started_at"] = status.StartedAt
		payload["elapsed_ms"] = status.Elapsed.Milliseconds()
	}
	return payload
}

func taskPayload(task domain.Task) map[string]any {
	payload := map[string]any{
		"id":            task.ID,
		"name":          task.Name,
		"is_active":     task.IsActive,
		"total_time_ms": task.TotalTime.Milliseconds(),
		"created_at":    task.CreatedAt,
	}
	if task.Color != "" {
		payload["color"] = task.Color
	}
	if task.ArchivedAt != nil {
		payload["archived_at"] = task.ArchivedAt
	}
	return payload
}

func entryPayload(entry domain.TimeEntry) map[string]any {
	payload := map[string]any{
		"id":          entry.ID,
		"task_id":     entry.TaskID,
		"date":        string(entry.Date),
		"start_time":  entry.StartTime,
		"duration_ms": entry.Duration.Milliseconds(),
		"is_manual":   entry.IsManual,
	}
	if entry.EndTime != nil {
		payload["end_time"] = entry.EndTime
	}
	if entry.Note != "" {
		payload["note"] = entry.Note
	}
	return payload
}

func breakPayload(brk domain.MealBreak) map[string]any {
	payload := map[string]any{
		"id":          brk.ID,
		"date":        string(brk.Date),
		"start_time":  brk.StartTime,
		"duration_ms": brk.Duration.Milliseconds(),
		"truncated":   brk.Truncated,
	}
	if brk.EndTime != nil {
		payload["end_time"] = brk.EndTime
	}
	return payload
}

func workDayPayload(day domain.WorkDay) map[string]any {
	return map[string]any{
		"date":              string(day.Date),
		"total_presence_ms": day.TotalPresence.Milliseconds(),
		"total_task_ms":     day.TotalTaskTime.Milliseconds(),
		"meal_break_ms":     day.MealBreakTime.Milliseconds(),
		"working_ms":        day.WorkingTime().Milliseconds(),
		"efficiency":        day.Efficiency(),
		"counters":          day.Counters,
	}
}

func dailyReportPayload(report app.DailyReport) map[string]any {
	entries := make([]map[string]any, 0, len(report.Entries))
	for _, entry := range report.Entries {
		entries = append(entries, entryPayload(entry))
	}
	breaks := make([]map[string]any, 0, len(report.Breaks))
	for _, brk := range report.Breaks {
		breaks = append(breaks, breakPayload(brk))
	}
	return map[string]any{
		"day":                  workDayPayload(report.Day),
		"entries":              entries,
		"meal_breaks":          breaks,
		"required_presence_ms": report.RequiredPresence.Milliseconds(),
		"presence_met":         report.PresenceMet,
		"live":                 report.Live,
	}
}

func weekSummaryPayload(summary domain.WeekSummary) map[string]any {
	days := make([]map[string]any, 0, len(summary.Days))
	for _, day := range summary.Days {
		days = append(days, workDayPayload(day))
	}
	tasks := make([]map[string]any, 0, len(summary.TaskSummaries))
	for _, task := range summary.TaskSummaries {
		tasks = append(tasks, map[string]any{
			"task_id":       task.TaskID,
			"task_name":     task.Name,
			"total_time_ms": task.TotalTime.Milliseconds(),
		})
	}
	return map[string]any{
		"week_start":         string(summary.WeekStart),
		"days":               days,
		"total_presence_ms":  summary.TotalPresence.Milliseconds(),
		"total_task_ms":      summary.TotalTaskTime.Milliseconds(),
		"total_meal_ms":      summary.TotalMealBreak.Milliseconds(),
		"total_working_ms":   summary.TotalWorking.Milliseconds(),
		"average_efficiency": summary.AverageEfficiency,
		"tasks":              tasks,
	}
}

func settingsPayload(settings domain.Settings) map[string]any {
	return map[string]any{
		"required_daily_presence": settings.RequiredDailyPresence.String(),
		"timer_max_duration":      settings.TimerMaxDuration.String(),
		"theme":                   settings.Theme,
		"time_format_24h":         settings.TimeFormat24h,
		"auto_save_interval":      settings.AutoSaveInterval.String(),
		"data_retention_weeks":    settings.DataRetentionWeeks,
	}
}

func auditPayload(data app.AuditData) map[string]any {
	entries := make([]map[string]any, 0, len(data.Entries))
	for _, entry := range data.Entries {
		entries = append(entries, entryPayload(entry))
	}
	breaks := make([]map[string]any, 0, len(data.Breaks))
	for _, brk := range data.Breaks {
		breaks = append(breaks, breakPayload(brk))
	}
	days := make([]map[string]any, 0, len(data.WorkDays))
	for _, day := range data.WorkDays {
		days = append(days, workDayPayload(day))
	}
	counters := make([]map[string]any, 0, len(data.Counters))
	for _, counter := range data.Counters {
		counters = append(counters, map[string]any{
			"date":          string(counter.Date),
			"activity_type": counter.ActivityType,
			"count":         counter.Count,
		})
	}
	return map[string]any{
		"from":        string(data.From),
		"to":          string(data.To),
		"entries":     entries,
		"meal_breaks": breaks,
		"work_days":   days,
		"counters":    counters,
	}
}
