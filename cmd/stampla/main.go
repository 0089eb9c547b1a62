package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	serveradapter "github.com/evanschultz/stampla/internal/adapters/server"
	"github.com/evanschultz/stampla/internal/adapters/storage/sqlite"
	"github.com/evanschultz/stampla/internal/app"
	"github.com/evanschultz/stampla/internal/config"
	"github.com/evanschultz/stampla/internal/domain"
	"github.com/evanschultz/stampla/internal/platform"
)

// version stores a package-level helper value.
var version = "dev"

// serveCommandRunner starts the MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, svc *app.Service) error {
	return serveradapter.Run(ctx, cfg, svc)
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run runs the requested command flow.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("stampla", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		configPath string
		dbPath     string
		appName    string
		devMode    bool
		showVer    bool
	)
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("STAMPLA_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("STAMPLA_APP_NAME")); envApp != "" {
		appName = envApp
	} else {
		appName = "stampla"
	}
	fs.StringVar(&configPath, "config", "", "path to config TOML")
	fs.StringVar(&dbPath, "db", "", "path to sqlite database")
	fs.StringVar(&appName, "app", appName, "application name for config/data path resolution")
	fs.BoolVar(&devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	fs.BoolVar(&showVer, "version", false, "show version")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVer {
		_, _ = fmt.Fprintf(stdout, "stampla %s\n", version)
		return nil
	}

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: devMode,
	})
	if err != nil {
		return err
	}

	command := firstArg(fs.Args())
	switch command {
	case "paths":
		_, _ = fmt.Fprintf(stdout, "app: %s\n", appName)
		_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", devMode)
		_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
		_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
		_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
		return nil
	case "", "status", "start", "stop", "break", "task", "day", "week", "audit", "log", "set", "serve":
		// Continue.
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	dbOverridden := strings.TrimSpace(dbPath) != ""
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("STAMPLA_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("STAMPLA_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, appName, cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("startup configuration resolved", "app", appName, "dev_mode", devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "db_path", cfg.Database.Path)

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()

	initialSettings, err := cfg.Settings()
	if err != nil {
		return err
	}
	svc := app.NewService(store, uuid.NewString, nil, app.ServiceConfig{
		InitialSettings: initialSettings,
	})
	svc.SetLogger(logger)
	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("load tracker state: %w", err)
	}
	defer func() {
		if closeErr := svc.Close(context.Background()); closeErr != nil {
			logger.Warn("final save failed", "err", closeErr)
		}
	}()

	rest := restArgs(fs.Args())
	switch command {
	case "", "status":
		return runStatus(svc, stdout)
	case "start":
		return runStart(ctx, svc, rest, stdout)
	case "stop":
		return runStop(ctx, svc, stdout)
	case "break":
		return runBreak(ctx, svc, rest, stdout)
	case "task":
		return runTask(ctx, svc, rest, stdout)
	case "day":
		return runDay(svc, rest, stdout)
	case "week":
		return runWeek(svc, rest, stdout)
	case "audit":
		return runAudit(svc, rest, stdout)
	case "log":
		return runLog(ctx, svc, rest, stdout)
	case "set":
		return runSet(ctx, svc, rest, stdout)
	case "serve":
		return runServe(ctx, svc, cfg, rest, logger)
	}
	return nil
}

// runStatus prints the timer and meal-break machines plus today's rollup.
func runStatus(svc *app.Service, stdout io.Writer) error {
	status := svc.Status()
	if status.IsRunning {
		_, _ = fmt.Fprintf(stdout, "timer: running %s on %q since %s\n",
			status.FormattedElapsed, status.TaskName, status.StartedAt.Format("15:04"))
	} else {
		_, _ = fmt.Fprintln(stdout, "timer: idle")
	}

	brk := svc.CurrentMealBreak()
	if brk.OnBreak {
		_, _ = fmt.Fprintf(stdout, "meal break: open %s since %s\n",
			brk.FormattedElapsed, brk.StartedAt.Format("15:04"))
	} else {
		_, _ = fmt.Fprintln(stdout, "meal break: none")
	}

	report := svc.DailyReport(domain.DateOf(time.Now()))
	printDay(stdout, report)
	return nil
}

// runStart starts the timer for one task id or name.
func runStart(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	ref := firstArg(args)
	if ref == "" {
		return fmt.Errorf("usage: stampla start <task-id-or-name>")
	}
	taskID := resolveTaskRef(svc, ref)
	entry, err := svc.StartTimer(ctx, taskID)
	if err != nil {
		return fmt.Errorf("start timer: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "started %s at %s (entry %s)\n",
		taskID, entry.StartTime.Format("15:04:05"), entry.ID)
	return nil
}

// runStop stops the running timer.
func runStop(ctx context.Context, svc *app.Service, stdout io.Writer) error {
	entry, stopped, err := svc.StopTimer(ctx)
	if err != nil {
		return fmt.Errorf("stop timer: %w", err)
	}
	if !stopped {
		_, _ = fmt.Fprintln(stdout, "no timer running")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "stopped after %s (entry %s)\n",
		formatDuration(entry.Duration), entry.ID)
	return nil
}

// runBreak starts or stops the meal break.
func runBreak(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	switch firstArg(args) {
	case "start":
		brk, err := svc.StartMealBreak(ctx)
		if err != nil {
			return fmt.Errorf("start meal break: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "meal break started at %s\n", brk.StartTime.Format("15:04"))
		return nil
	case "stop":
		brk, stopped, err := svc.StopMealBreak(ctx)
		if err != nil {
			return fmt.Errorf("stop meal break: %w", err)
		}
		if !stopped {
			_, _ = fmt.Fprintln(stdout, "no meal break open")
			return nil
		}
		_, _ = fmt.Fprintf(stdout, "meal break closed after %s", formatDuration(brk.Duration))
		if brk.Truncated {
			_, _ = fmt.Fprint(stdout, " (truncated at 3h)")
		}
		_, _ = fmt.Fprintln(stdout)
		return nil
	default:
		return fmt.Errorf("usage: stampla break <start|stop>")
	}
}

// runTask manages the task list.
func runTask(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	switch firstArg(args) {
	case "add":
		fs := flag.NewFlagSet("stampla task add", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var name, color string
		fs.StringVar(&name, "name", "", "task name")
		fs.StringVar(&color, "color", "", "hex color, e.g. #ff8800")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("parse task add flags: %w", err)
		}
		if name == "" {
			name = firstArg(fs.Args())
		}
		task, err := svc.CreateTask(ctx, name, color)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "created task %s (%s)\n", task.Name, task.ID)
		return nil
	case "archive":
		id := firstArg(args[1:])
		if id == "" {
			return fmt.Errorf("usage: stampla task archive <task-id>")
		}
		if err := svc.ArchiveTask(ctx, resolveTaskRef(svc, id)); err != nil {
			return fmt.Errorf("archive task: %w", err)
		}
		_, _ = fmt.Fprintf(stdout, "archived task %s\n", id)
		return nil
	case "list", "":
		fs := flag.NewFlagSet("stampla task list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var all bool
		fs.BoolVar(&all, "all", false, "include archived tasks")
		if len(args) > 0 {
			if err := fs.Parse(args[1:]); err != nil {
				return fmt.Errorf("parse task list flags: %w", err)
			}
		}
		for _, task := range svc.Tasks(all) {
			marker := " "
			if task.IsActive {
				marker = "*"
			}
			suffix := ""
			if task.Archived() {
				suffix = " (archived)"
			}
			_, _ = fmt.Fprintf(stdout, "%s %s  %s  %s%s\n",
				marker, task.ID, formatDuration(task.TotalTime), task.Name, suffix)
		}
		return nil
	default:
		return fmt.Errorf("usage: stampla task <add|archive|list>")
	}
}

// runDay prints the daily report for one date.
func runDay(svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stampla day", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var rawDate string
	fs.StringVar(&rawDate, "date", "", "date in YYYY-MM-DD form (defaults to today)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse day flags: %w", err)
	}
	date, err := resolveDateArg(rawDate)
	if err != nil {
		return err
	}
	printDay(stdout, svc.DailyReport(date))
	return nil
}

// runWeek prints the Monday-Friday summary for the week containing one date.
func runWeek(svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stampla week", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var rawDate string
	fs.StringVar(&rawDate, "date", "", "any date inside the week, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse week flags: %w", err)
	}
	date, err := resolveDateArg(rawDate)
	if err != nil {
		return err
	}

	summary := svc.WeeklyReport(date)
	_, _ = fmt.Fprintf(stdout, "week of %s\n", summary.WeekStart)
	for _, day := range summary.Days {
		_, _ = fmt.Fprintf(stdout, "  %s  presence %s  tasks %s  meal %s\n",
			day.Date, formatDuration(day.TotalPresence),
			formatDuration(day.TotalTaskTime), formatDuration(day.MealBreakTime))
	}
	_, _ = fmt.Fprintf(stdout, "total presence: %s\n", formatDuration(summary.TotalPresence))
	_, _ = fmt.Fprintf(stdout, "total working:  %s\n", formatDuration(summary.TotalWorking))
	_, _ = fmt.Fprintf(stdout, "avg efficiency: %.0f%%\n", summary.AverageEfficiency*100)
	for _, task := range summary.TaskSummaries {
		_, _ = fmt.Fprintf(stdout, "  %s  %s\n", formatDuration(task.TotalTime), task.Name)
	}
	return nil
}

// runAudit prints raw ledger records for an inclusive date range.
func runAudit(svc *app.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stampla audit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var from, to string
	fs.StringVar(&from, "from", "", "range start, YYYY-MM-DD")
	fs.StringVar(&to, "to", "", "range end, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse audit flags: %w", err)
	}
	if from == "" || to == "" {
		return fmt.Errorf("usage: stampla audit -from YYYY-MM-DD -to YYYY-MM-DD")
	}

	data, err := svc.Audit(domain.Date(from), domain.Date(to))
	if err != nil {
		return fmt.Errorf("audit range: %w", err)
	}
	for _, entry := range data.Entries {
		end := "open"
		if entry.EndTime != nil {
			end = entry.EndTime.Format("15:04:05")
		}
		manual := ""
		if entry.IsManual {
			manual = " manual"
		}
		_, _ = fmt.Fprintf(stdout, "entry %s %s task=%s %s-%s %s%s\n",
			entry.ID, entry.Date, entry.TaskID,
			entry.StartTime.Format("15:04:05"), end, formatDuration(entry.Duration), manual)
	}
	for _, brk := range data.Breaks {
		flagged := ""
		if brk.Truncated {
			flagged = " truncated"
		}
		_, _ = fmt.Fprintf(stdout, "break %s %s %s%s\n",
			brk.ID, brk.Date, formatDuration(brk.Duration), flagged)
	}
	for _, counter := range data.Counters {
		_, _ = fmt.Fprintf(stdout, "counter %s %s=%d\n", counter.Date, counter.ActivityType, counter.Count)
	}
	return nil
}

// runLog increments one of today's activity counters.
func runLog(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	activityType := firstArg(args)
	if activityType == "" {
		return fmt.Errorf("usage: stampla log <activity-type>")
	}
	counter, err := svc.IncrementActivityCounter(ctx, activityType)
	if err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "%s: %d today\n", counter.ActivityType, counter.Count)
	return nil
}

// runSet updates one tracker setting.
func runSet(ctx context.Context, svc *app.Service, args []string, stdout io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: stampla set <key> <value>")
	}
	settings, err := svc.UpdateSetting(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("update setting: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "required_daily_presence: %s\n", settings.RequiredDailyPresence)
	_, _ = fmt.Fprintf(stdout, "timer_max_duration:      %s\n", settings.TimerMaxDuration)
	_, _ = fmt.Fprintf(stdout, "auto_save_interval:      %s\n", settings.AutoSaveInterval)
	_, _ = fmt.Fprintf(stdout, "data_retention_weeks:    %d\n", settings.DataRetentionWeeks)
	return nil
}

// runServe blocks serving the MCP transport until interrupted.
func runServe(ctx context.Context, svc *app.Service, cfg config.Config, args []string, logger *charmLog.Logger) error {
	fs := flag.NewFlagSet("stampla serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var addr string
	fs.StringVar(&addr, "addr", cfg.Server.Addr, "bind address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse serve flags: %w", err)
	}

	serveCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("serving mcp transport", "addr", addr, "endpoint", "/mcp")
	return serveCommandRunner(serveCtx, serveradapter.Config{
		HTTPBind:      addr,
		ServerName:    "stampla",
		ServerVersion: version,
	}, svc)
}

// printDay renders one daily report.
func printDay(stdout io.Writer, report app.DailyReport) {
	day := report.Day
	live := ""
	if report.Live {
		live = " (live)"
	}
	_, _ = fmt.Fprintf(stdout, "%s%s\n", day.Date, live)
	_, _ = fmt.Fprintf(stdout, "  presence:  %s", formatDuration(day.TotalPresence))
	if report.PresenceMet {
		_, _ = fmt.Fprintf(stdout, " (required %s met)", formatDuration(report.RequiredPresence))
	} else {
		_, _ = fmt.Fprintf(stdout, " (required %s)", formatDuration(report.RequiredPresence))
	}
	_, _ = fmt.Fprintln(stdout)
	_, _ = fmt.Fprintf(stdout, "  task time: %s\n", formatDuration(day.TotalTaskTime))
	_, _ = fmt.Fprintf(stdout, "  meal:      %s\n", formatDuration(day.MealBreakTime))
	_, _ = fmt.Fprintf(stdout, "  working:   %s (%.0f%% efficiency)\n",
		formatDuration(day.WorkingTime()), day.Efficiency()*100)
	for activity, count := range day.Counters {
		_, _ = fmt.Fprintf(stdout, "  %s: %d\n", activity, count)
	}
}

// resolveTaskRef maps a task name to its id when the argument is not an id.
func resolveTaskRef(svc *app.Service, ref string) string {
	for _, task := range svc.Tasks(true) {
		if task.ID == ref {
			return ref
		}
	}
	for _, task := range svc.Tasks(false) {
		if strings.EqualFold(task.Name, ref) {
			return task.ID
		}
	}
	return ref
}

// resolveDateArg parses an optional YYYY-MM-DD argument, defaulting to today.
func resolveDateArg(raw string) (domain.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DateOf(time.Now()), nil
	}
	date, err := domain.ParseDate(raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return date, nil
}

// newRuntimeLogger configures the console runtime logger.
func newRuntimeLogger(stderr io.Writer, appName string, cfg config.LoggingConfig) (*charmLog.Logger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	return charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	}), nil
}

// formatDuration renders a duration as H:MM.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// firstArg returns the first positional argument, if any.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return strings.TrimSpace(args[0])
}

// restArgs returns the positional arguments after the command word.
func restArgs(args []string) []string {
	if len(args) <= 1 {
		return nil
	}
	return args[1:]
}

// parseBoolEnv reads one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
