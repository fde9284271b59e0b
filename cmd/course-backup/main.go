package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/a2z-academy/course-backup/backup"
	"github.com/a2z-academy/course-backup/bridge"
	"github.com/a2z-academy/course-backup/config"
	"github.com/a2z-academy/course-backup/models"
	"github.com/a2z-academy/course-backup/scrape"
)

func main() {
	defaultCfg := config.DefaultConfig()
	baseURLDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("ACADEMY_BASE_URL"); ok {
		baseURLDefault = value
	}
	cookieDefault := defaultCfg.SessionCookie
	if value, ok := config.EnvString("ACADEMY_SESSION_COOKIE"); ok {
		cookieDefault = value
	}
	outputDefault := defaultCfg.OutputDir
	if value, ok := config.EnvString("ACADEMY_OUTPUT_DIR"); ok {
		outputDefault = value
	}
	pageSizeDefault := defaultCfg.PageSize
	if value, ok, err := config.EnvInt("ACADEMY_PAGE_SIZE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid ACADEMY_PAGE_SIZE: %v\n", err)
		os.Exit(1)
	} else if ok {
		pageSizeDefault = value
	}
	poolDefault := defaultCfg.PoolSize
	if value, ok, err := config.EnvInt("ACADEMY_POOL_SIZE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid ACADEMY_POOL_SIZE: %v\n", err)
		os.Exit(1)
	} else if ok {
		poolDefault = value
	}

	baseURL := flag.String("base-url", baseURLDefault, "Admin host base URL")
	ids := flag.String("ids", "", "Comma-separated course ids to back up (empty lists courses only)")
	outputDir := flag.String("output", outputDefault, "Directory to save the backup file into")
	pageSize := flag.Int("page-size", pageSizeDefault, "Course list page size")
	poolSize := flag.Int("pool", poolDefault, "Concurrent course scrapes")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout/time.Second), "HTTP timeout (seconds)")
	sliceHead := flag.Int("section-head", defaultCfg.SectionSliceHead, "Leading layout blocks to skip on an edit page")
	sliceTail := flag.Int("section-tail", defaultCfg.SectionSliceTail, "Trailing layout blocks to skip on an edit page")
	metricsAddr := flag.String("metrics-addr", defaultCfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.BaseURL = *baseURL
	cfg.SessionCookie = cookieDefault
	cfg.OutputDir = *outputDir
	cfg.PageSize = *pageSize
	cfg.PoolSize = *poolSize
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.SectionSliceHead = *sliceHead
	cfg.SectionSliceTail = *sliceTail
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	selection := splitIDs(*ids)
	slog.Info("starting course backup",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("selected", len(selection)),
		slog.Int("pool", cfg.PoolSize),
	)

	metrics := scrape.NewMetrics()
	client := scrape.NewClient(cfg, metrics)
	scraper, err := scrape.NewScraper(cfg, client, metrics)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}
	writer, err := backup.NewExportWriter("")
	if err != nil {
		slog.Error("initialising export writer", slog.Any("error", err))
		os.Exit(1)
	}

	bus := bridge.NewBus()
	orchestrator := backup.NewOrchestrator(scraper, bus, writer, cfg.PoolSize)
	core := bridge.NewCore(bus, orchestrator)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	go core.Run(ctx)

	var ackCh <-chan bridge.Ack
	if len(selection) > 0 {
		ackCh, err = bus.BackupSelected(ctx, selection)
		if err != nil {
			slog.Error("submitting backup command", slog.Any("error", err))
			os.Exit(1)
		}
	}

	exitCode := runUI(bus, ackCh, cfg.OutputDir, stop)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	os.Exit(exitCode)
}

// runUI is the stand-in presentation layer and download handler: it renders
// bridge events and persists the download handoff. It returns once the core
// stops and the event stream drains.
func runUI(bus *bridge.Bus, ackCh <-chan bridge.Ack, outputDir string, stop func()) int {
	exitCode := 0
	for {
		select {
		case ev, ok := <-bus.Events():
			if !ok {
				return exitCode
			}
			switch e := ev.(type) {
			case bridge.CoursesList:
				printCourses(e.Courses)
				if ackCh == nil {
					stop()
				}
			case bridge.CoursesError:
				fmt.Printf("❌ %s\n", e.Message)
				exitCode = 1
				if ackCh == nil {
					stop()
				}
			case bridge.BackupProgress:
				fmt.Println(e.Text)
			case bridge.Download:
				if err := saveDownload(e, outputDir); err != nil {
					// The core never sees download failures.
					slog.Error("saving backup file", slog.Any("error", err))
					exitCode = 1
				}
			}
		case ack := <-ackCh:
			if !ack.OK {
				fmt.Printf("❌ %s\n", ack.Error)
				exitCode = 1
			}
			ackCh = nil
			stop()
		}
	}
}

func printCourses(courses []models.Course) {
	fmt.Printf("Found %d courses:\n", len(courses))
	for _, course := range courses {
		line := fmt.Sprintf("  [%s] %s", course.ID, course.Title)
		if course.Category != nil {
			line += fmt.Sprintf(" (%s)", *course.Category)
		}
		if course.SectionsCount != nil && course.LessonsCount != nil {
			line += fmt.Sprintf(", %d sections, %d lessons", *course.SectionsCount, *course.LessonsCount)
		}
		fmt.Println(line)
	}
}

// saveDownload persists a staged export into the output directory. This is
// the download handler's side of the bridge; its failures are its own.
func saveDownload(download bridge.Download, outputDir string) error {
	src := strings.TrimPrefix(download.URL, "file://")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	dst := filepath.Join(outputDir, download.Filename)

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open staged backup: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy backup file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close backup file: %w", err)
	}

	slog.Info("backup saved", slog.String("path", dst))
	return nil
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
