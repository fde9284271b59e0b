// Package backup drives the per-course scrape fan-out for a selection of
// courses and assembles the export payload.
package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a2z-academy/course-backup/bridge"
	"github.com/a2z-academy/course-backup/models"
)

// CourseScraper is the scraping surface the orchestrator drives.
type CourseScraper interface {
	Courses(ctx context.Context) ([]models.Course, error)
	ScrapeCourse(ctx context.Context, course models.Course) models.CourseDetail
}

// Orchestrator resolves selected course ids against the master list, runs a
// fixed-size pool of course scrapes, and hands the finished export to the
// download side of the bridge.
type Orchestrator struct {
	scraper  CourseScraper
	bus      *bridge.Bus
	writer   *ExportWriter
	poolSize int
}

// NewOrchestrator builds an orchestrator with the given pool width.
func NewOrchestrator(scraper CourseScraper, bus *bridge.Bus, writer *ExportWriter, poolSize int) *Orchestrator {
	if poolSize <= 0 {
		poolSize = 5
	}
	return &Orchestrator{
		scraper:  scraper,
		bus:      bus,
		writer:   writer,
		poolSize: poolSize,
	}
}

// Courses exposes the master list, populating it on first access.
func (o *Orchestrator) Courses(ctx context.Context) ([]models.Course, error) {
	return o.scraper.Courses(ctx)
}

// BackupSelected scrapes the selected courses and emits the export. Empty
// input is a no-op. Progress streams over the bus after each completed
// course; completion order is pool driven and carries no guarantee.
func (o *Orchestrator) BackupSelected(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	master, err := o.scraper.Courses(ctx)
	if err != nil {
		return err
	}

	selected := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	var targets []models.Course
	for _, course := range master {
		if _, ok := selected[course.ID]; ok {
			targets = append(targets, course)
		}
	}

	details := o.scrapePool(ctx, targets)

	payload := make(models.BackupPayload, len(targets))
	for _, course := range targets {
		detail := details[course.ID]
		payload[detail.Title] = detail.Entry()
	}

	filename := fmt.Sprintf("academy-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	path, err := o.writer.Write(payload, filename)
	if err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	o.bus.Emit(bridge.Download{URL: "file://" + path, Filename: filename})
	o.bus.Emit(bridge.BackupProgress{Text: "✅ Backup complete!"})
	return nil
}

// scrapePool drains the targets with a fixed number of workers popping a
// shared stack. The completed count is monotonic across workers; per-course
// failures have already been downgraded by the scraper, so the pool itself
// never fails.
func (o *Orchestrator) scrapePool(ctx context.Context, targets []models.Course) map[string]models.CourseDetail {
	total := len(targets)
	stack := append([]models.Course(nil), targets...)

	var mu sync.Mutex
	completed := 0
	details := make(map[string]models.CourseDetail, total)

	pop := func() (models.Course, bool) {
		mu.Lock()
		defer mu.Unlock()
		if len(stack) == 0 {
			return models.Course{}, false
		}
		course := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return course, true
	}

	var wg sync.WaitGroup
	for w := 0; w < o.poolSize; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				course, ok := pop()
				if !ok {
					return
				}
				detail := o.scraper.ScrapeCourse(ctx, course)

				// Emitting under the lock keeps the progress lines in
				// counter order across workers.
				mu.Lock()
				details[course.ID] = detail
				completed++
				o.bus.Emit(bridge.BackupProgress{Text: fmt.Sprintf("Scraped %d/%d …", completed, total)})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return details
}
