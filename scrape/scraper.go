package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/a2z-academy/course-backup/config"
	"github.com/a2z-academy/course-backup/extract"
	"github.com/a2z-academy/course-backup/models"
)

// Fetcher is the page-fetching surface the scraper runs on.
type Fetcher interface {
	ListPage(ctx context.Context, start, length int) (*ListPage, error)
	DetailPage(ctx context.Context, pageURL string) (string, error)
}

// detailCacheSize is well past any realistic course list, so nothing is
// evicted within a run.
const detailCacheSize = 4096

// courseTask memoizes one course's detail scrape. The once guard makes
// concurrent first calls for the same id do the work exactly once; a failed
// scrape is cached like any other result and never retried.
type courseTask struct {
	once   sync.Once
	detail models.CourseDetail
}

// Scraper resolves the master course list and full per-course detail. Both
// the master list and the detail cache are run scoped: populated lazily on
// first access and never refreshed.
type Scraper struct {
	cfg     *config.Config
	fetcher Fetcher
	metrics *Metrics

	masterMu sync.Mutex
	master   []models.Course

	tasksMu sync.Mutex
	tasks   *lru.Cache[string, *courseTask]
}

// NewScraper builds a scraper on top of fetcher.
func NewScraper(cfg *config.Config, fetcher Fetcher, metrics *Metrics) (*Scraper, error) {
	tasks, err := lru.New[string, *courseTask](detailCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}
	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		tasks:   tasks,
	}, nil
}

// Courses returns the master course list, fetching it on first access. A
// fetch failure propagates to the caller and is not cached, so a later call
// may still populate the list.
func (s *Scraper) Courses(ctx context.Context) ([]models.Course, error) {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()

	if s.master != nil {
		return s.master, nil
	}
	courses, err := s.fetchAllCourses(ctx)
	if err != nil {
		return nil, err
	}
	s.master = courses
	return courses, nil
}

// fetchAllCourses paginates the list endpoint until the cumulative offset
// reaches the total reported by the first page, then projects each row into
// a Course. Rows whose title cell fails to parse are dropped, not errored.
func (s *Scraper) fetchAllCourses(ctx context.Context) ([]models.Course, error) {
	var rows []ListRow
	start := 0
	total := -1
	for total < 0 || start < total {
		page, err := s.fetcher.ListPage(ctx, start, s.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Rows...)
		if total < 0 {
			total = page.TotalCount
		}
		start += s.cfg.PageSize
	}

	courses := make([]models.Course, 0, len(rows))
	for _, row := range rows {
		course, ok := courseFromRow(row)
		if !ok {
			slog.Debug("dropping course row without parseable title cell",
				slog.String("id", string(row.ID)),
			)
			continue
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func courseFromRow(row ListRow) (models.Course, bool) {
	editURL, title, ok := extract.TitleCell(row.Title)
	if !ok {
		return models.Course{}, false
	}

	course := models.Course{
		ID:      string(row.ID),
		EditURL: editURL,
		Title:   title,
	}
	if category, ok := extract.Category(row.Category); ok {
		course.Category = &category
	}
	if price, ok := extract.Price(row.Price); ok {
		course.Price = &price
	}
	if sections, lessons, ok := extract.SectionLessonCounts(row.LessonAndSection); ok {
		course.SectionsCount = &sections
		course.LessonsCount = &lessons
	}
	return course, true
}

// ScrapeLesson fetches and extracts a single lesson detail page. Failures
// propagate to the caller.
func (s *Scraper) ScrapeLesson(ctx context.Context, pageURL string) (models.Lesson, error) {
	markup, err := s.fetcher.DetailPage(ctx, pageURL)
	if err != nil {
		return models.Lesson{}, err
	}
	s.metrics.IncLesson()
	return extract.LessonDetail(markup), nil
}

// ScrapeCourse resolves a course's full detail, memoized per course id for
// the lifetime of the run. On any failure the detail is still produced, with
// empty content, and the error goes to the log; it never propagates past
// this boundary.
func (s *Scraper) ScrapeCourse(ctx context.Context, course models.Course) models.CourseDetail {
	s.tasksMu.Lock()
	task, ok := s.tasks.Get(course.ID)
	if !ok {
		task = &courseTask{}
		s.tasks.Add(course.ID, task)
	}
	s.tasksMu.Unlock()

	task.once.Do(func() {
		task.detail = s.scrapeDetail(ctx, course)
	})
	return task.detail
}

func (s *Scraper) scrapeDetail(ctx context.Context, course models.Course) models.CourseDetail {
	detail := models.CourseDetail{
		Title:         course.Title,
		Category:      course.Category,
		Price:         course.Price,
		SectionsCount: course.SectionsCount,
		LessonsCount:  course.LessonsCount,
	}

	content, err := s.scrapeContent(ctx, course)
	if err != nil {
		scrapeErr := &ScrapeError{CourseID: course.ID, Title: course.Title, Err: err}
		slog.Error("course scrape failed, exporting with empty content",
			slog.String("course", course.Title),
			slog.Any("error", scrapeErr),
		)
		s.metrics.IncFailure("course")
		return detail
	}

	detail.Content = content
	s.metrics.IncCourse()
	return detail
}

// scrapeContent walks the course edit page: the top-level layout blocks,
// minus the configured head/tail chrome, are the sections; each section's
// lesson sub-blocks are scraped concurrently.
func (s *Scraper) scrapeContent(ctx context.Context, course models.Course) (models.CourseContent, error) {
	var content models.CourseContent

	markup, err := s.fetcher.DetailPage(ctx, course.EditURL)
	if err != nil {
		return content, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return content, fmt.Errorf("parse edit page: %w", err)
	}

	blocks := doc.Find("div.col-xl-12")
	head := s.cfg.SectionSliceHead
	end := blocks.Length() - s.cfg.SectionSliceTail
	if end <= head {
		return content, nil
	}
	sections := blocks.Slice(head, end)

	for i := 0; i < sections.Length(); i++ {
		section := sections.Eq(i)
		// A missing header or colon leaves the title empty rather than
		// skipping the section, so its lessons still reach the export.
		title, _ := extract.SectionTitle(section)

		lessons, err := s.scrapeSectionLessons(ctx, section)
		if err != nil {
			return models.CourseContent{}, err
		}
		content.Set(title, lessons)
	}
	return content, nil
}

// scrapeSectionLessons resolves each lesson block's modal link and scrapes
// them all concurrently, preserving layout order. There is no bound on the
// fan-out within a section; the concurrency ceiling applies per course, not
// per lesson.
func (s *Scraper) scrapeSectionLessons(ctx context.Context, section *goquery.Selection) ([]models.Lesson, error) {
	blocks := section.Find("div.col-md-12")
	links := make([]string, 0, blocks.Length())
	for i := 0; i < blocks.Length(); i++ {
		link, ok := extract.LessonLink(blocks.Eq(i))
		if !ok {
			return nil, fmt.Errorf("lesson block %d has no modal link", i)
		}
		links = append(links, link)
	}

	lessons := make([]models.Lesson, len(links))
	errs := make([]error, len(links))
	var wg sync.WaitGroup
	for i, link := range links {
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			lessons[i], errs[i] = s.ScrapeLesson(ctx, link)
		}(i, link)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return lessons, nil
}
