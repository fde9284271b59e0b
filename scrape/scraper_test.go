package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/a2z-academy/course-backup/config"
	"github.com/a2z-academy/course-backup/models"
)

type fakeFetcher struct {
	mu          sync.Mutex
	listPages   map[int]*ListPage
	listErr     error
	pages       map[string]string
	pageErrs    map[string]error
	listCalls   int
	detailCalls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		listPages:   make(map[int]*ListPage),
		pages:       make(map[string]string),
		pageErrs:    make(map[string]error),
		detailCalls: make(map[string]int),
	}
}

func (f *fakeFetcher) ListPage(ctx context.Context, start, length int) (*ListPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	page, ok := f.listPages[start]
	if !ok {
		return nil, fmt.Errorf("no page registered for start=%d", start)
	}
	return page, nil
}

func (f *fakeFetcher) DetailPage(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls[pageURL]++
	if err, ok := f.pageErrs[pageURL]; ok {
		return "", err
	}
	markup, ok := f.pages[pageURL]
	if !ok {
		return "", fmt.Errorf("no page registered for %s", pageURL)
	}
	return markup, nil
}

func (f *fakeFetcher) calls(pageURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[pageURL]
}

func listRow(id, title string) ListRow {
	return ListRow{
		ID:               FlexString(id),
		Title:            fmt.Sprintf(`<a href="http://academy.test/edit/%s">%s</a>`, id, title),
		Price:            "Free",
		Category:         "<span>General</span>",
		LessonAndSection: "<b>Section</b> : 1<b>Lesson</b> : 1",
	}
}

func chromeBlock() string {
	return `<div class="col-xl-12">chrome</div>`
}

func sectionBlock(title string, lessonURLs ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="col-xl-12">`)
	fmt.Fprintf(&b, `<div class="mb-3">Section: %s</div>`, title)
	for _, u := range lessonURLs {
		fmt.Fprintf(&b, `<div class="col-md-12"><a href="#" onclick="showAjaxModal('%s', 'Edit')">edit</a></div>`, u)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// editPage surrounds the section blocks with the four leading and two
// trailing chrome blocks the real page carries.
func editPage(sections ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 4; i++ {
		b.WriteString(chromeBlock())
	}
	for _, s := range sections {
		b.WriteString(s)
	}
	b.WriteString(chromeBlock())
	b.WriteString(chromeBlock())
	b.WriteString("</body></html>")
	return b.String()
}

func lessonPage(lessonType, title string) string {
	return fmt.Sprintf(`
		<div class="alert alert-info"><strong>%s:</strong></div>
		<input name="title" value="%s">
		<input name="video_url" value="https://youtu.be/%s">`, lessonType, title, title)
}

func testScraper(t *testing.T, fetcher Fetcher) *Scraper {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://academy.test"
	s, err := NewScraper(cfg, fetcher, NewMetrics())
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	return s
}

func TestCoursesPaginatesInServerOrder(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.listPages[0] = &ListPage{
		Rows:       []ListRow{listRow("1", "Algebra"), listRow("2", "Physics")},
		TotalCount: 3,
	}
	fetcher.listPages[2] = &ListPage{
		Rows:       []ListRow{listRow("3", "Chemistry")},
		TotalCount: 3,
	}

	s := testScraper(t, fetcher)
	s.cfg.PageSize = 2

	courses, err := s.Courses(context.Background())
	if err != nil {
		t.Fatalf("Courses: %v", err)
	}
	if len(courses) != 3 {
		t.Fatalf("courses = %d, want 3", len(courses))
	}
	for i, want := range []string{"Algebra", "Physics", "Chemistry"} {
		if courses[i].Title != want {
			t.Fatalf("courses[%d].Title = %q, want %q", i, courses[i].Title, want)
		}
	}
	if fetcher.listCalls != 2 {
		t.Fatalf("list calls = %d, want 2", fetcher.listCalls)
	}

	first := courses[0]
	if first.ID != "1" || first.EditURL != "http://academy.test/edit/1" {
		t.Fatalf("unexpected first course %+v", first)
	}
	if first.Price == nil || *first.Price != 0 {
		t.Fatalf("free course price = %v, want 0", first.Price)
	}
	if first.Category == nil || *first.Category != "General" {
		t.Fatalf("category = %v", first.Category)
	}
	if first.SectionsCount == nil || *first.SectionsCount != 1 {
		t.Fatalf("sectionsCount = %v", first.SectionsCount)
	}
}

func TestCoursesDropsUnparseableRows(t *testing.T) {
	broken := listRow("2", "Physics")
	broken.Title = "<span>not a link</span>"

	fetcher := newFakeFetcher()
	fetcher.listPages[0] = &ListPage{
		Rows:       []ListRow{listRow("1", "Algebra"), broken, listRow("3", "Chemistry")},
		TotalCount: 3,
	}

	s := testScraper(t, fetcher)
	courses, err := s.Courses(context.Background())
	if err != nil {
		t.Fatalf("Courses: %v", err)
	}
	if len(courses) != 2 {
		t.Fatalf("courses = %d, want 2 (broken row dropped)", len(courses))
	}
	if courses[0].Title != "Algebra" || courses[1].Title != "Chemistry" {
		t.Fatalf("unexpected titles %q, %q", courses[0].Title, courses[1].Title)
	}
}

func TestCoursesPopulatedOnce(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.listPages[0] = &ListPage{Rows: []ListRow{listRow("1", "Algebra")}, TotalCount: 1}

	s := testScraper(t, fetcher)
	if _, err := s.Courses(context.Background()); err != nil {
		t.Fatalf("first Courses: %v", err)
	}
	if _, err := s.Courses(context.Background()); err != nil {
		t.Fatalf("second Courses: %v", err)
	}
	if fetcher.listCalls != 1 {
		t.Fatalf("list calls = %d, want 1 (master list cached)", fetcher.listCalls)
	}
}

func TestCoursesFetchFailureNotCached(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.listErr = errors.New("boom")

	s := testScraper(t, fetcher)
	if _, err := s.Courses(context.Background()); err == nil {
		t.Fatalf("expected error from failed scan")
	}

	fetcher.mu.Lock()
	fetcher.listErr = nil
	fetcher.listPages[0] = &ListPage{Rows: []ListRow{listRow("1", "Algebra")}, TotalCount: 1}
	fetcher.mu.Unlock()

	courses, err := s.Courses(context.Background())
	if err != nil {
		t.Fatalf("retry Courses: %v", err)
	}
	if len(courses) != 1 {
		t.Fatalf("courses = %d, want 1", len(courses))
	}
}

func newCourse(id, title string) models.Course {
	return models.Course{
		ID:      id,
		Title:   title,
		EditURL: "http://academy.test/edit/" + id,
	}
}

func TestScrapeCourseContent(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["http://academy.test/edit/1"] = editPage(
		sectionBlock("Basics", "http://academy.test/lesson/10", "http://academy.test/lesson/11"),
		sectionBlock("Advanced", "http://academy.test/lesson/12"),
	)
	fetcher.pages["http://academy.test/lesson/10"] = lessonPage("YouTube Video", "intro")
	fetcher.pages["http://academy.test/lesson/11"] = lessonPage("YouTube Video", "setup")
	fetcher.pages["http://academy.test/lesson/12"] = lessonPage("Quiz", "final")

	s := testScraper(t, fetcher)
	detail := s.ScrapeCourse(context.Background(), newCourse("1", "Algebra"))

	if detail.Title != "Algebra" {
		t.Fatalf("title = %q", detail.Title)
	}
	titles := detail.Content.Titles()
	if len(titles) != 2 || titles[0] != "Basics" || titles[1] != "Advanced" {
		t.Fatalf("section titles = %v", titles)
	}

	basics, _ := detail.Content.Lessons("Basics")
	if len(basics) != 2 {
		t.Fatalf("basics lessons = %d, want 2", len(basics))
	}
	// Lesson order follows layout order regardless of fetch completion.
	if *basics[0].Title != "intro" || *basics[1].Title != "setup" {
		t.Fatalf("lesson order = %q, %q", *basics[0].Title, *basics[1].Title)
	}
	if basics[0].VideoURL == nil || *basics[0].VideoURL != "https://youtu.be/intro" {
		t.Fatalf("videoUrl = %v", basics[0].VideoURL)
	}

	advanced, _ := detail.Content.Lessons("Advanced")
	if len(advanced) != 1 || advanced[0].VideoURL != nil {
		t.Fatalf("quiz lesson should have no video url, got %+v", advanced)
	}
}

func TestScrapeCourseMemoized(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["http://academy.test/edit/1"] = editPage(sectionBlock("Basics"))

	s := testScraper(t, fetcher)
	course := newCourse("1", "Algebra")

	first := s.ScrapeCourse(context.Background(), course)
	second := s.ScrapeCourse(context.Background(), course)

	if fetcher.calls("http://academy.test/edit/1") != 1 {
		t.Fatalf("edit page fetched %d times, want 1", fetcher.calls("http://academy.test/edit/1"))
	}
	if first.Title != second.Title || first.Content.Len() != second.Content.Len() {
		t.Fatalf("memoized results differ: %+v vs %+v", first, second)
	}
}

func TestScrapeCourseFailureIsolatedAndCached(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pageErrs["http://academy.test/edit/1"] = errors.New("edit page down")
	fetcher.pages["http://academy.test/edit/2"] = editPage(
		sectionBlock("Basics", "http://academy.test/lesson/20"),
	)
	fetcher.pages["http://academy.test/lesson/20"] = lessonPage("YouTube Video", "intro")

	s := testScraper(t, fetcher)

	failed := s.ScrapeCourse(context.Background(), newCourse("1", "Broken"))
	healthy := s.ScrapeCourse(context.Background(), newCourse("2", "Fine"))

	if failed.Content.Len() != 0 {
		t.Fatalf("failed course content should be empty, got %d sections", failed.Content.Len())
	}
	if failed.Title != "Broken" {
		t.Fatalf("failed course should keep its metadata, got %+v", failed)
	}
	if healthy.Content.Len() != 1 {
		t.Fatalf("sibling course content lost: %+v", healthy)
	}

	// Failures are cached too: fixing the page does not trigger a re-scrape.
	fetcher.mu.Lock()
	delete(fetcher.pageErrs, "http://academy.test/edit/1")
	fetcher.pages["http://academy.test/edit/1"] = editPage(sectionBlock("Recovered"))
	fetcher.mu.Unlock()

	again := s.ScrapeCourse(context.Background(), newCourse("1", "Broken"))
	if again.Content.Len() != 0 {
		t.Fatalf("failed scrape should stay cached, got %d sections", again.Content.Len())
	}
	if fetcher.calls("http://academy.test/edit/1") != 1 {
		t.Fatalf("edit page fetched %d times, want 1", fetcher.calls("http://academy.test/edit/1"))
	}
}

func TestScrapeCourseMissingLessonLinkFailsCourse(t *testing.T) {
	page := editPage(`<div class="col-xl-12"><div class="mb-3">Section: Basics</div><div class="col-md-12">no link here</div></div>`)
	fetcher := newFakeFetcher()
	fetcher.pages["http://academy.test/edit/1"] = page

	s := testScraper(t, fetcher)
	detail := s.ScrapeCourse(context.Background(), newCourse("1", "Algebra"))
	if detail.Content.Len() != 0 {
		t.Fatalf("course with an unresolvable lesson should export empty content")
	}
}

func TestScrapeCourseTooFewBlocks(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["http://academy.test/edit/1"] = `<html><body><div class="col-xl-12">only</div></body></html>`

	s := testScraper(t, fetcher)
	detail := s.ScrapeCourse(context.Background(), newCourse("1", "Tiny"))
	if detail.Content.Len() != 0 {
		t.Fatalf("page without section blocks should yield empty content")
	}
}

func TestScrapeLesson(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.pages["http://academy.test/lesson/10"] = lessonPage("YouTube Video", "intro")

	s := testScraper(t, fetcher)
	lesson, err := s.ScrapeLesson(context.Background(), "http://academy.test/lesson/10")
	if err != nil {
		t.Fatalf("ScrapeLesson: %v", err)
	}
	if lesson.LessonType == nil || *lesson.LessonType != "YouTube Video" {
		t.Fatalf("lessonType = %v", lesson.LessonType)
	}

	fetcher.pageErrs["http://academy.test/lesson/11"] = errors.New("gone")
	if _, err := s.ScrapeLesson(context.Background(), "http://academy.test/lesson/11"); err == nil {
		t.Fatalf("fetch failure should propagate")
	}
}
