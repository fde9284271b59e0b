package scrape

import "fmt"

// StatusError indicates a non-success response status from the admin host.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s %s", e.StatusCode, e.Method, e.URL)
}

// ScrapeError indicates a failure while scraping a single course's detail.
// It is caught at the course boundary and never aborts a backup run.
type ScrapeError struct {
	CourseID string
	Title    string
	Err      error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape course %q (%s): %v", e.Title, e.CourseID, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}
