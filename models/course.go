// Package models defines data structures for the course backup tool.
package models

import (
	"bytes"
	"encoding/json"
)

// Course is one row of the admin course list. ID is the canonical external
// identifier and is always kept as a string, even when the server sends a
// number.
type Course struct {
	ID            string   `json:"id"`
	EditURL       string   `json:"editUrl"`
	Title         string   `json:"title"`
	Category      *string  `json:"category"`
	Price         *float64 `json:"price"`
	SectionsCount *int     `json:"sectionsCount"`
	LessonsCount  *int     `json:"lessonsCount"`
}

// Lesson is a single lesson scraped from its detail modal. Which of the
// type-specific fields are set depends on LessonType.
type Lesson struct {
	LessonType   *string `json:"lessonType"`
	Title        *string `json:"title"`
	VideoURL     *string `json:"videoUrl,omitempty"`
	DocumentType *string `json:"documentType,omitempty"`
	DocumentURL  *string `json:"documentUrl,omitempty"`
}

// CourseContent maps section titles to their lessons while preserving page
// layout order. Section titles are not guaranteed unique; setting an existing
// title replaces its lessons but keeps the first occurrence's position.
type CourseContent struct {
	titles  []string
	lessons map[string][]Lesson
}

// Set stores the lessons for a section title.
func (c *CourseContent) Set(title string, lessons []Lesson) {
	if c.lessons == nil {
		c.lessons = make(map[string][]Lesson)
	}
	if _, ok := c.lessons[title]; !ok {
		c.titles = append(c.titles, title)
	}
	c.lessons[title] = lessons
}

// Len reports the number of sections.
func (c *CourseContent) Len() int {
	return len(c.titles)
}

// Titles returns the section titles in layout order.
func (c *CourseContent) Titles() []string {
	out := make([]string, len(c.titles))
	copy(out, c.titles)
	return out
}

// Lessons returns the lessons stored under title.
func (c *CourseContent) Lessons(title string) ([]Lesson, bool) {
	lessons, ok := c.lessons[title]
	return lessons, ok
}

// MarshalJSON renders sections as a JSON object in layout order. Empty
// content serializes as [], which is how a failed course scrape appears in
// the export.
func (c CourseContent) MarshalJSON() ([]byte, error) {
	if len(c.titles) == 0 {
		return []byte("[]"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, title := range c.titles {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(title)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(c.lessons[title])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// BackupEntry is the per-course record of the export payload.
type BackupEntry struct {
	Category      *string       `json:"category"`
	Price         *float64      `json:"price"`
	SectionsCount *int          `json:"sectionsCount"`
	LessonsCount  *int          `json:"lessonsCount"`
	Content       CourseContent `json:"content"`
}

// CourseDetail is the full per-course scrape result held in the run cache.
type CourseDetail struct {
	Title         string
	Category      *string
	Price         *float64
	SectionsCount *int
	LessonsCount  *int
	Content       CourseContent
}

// Entry strips the title, which becomes the payload key instead.
func (d CourseDetail) Entry() BackupEntry {
	return BackupEntry{
		Category:      d.Category,
		Price:         d.Price,
		SectionsCount: d.SectionsCount,
		LessonsCount:  d.LessonsCount,
		Content:       d.Content,
	}
}

// BackupPayload is the export artifact: course title -> backup entry.
type BackupPayload map[string]BackupEntry
