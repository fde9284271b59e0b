// Package extract pulls structured values out of the admin interface's HTML.
//
// Every function is total over its input: a pattern that does not match
// reports ok=false (or leaves a field nil) instead of returning an error. The
// markup shape is externally controlled, so extraction is expected to miss
// silently when it changes.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/a2z-academy/course-backup/models"
)

var (
	sectionCountRe = regexp.MustCompile(`(?i)Section\s*:\s*(\d+)`)
	lessonCountRe  = regexp.MustCompile(`(?i)Lesson\s*:\s*(\d+)`)
	freeRe         = regexp.MustCompile(`(?i)\bFree\b`)
	numberRe       = regexp.MustCompile(`\d+(?:\.\d+)?`)
	modalURLRe     = regexp.MustCompile(`showAjaxModal\(\s*['"]([^'"]+)['"]`)
)

// fragment parses an HTML snippet into a queryable document. html.Parse is
// error tolerant, so this only fails on reader errors, which cannot happen
// with a string input.
func fragment(markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	return doc
}

// innerText flattens a snippet to its text content, dropping all tags.
func innerText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var buf strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.TextToken:
			buf.Write(z.Text())
		}
	}
}

// TitleCell reads the edit link and display title out of a course list title
// cell. The title is the anchor's text with any nested markup stripped.
func TitleCell(markup string) (editURL, title string, ok bool) {
	doc := fragment(markup)
	if doc == nil {
		return "", "", false
	}
	anchor := doc.Find("a").First()
	if anchor.Length() == 0 {
		return "", "", false
	}
	href, exists := anchor.Attr("href")
	if !exists {
		return "", "", false
	}
	return href, strings.TrimSpace(anchor.Text()), true
}

// Category reads the first span's text from a category cell.
func Category(markup string) (string, bool) {
	doc := fragment(markup)
	if doc == nil {
		return "", false
	}
	span := doc.Find("span").First()
	if span.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(span.Text()), true
}

// SectionLessonCounts reads the "Section: N" and "Lesson: N" labels from a
// list cell. Both labels must be present; if either is missing there is no
// partial result.
func SectionLessonCounts(markup string) (sections, lessons int, ok bool) {
	text := innerText(markup)
	sectionMatch := sectionCountRe.FindStringSubmatch(text)
	lessonMatch := lessonCountRe.FindStringSubmatch(text)
	if sectionMatch == nil || lessonMatch == nil {
		return 0, 0, false
	}
	sections, err := strconv.Atoi(sectionMatch[1])
	if err != nil {
		return 0, 0, false
	}
	lessons, err = strconv.Atoi(lessonMatch[1])
	if err != nil {
		return 0, 0, false
	}
	return sections, lessons, true
}

// Price reads a price cell. A "Free" marker (any case) short-circuits to
// exactly 0 before any numeric parse; otherwise the first numeric token is
// the decimal price.
func Price(markup string) (float64, bool) {
	text := innerText(markup)
	if freeRe.MatchString(text) {
		return 0, true
	}
	token := numberRe.FindString(text)
	if token == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// SectionTitle reads a section's display title from its layout block: the
// header's text after the first colon, e.g. "Section 1: Intro" -> "Intro".
func SectionTitle(sel *goquery.Selection) (string, bool) {
	header := sel.Find("div.mb-3").First()
	if header.Length() == 0 {
		return "", false
	}
	parts := strings.SplitN(header.Text(), ":", 2)
	if len(parts) < 2 {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// LessonLink finds the lesson's detail URL inside the onclick handler that
// opens its edit modal.
func LessonLink(sel *goquery.Selection) (string, bool) {
	anchor := sel.Find(`a[onclick*='showAjaxModal']`).First()
	if anchor.Length() == 0 {
		return "", false
	}
	m := modalURLRe.FindStringSubmatch(anchor.AttrOr("onclick", ""))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LessonDetail reads a lesson out of its detail-page fragment. The type label
// comes from the info banner and the title from the named title field; which
// type-specific fields get read depends on the label.
func LessonDetail(markup string) models.Lesson {
	var lesson models.Lesson
	doc := fragment(markup)
	if doc == nil {
		return lesson
	}

	banner := doc.Find(".alert.alert-info strong").First()
	if banner.Length() > 0 {
		label := strings.TrimSpace(banner.Text())
		label = strings.TrimRightFunc(label, unicode.IsPunct)
		label = strings.TrimSpace(label)
		lesson.LessonType = &label
	}

	if title := doc.Find(`input[name='title']`).First(); title.Length() > 0 {
		value := strings.TrimSpace(title.AttrOr("value", ""))
		lesson.Title = &value
	}

	if lesson.LessonType == nil {
		return lesson
	}

	switch label := strings.ToLower(*lesson.LessonType); {
	case strings.Contains(label, "youtube video"):
		if input := doc.Find(`input[name='video_url']`).First(); input.Length() > 0 {
			value := strings.TrimSpace(input.AttrOr("value", ""))
			lesson.VideoURL = &value
		}
	case strings.Contains(label, "document"):
		if value, ok := selectedValue(doc.Find(`select[name='lesson_type']`).First()); ok {
			lesson.DocumentType = &value
		} else if input := doc.Find(`input[name='document_url']`).First(); input.Length() > 0 {
			value := strings.TrimSpace(input.AttrOr("value", ""))
			lesson.DocumentURL = &value
		}
	}

	return lesson
}

// selectedValue mirrors a select element's value: the selected option, or the
// first option when none is marked selected.
func selectedValue(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	option := sel.Find("option[selected]").First()
	if option.Length() == 0 {
		option = sel.Find("option").First()
	}
	if option.Length() == 0 {
		return "", false
	}
	return option.AttrOr("value", option.Text()), true
}
