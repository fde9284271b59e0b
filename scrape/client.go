package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/a2z-academy/course-backup/config"
)

const listPath = "/admin/get_courses"

// ListRow is one raw row of the paginated course list. Apart from the id,
// every field is an HTML fragment the server renders into its data table.
type ListRow struct {
	ID               FlexString `json:"id"`
	Title            string     `json:"title"`
	Price            string     `json:"price"`
	Category         string     `json:"category"`
	LessonAndSection string     `json:"lesson_and_section"`
}

// ListPage is one page of the course list plus the server-reported total.
type ListPage struct {
	Rows       []ListRow
	TotalCount int
}

// FlexString decodes a JSON value that may arrive as either a string or a
// number. Course ids are normalised to strings and never compared
// numerically.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*s = FlexString(value)
		return nil
	}
	var value json.Number
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*s = FlexString(value.String())
	return nil
}

// Client issues authenticated requests against the admin host. The session
// is whatever cookie the caller supplies; there is no login flow and no
// caching at this layer.
type Client struct {
	http    *resty.Client
	metrics *Metrics
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) *Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeader("user-agent", cfg.UserAgent)
	if cfg.SessionCookie != "" {
		httpClient.SetHeader("cookie", cfg.SessionCookie)
	}

	return &Client{
		http:    httpClient,
		metrics: metrics,
	}
}

// HTTP exposes the underlying resty client, mainly so tests can swap its
// transport.
func (c *Client) HTTP() *resty.Client {
	return c.http
}

type listResponse struct {
	Data            []ListRow  `json:"data"`
	RecordsFiltered FlexString `json:"recordsFiltered"`
}

// ListPage fetches one page of the course list via the form-encoded list
// endpoint. The filter parameters are fixed; only the pagination window
// varies. The caller does not retry on failure.
func (c *Client) ListPage(ctx context.Context, start, length int) (*ListPage, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"category_id":   "all",
			"status":        "all",
			"instructor_id": "all",
			"price":         "all",
			"ids":           "1",
			"start":         strconv.Itoa(start),
			"length":        strconv.Itoa(length),
		}).
		Post(listPath)
	c.metrics.IncRequest("list")
	if err != nil {
		return nil, fmt.Errorf("fetch course list: %w", err)
	}
	c.metrics.ObserveDuration(res.Time())
	if res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		return nil, &StatusError{Method: http.MethodPost, URL: res.Request.URL, StatusCode: res.StatusCode()}
	}

	var body listResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode course list: %w", err)
	}
	total, err := strconv.Atoi(string(body.RecordsFiltered))
	if err != nil {
		return nil, fmt.Errorf("invalid recordsFiltered %q", string(body.RecordsFiltered))
	}

	return &ListPage{Rows: body.Data, TotalCount: total}, nil
}

// DetailPage fetches a course edit page or lesson modal fragment and returns
// the raw HTML.
func (c *Client) DetailPage(ctx context.Context, pageURL string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(pageURL)
	c.metrics.IncRequest("detail")
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	c.metrics.ObserveDuration(res.Time())
	if res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		return "", &StatusError{Method: http.MethodGet, URL: res.Request.URL, StatusCode: res.StatusCode()}
	}
	return string(res.Body()), nil
}
