package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"timetable_notification_bot/internal/domain/timetable"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

const schedulePath = "/services/raspisanie/"

// The site serves the schedule pages to browsers only; plain client
// requests get an empty shell.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "ru-RU,ru;q=0.8,en-US;q=0.5,en;q=0.3",
}

// Client scrapes the schedule site. It implements both
// timetable.CatalogSource and timetable.ScheduleSource.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

func NewClient(baseURL string, log *logrus.Entry) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// FetchGroups loads the schedule page and reads the group catalog out of its
// group selector. An empty catalog is returned as (nil, nil): the caller
// treats it as a soft failure.
func (c *Client) FetchGroups(ctx context.Context) ([]timetable.CatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+schedulePath+"?id=0", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build group catalog request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("group catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("group catalog request returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse group catalog page: %w", err)
	}

	entries := make([]timetable.CatalogEntry, 0)
	doc.Find("select#vr option").Each(func(_ int, opt *goquery.Selection) {
		value, hasValue := opt.Attr("value")
		if _, hasRel := opt.Attr("rel"); !hasRel || !hasValue {
			return
		}
		externalID, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			c.log.WithField("value", value).Warn("Skipping group option with non-numeric value")
			return
		}
		name := strings.TrimSpace(opt.Text())
		if name == "" {
			return
		}
		entries = append(entries, timetable.CatalogEntry{Name: name, ExternalID: externalID})
	})

	if len(entries) == 0 {
		return nil, nil
	}
	return entries, nil
}

// FetchTimetable posts the schedule form for one group and scrapes the
// returned lesson blocks. Malformed lesson blocks are logged and skipped; an
// entirely empty page is returned as (nil, nil).
func (c *Client) FetchTimetable(ctx context.Context, groupID int64, from, to time.Time) ([]timetable.Lesson, error) {
	form := url.Values{
		"id":            {"0"},
		"rel":           {"0"},
		"grp":           {"0"},
		"prep":          {"0"},
		"audi":          {"0"},
		"vr":            {strconv.FormatInt(groupID, 10)},
		"from":          {timetable.FormatWireDate(from)},
		"to":            {timetable.FormatWireDate(to)},
		"submit_button": {"Показать"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+schedulePath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build timetable request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+schedulePath)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timetable request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timetable request returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timetable page: %w", err)
	}

	return c.parseLessons(doc), nil
}

// parseLessons walks the page's date headers and the lesson rows that follow
// each of them. The page groups lessons as:
//
//	div.timetable-frame__row--2   > .timetable-frame-current-date__text--2 (date)
//	div.timetable-frame__row--3   > .timetable-frame-item (one per lesson)
//	div.timetable-frame__row--3   ... until the next date row
func (c *Client) parseLessons(doc *goquery.Document) []timetable.Lesson {
	lessons := make([]timetable.Lesson, 0)

	doc.Find("div.timetable-frame-current-date__text--2").Each(func(_ int, dateElem *goquery.Selection) {
		date, err := timetable.ParseWireDate(strings.TrimSpace(dateElem.Text()), time.Local)
		if err != nil {
			return
		}

		row := dateElem.Closest("div.timetable-frame__row--2")
		for next := row.Next(); next.Length() > 0 && next.HasClass("timetable-frame__row--3"); next = next.Next() {
			next.Find(".timetable-frame-item").Each(func(_ int, item *goquery.Selection) {
				lesson, err := c.parseLessonItem(item, date)
				if err != nil {
					c.log.WithError(err).WithField("date", timetable.FormatWireDate(date)).
						Warn("Skipping malformed lesson block")
					return
				}
				lessons = append(lessons, lesson)
			})
		}
	})

	return lessons
}

func (c *Client) parseLessonItem(item *goquery.Selection, date time.Time) (timetable.Lesson, error) {
	lesson := timetable.Lesson{Date: date}

	numberText := strings.TrimSpace(item.Find(".timetable-frame-item__number").First().Text())
	number, err := strconv.Atoi(numberText)
	if err != nil {
		return lesson, fmt.Errorf("bad lesson number %q: %w", numberText, err)
	}
	lesson.Number = number

	spans := item.Find(".timetable-frame-item__time span")
	if spans.Length() < 2 {
		return lesson, fmt.Errorf("lesson time spans missing")
	}
	if lesson.TimeStart, err = timetable.ParseTimeOfDay(strings.TrimSpace(spans.Eq(0).Text())); err != nil {
		return lesson, fmt.Errorf("bad start time: %w", err)
	}
	if lesson.TimeEnd, err = timetable.ParseTimeOfDay(strings.TrimSpace(spans.Eq(1).Text())); err != nil {
		return lesson, fmt.Errorf("bad end time: %w", err)
	}

	lesson.Subject = strings.TrimSpace(item.Find(".timetable-frame-item__title").First().Text())
	if lesson.Subject == "" {
		return lesson, fmt.Errorf("lesson subject missing")
	}

	lesson.Kind = strings.TrimSpace(item.Find(".timetable-frame-item__type").First().Text())

	item.Find(".timetable-frame-item__text--1 p").Each(func(_ int, p *goquery.Selection) {
		text := p.Text()
		switch {
		case strings.Contains(text, "Аудитория:"):
			lesson.Audience = strings.TrimSpace(strings.Replace(text, "Аудитория:", "", 1))
		case strings.Contains(text, "Преподаватель:"):
			lesson.Teacher = strings.TrimSpace(strings.Replace(text, "Преподаватель:", "", 1))
		}
	})

	return lesson, nil
}
