package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

const catalogPage = `<html><body>
<select id="vr">
<option value="">Выберите группу</option>
<option rel="1" value="16479">БИПО22</option>
<option rel="1" value="16522">БОЗИоз23</option>
<option rel="1" value="abc">Сломанная</option>
</select>
</body></html>`

func TestFetchGroups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/raspisanie/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, catalogPage)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	entries, err := client.FetchGroups(context.Background())
	if err != nil {
		t.Fatalf("FetchGroups returned error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 catalog entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Name != "БИПО22" || entries[0].ExternalID != 16479 {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Name != "БОЗИоз23" || entries[1].ExternalID != 16522 {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestFetchGroupsEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>нет данных</body></html>")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	entries, err := client.FetchGroups(context.Background())
	if err != nil {
		t.Fatalf("empty page must not be an error, got: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for empty page, got %+v", entries)
	}
}

const timetablePage = `<html><body>
<div class="timetable-frame__row--2">
  <div class="timetable-frame-current-date__text--2">02.09.2025</div>
</div>
<div class="timetable-frame__row--3">
  <div class="timetable-frame-item">
    <div class="timetable-frame-item__number">1</div>
    <div class="timetable-frame-item__time"><span>08:30</span><span>10:00</span></div>
    <div class="timetable-frame-item__title">Математика</div>
    <div class="timetable-frame-item__type">Лекция</div>
    <div class="timetable-frame-item__text--1">
      <p>Аудитория: Э-406</p>
      <p>Преподаватель: Иванова А.Б.</p>
    </div>
  </div>
</div>
<div class="timetable-frame__row--3">
  <div class="timetable-frame-item">
    <div class="timetable-frame-item__number">3</div>
    <div class="timetable-frame-item__time"><span>12:10</span><span>13:40</span></div>
    <div class="timetable-frame-item__title">Физика</div>
    <div class="timetable-frame-item__type">Практика</div>
    <div class="timetable-frame-item__text--1">
      <p>Аудитория: ЭИОС</p>
    </div>
  </div>
  <div class="timetable-frame-item">
    <div class="timetable-frame-item__number">не число</div>
    <div class="timetable-frame-item__title">Мусор</div>
  </div>
</div>
<div class="timetable-frame__row--2">
  <div class="timetable-frame-current-date__text--2">03.09.2025</div>
</div>
<div class="timetable-frame__row--3">
  <div class="timetable-frame-item">
    <div class="timetable-frame-item__number">2</div>
    <div class="timetable-frame-item__time"><span>10:10</span><span>11:40</span></div>
    <div class="timetable-frame-item__title">История</div>
    <div class="timetable-frame-item__type"></div>
    <div class="timetable-frame-item__text--1">
      <p>Преподаватель: Петров В.Г.</p>
    </div>
  </div>
</div>
</body></html>`

func TestFetchTimetable(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotForm = r.PostForm
		io.WriteString(w, timetablePage)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	from := time.Date(2025, 9, 2, 0, 0, 0, 0, time.Local)
	to := time.Date(2025, 9, 16, 0, 0, 0, 0, time.Local)
	lessons, err := client.FetchTimetable(context.Background(), 16479, from, to)
	if err != nil {
		t.Fatalf("FetchTimetable returned error: %v", err)
	}

	if gotForm.Get("vr") != "16479" {
		t.Errorf("expected vr=16479 in form, got %q", gotForm.Get("vr"))
	}
	if gotForm.Get("from") != "02.09.2025" || gotForm.Get("to") != "16.09.2025" {
		t.Errorf("unexpected date span in form: from=%q to=%q", gotForm.Get("from"), gotForm.Get("to"))
	}

	// The block with a non-numeric number is skipped.
	if len(lessons) != 3 {
		t.Fatalf("expected 3 lessons, got %d: %+v", len(lessons), lessons)
	}

	first := lessons[0]
	if first.Number != 1 || first.Subject != "Математика" || first.Kind != "Лекция" {
		t.Errorf("unexpected first lesson: %+v", first)
	}
	if first.TimeStart.String() != "08:30" || first.TimeEnd.String() != "10:00" {
		t.Errorf("unexpected first lesson times: %s - %s", first.TimeStart, first.TimeEnd)
	}
	if first.Audience != "Э-406" || first.Teacher != "Иванова А.Б." {
		t.Errorf("unexpected first lesson details: %+v", first)
	}
	if !first.Date.Equal(time.Date(2025, 9, 2, 0, 0, 0, 0, time.Local)) {
		t.Errorf("unexpected first lesson date: %v", first.Date)
	}

	second := lessons[1]
	if second.Number != 3 || second.Audience != "ЭИОС" || second.Teacher != "" {
		t.Errorf("unexpected second lesson: %+v", second)
	}

	third := lessons[2]
	if third.Subject != "История" || third.Teacher != "Петров В.Г." {
		t.Errorf("unexpected third lesson: %+v", third)
	}
	if !third.Date.Equal(time.Date(2025, 9, 3, 0, 0, 0, 0, time.Local)) {
		t.Errorf("unexpected third lesson date: %v", third.Date)
	}
}

func TestFetchTimetableEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>Расписание не найдено</body></html>")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	lessons, err := client.FetchTimetable(context.Background(), 16479, time.Now(), time.Now().AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("empty page must not be an error, got: %v", err)
	}
	if len(lessons) != 0 {
		t.Errorf("expected no lessons, got %+v", lessons)
	}
}

func TestFetchTimetableHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testLogger())
	_, err := client.FetchTimetable(context.Background(), 16479, time.Now(), time.Now().AddDate(0, 0, 14))
	if err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}
