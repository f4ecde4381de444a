package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eventreg/admin"
	"eventreg/mocks"
	"eventreg/models"
	"eventreg/registration"
	"eventreg/utils"
)

/* ---------- helpers ---------- */

var clock = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

type serverDeps struct {
	s        *gin.Engine
	store    *mocks.Store
	settings *mocks.MockSettingsRepo
	tokens   *utils.Tokens
}

func setupServer(t *testing.T, events ...models.Event) serverDeps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := mocks.NewStore()
	for _, e := range events {
		e := e
		if _, err := st.Events().Create(context.Background(), &e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	users := mocks.NewUserRepo()
	if err := users.Create(context.Background(), &models.User{Email: "admin@example.com", Password: "s3cret"}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	settings := &mocks.MockSettingsRepo{}
	tokens := utils.NewTokens("test-secret", time.Hour)

	svc := registration.NewService(st.Events(), st.Registrations(), settings, nil, time.UTC, registration.WithClock(clock))
	fac := admin.NewFacade(st.Events(), st.Registrations(), settings, utils.NewCacheInvalidator(rdb), nil, time.UTC)

	s := gin.New()
	limiters := RegisterRoutes(s, Deps{
		Users:        users,
		Registration: svc,
		Admin:        fac,
		Tokens:       tokens,
		Redis:        rdb,
		CacheTTL:     time.Minute,
		SubmitQuota:  100,
	})
	t.Cleanup(func() {
		for _, l := range limiters {
			l.Stop()
		}
	})
	return serverDeps{s: s, store: st, settings: settings, tokens: tokens}
}

func (d serverDeps) adminToken(t *testing.T) string {
	t.Helper()
	token, err := d.tokens.GenerateToken("admin@example.com", 1)
	if err != nil {
		t.Fatalf("gen token: %v", err)
	}
	return token
}

func doReq(s *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.ServeHTTP(w, req)
	return w
}

func openEvent(id, name, category, date string) models.Event {
	return models.Event{ID: id, Name: name, Category: category, RegistrationStart: "2026-03-01", RegistrationEnd: "2026-03-31", EventDate: date}
}

func seedEvents() []models.Event {
	return []models.Event{
		openEvent("e1", "Go Hack", "Hackathon", "2026-04-01"),
		openEvent("e2", "Cloud Conf", "Conference", "2026-04-01"),
		openEvent("e3", "Rust Hack", "Hackathon", "2026-04-02"),
	}
}

const validJSON = `{"fullName":"Jane O'Brien","email":"Jane@Example.com","collegeName":"City College","department":"Maths","eventId":"e1"}`

/* ---------- public ---------- */

func TestOptions_CascadeAndCache(t *testing.T) {
	d := setupServer(t, seedEvents()...)

	w := doReq(d.s, http.MethodGet, "/registration/options?category=Hackathon&eventDate=2026-04-02", "", "")
	if w.Code != 200 || w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("code=%d cache=%q", w.Code, w.Header().Get("X-Cache"))
	}
	var got struct {
		Open       bool     `json:"open"`
		Categories []string `json:"categories"`
		Dates      []string `json:"dates"`
		Events     []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Open || len(got.Categories) != 2 || len(got.Dates) != 2 || len(got.Events) != 1 || got.Events[0].ID != "e3" {
		t.Fatalf("got %+v", got)
	}

	w = doReq(d.s, http.MethodGet, "/registration/options?category=Hackathon&eventDate=2026-04-02", "", "")
	if w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("want HIT, got %q", w.Header().Get("X-Cache"))
	}
}

func TestForm_RendersOpenAndClosed(t *testing.T) {
	d := setupServer(t, seedEvents()...)
	w := doReq(d.s, http.MethodGet, "/?category=Hackathon", "", "")
	if w.Code != 200 {
		t.Fatalf("code=%d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `<option value="Hackathon" selected>`) || !strings.Contains(body, `<option value="2026-04-02">`) {
		t.Fatalf("cascade not rendered: %s", body)
	}

	closed := setupServer(t)
	w = doReq(closed.s, http.MethodGet, "/", "", "")
	if w.Code != 200 || !strings.Contains(w.Body.String(), "Registration is currently closed") {
		t.Fatalf("closed notice missing: %d", w.Code)
	}
}

func TestSubmit_JSONFlow(t *testing.T) {
	d := setupServer(t, seedEvents()...)

	w := doReq(d.s, http.MethodPost, "/registrations", validJSON, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"email":"jane@example.com"`) {
		t.Fatalf("body = %s", w.Body.String())
	}

	// same email, other event on the same date
	dup := strings.Replace(strings.Replace(validJSON, "Jane@Example.com", "JANE@example.com", 1), `"e1"`, `"e2"`, 1)
	w = doReq(d.s, http.MethodPost, "/registrations", dup, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Errors["email"] != "You have already registered for an event on this date." {
		t.Fatalf("errors = %v", resp.Errors)
	}

	bad := `{"fullName":"Jane123","email":"x","collegeName":"C","department":"D","eventId":""}`
	w = doReq(d.s, http.MethodPost, "/registrations", bad, "")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusUnprocessableEntity || resp.Errors["fullName"] == "" || resp.Errors["eventId"] != "Please select an event." {
		t.Fatalf("invalid: %d %v", w.Code, resp.Errors)
	}
}

func TestSubmit_Closed403(t *testing.T) {
	past := openEvent("old", "Old", "Conference", "2026-02-20")
	past.RegistrationStart, past.RegistrationEnd = "2026-02-01", "2026-02-10"
	d := setupServer(t, past)

	w := doReq(d.s, http.MethodPost, "/registrations", strings.Replace(validJSON, `"e1"`, `"old"`, 1), "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d", w.Code)
	}
}

func TestSubmit_StorageError500(t *testing.T) {
	d := setupServer(t, seedEvents()...)
	d.store.Err = &models.StorageError{Op: "list events", Err: context.DeadlineExceeded}

	w := doReq(d.s, http.MethodPost, "/registrations", validJSON, "")
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "Could not save registration. Try again later.") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestSubmit_BrowserForm(t *testing.T) {
	d := setupServer(t, seedEvents()...)
	form := url.Values{
		"fullName":    {"Jane Doe"},
		"email":       {"jane@example.com"},
		"collegeName": {"City College"},
		"department":  {"Maths"},
		"category":    {"Hackathon"},
		"eventDate":   {"2026-04-01"},
		"eventId":     {"e1"},
	}
	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		d.s.ServeHTTP(w, req)
		return w
	}

	w := post()
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "Thank you, Jane Doe") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	w = post()
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "already registered for an event on this date") {
		t.Fatalf("got %d", w.Code)
	}
}

/* ---------- auth ---------- */

func TestLogin(t *testing.T) {
	d := setupServer(t)

	w := doReq(d.s, http.MethodPost, "/login", `{"email":"admin@example.com","password":"wrong"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad creds: %d", w.Code)
	}
	w = doReq(d.s, http.MethodPost, "/login", `{"email":"admin@example.com","password":"s3cret"}`, "")
	if w.Code != 200 {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if _, err := d.tokens.VerifyToken(resp.Token); err != nil {
		t.Fatalf("token: %v", err)
	}
}

func TestAdmin_RequiresToken(t *testing.T) {
	d := setupServer(t)
	for _, p := range []string{"/admin/events", "/admin/registrations", "/admin/settings"} {
		if w := doReq(d.s, http.MethodGet, p, "", ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: %d", p, w.Code)
		}
	}
}

/* ---------- admin ---------- */

func TestAdmin_EventLifecycle(t *testing.T) {
	d := setupServer(t, seedEvents()...)
	tok := d.adminToken(t)

	// warm the option cache
	doReq(d.s, http.MethodGet, "/registration/options", "", "")
	if w := doReq(d.s, http.MethodGet, "/registration/options", "", ""); w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("cache not warm")
	}

	w := doReq(d.s, http.MethodPost, "/admin/events",
		`{"name":"Go Workshop","category":"Online Workshop","registrationStart":"2026-03-01","registrationEnd":"2026-03-20","eventDate":"2026-04-05"}`, tok)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		Event models.Event `json:"event"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Event.ID == "" {
		t.Fatalf("no id: %s", w.Body.String())
	}

	w = doReq(d.s, http.MethodGet, "/registration/options", "", "")
	if w.Header().Get("X-Cache") != "MISS" || !strings.Contains(w.Body.String(), "Online Workshop") {
		t.Fatalf("cache not purged: %q %s", w.Header().Get("X-Cache"), w.Body.String())
	}

	w = doReq(d.s, http.MethodPost, "/admin/events", `{"name":"","registrationStart":"2026-03-01","registrationEnd":"2026-02-01","eventDate":"2026-04-05"}`, tok)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid create: %d", w.Code)
	}

	w = doReq(d.s, http.MethodPut, "/admin/events/"+created.Event.ID,
		`{"name":"Go Workshop II","category":"Online Workshop","registrationStart":"2026-03-01","registrationEnd":"2026-03-25","eventDate":"2026-04-06"}`, tok)
	if w.Code != 200 || !strings.Contains(w.Body.String(), "Go Workshop II") {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}

	if w := doReq(d.s, http.MethodGet, "/admin/events/nope", "", tok); w.Code != http.StatusNotFound {
		t.Fatalf("missing event: %d", w.Code)
	}
	if w := doReq(d.s, http.MethodDelete, "/admin/events/"+created.Event.ID, "", tok); w.Code != 200 {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := doReq(d.s, http.MethodDelete, "/admin/events/"+created.Event.ID, "", tok); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}
}

func TestAdmin_RegistrationsListCountExportDelete(t *testing.T) {
	d := setupServer(t, seedEvents()...)
	tok := d.adminToken(t)

	for _, body := range []string{
		validJSON,
		strings.Replace(strings.Replace(validJSON, "Jane@Example.com", "sam@example.com", 1), `"e1"`, `"e2"`, 1),
		strings.Replace(validJSON, `"e1"`, `"e3"`, 1),
	} {
		if w := doReq(d.s, http.MethodPost, "/registrations", body, ""); w.Code != http.StatusCreated {
			t.Fatalf("seed registration: %d %s", w.Code, w.Body.String())
		}
	}

	w := doReq(d.s, http.MethodGet, "/admin/registrations?eventDate=2026-04-01", "", tok)
	var res admin.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != 200 || res.Count != 2 {
		t.Fatalf("list by date: %d %+v", w.Code, res)
	}
	w = doReq(d.s, http.MethodGet, "/admin/registrations?eventDate=2026-04-01&eventId=e3", "", tok)
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Count != 1 || res.Filter.EventDate != "" {
		t.Fatalf("event id should win: %+v", res)
	}

	w = doReq(d.s, http.MethodGet, "/admin/registrations/count?eventDate=2026-04-01", "", tok)
	if w.Code != 200 || !strings.Contains(w.Body.String(), `"count":2`) {
		t.Fatalf("count: %d %s", w.Code, w.Body.String())
	}
	if w := doReq(d.s, http.MethodGet, "/admin/registrations/count?eventDate=April", "", tok); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date: %d", w.Code)
	}
	w = doReq(d.s, http.MethodGet, "/admin/events/e1/count", "", tok)
	if !strings.Contains(w.Body.String(), `"count":1`) {
		t.Fatalf("event count: %s", w.Body.String())
	}

	w = doReq(d.s, http.MethodGet, "/admin/registrations/export", "", tok)
	if w.Code != 200 || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "event_registrations_") {
		t.Fatalf("disposition = %q", cd)
	}
	if lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n"); len(lines) != 4 {
		t.Fatalf("want 4 csv lines, got %d", len(lines))
	}

	// deleting an event removes its registrations
	if w := doReq(d.s, http.MethodDelete, "/admin/events/e1", "", tok); w.Code != 200 {
		t.Fatalf("delete event: %d", w.Code)
	}
	w = doReq(d.s, http.MethodGet, "/admin/registrations", "", tok)
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Count != 2 {
		t.Fatalf("after cascade: %d", res.Count)
	}

	if w := doReq(d.s, http.MethodDelete, "/admin/registrations/"+res.Registrations[0].ID, "", tok); w.Code != 200 {
		t.Fatalf("delete registration: %d", w.Code)
	}
	if w := doReq(d.s, http.MethodDelete, "/admin/registrations/missing", "", tok); w.Code != http.StatusNotFound {
		t.Fatalf("missing registration: %d", w.Code)
	}
}

func TestAdmin_Settings(t *testing.T) {
	d := setupServer(t)
	tok := d.adminToken(t)

	if w := doReq(d.s, http.MethodPut, "/admin/settings", `{"adminEmail":"","adminNotificationEnabled":true}`, tok); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("enable without address: %d", w.Code)
	}
	w := doReq(d.s, http.MethodPut, "/admin/settings", `{"adminEmail":"Ops@Example.com","adminNotificationEnabled":true}`, tok)
	if w.Code != 200 {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}
	w = doReq(d.s, http.MethodGet, "/admin/settings", "", tok)
	if !strings.Contains(w.Body.String(), `"adminEmail":"ops@example.com"`) || !strings.Contains(w.Body.String(), `"adminNotificationEnabled":true`) {
		t.Fatalf("get: %s", w.Body.String())
	}
	if d.settings.Settings.AdminEmail != "ops@example.com" {
		t.Fatalf("stored = %+v", d.settings.Settings)
	}

	w = doReq(d.s, http.MethodGet, "/admin/categories", "", tok)
	if !strings.Contains(w.Body.String(), "One-day Workshop") {
		t.Fatalf("categories: %s", w.Body.String())
	}
}
