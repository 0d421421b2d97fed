package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/blast-desk/internal/auth"
	"github.com/LeventeLantos/blast-desk/internal/campaign"
	"github.com/LeventeLantos/blast-desk/internal/landing"
	"github.com/LeventeLantos/blast-desk/internal/repo/memrepo"
	"github.com/LeventeLantos/blast-desk/internal/scheduler"
)

type testServer struct {
	mux     http.Handler
	mem     *memrepo.Store
	sweeper *scheduler.Scheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mem := memrepo.New()
	svc := campaign.NewService(campaign.Store{
		Blasts:     mem.Blasts,
		Assistants: mem.Assistants,
		Recipients: mem.Recipients,
		Contacts:   mem.Contacts,
	}, campaign.Options{})

	// Long interval so only the run on Start happens.
	s, err := scheduler.New("blast-sweeper", time.Hour, svc.CloseCompletedBlasts)
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	l, err := landing.New("+19095290130", "JOIN", nil)
	if err != nil {
		t.Fatalf("failed to create landing: %v", err)
	}

	gate := auth.NewGate(auth.Secrets{Admin: "max", Assistant: "assist", Max: "boss"}, false)
	h := NewHandler(svc, gate, s, l)
	return &testServer{mux: Router(h), mem: mem, sweeper: s}
}

// do sends a request carrying the session cookies of roles.
func (ts *testServer) do(t *testing.T, method, path string, body any, roles ...auth.Role) *httptest.ResponseRecorder {
	t.Helper()

	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	for _, role := range roles {
		req.AddCookie(&http.Cookie{Name: role.CookieName(), Value: "1"})
	}
	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d body=%q", want, rr.Code, rr.Body.String())
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	expectStatus(t, rr, status)
	if got := decodeBody(t, rr)["error"]; got != msg {
		t.Fatalf("expected error %q, got %v", msg, got)
	}
}

// seedBlast creates a blast through the API and returns its id and the ids
// of its recipients.
func (ts *testServer) seedBlast(t *testing.T, phones ...string) (int64, []int64) {
	t.Helper()

	rr := ts.do(t, http.MethodPost, "/api/admin/blasts",
		map[string]any{"message": "Hello", "phones": phones}, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusCreated)

	var res campaign.CreateBlastResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode blast: %v", err)
	}

	page, _, err := ts.mem.Recipients.ListPage(context.Background(), res.Blast.ID, 1000, 0)
	if err != nil {
		t.Fatalf("failed to list recipients: %v", err)
	}
	ids := make([]int64, len(page))
	for i, r := range page {
		ids[i] = r.ID
	}
	return res.Blast.ID, ids
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/health", nil)

	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}
	body := decodeBody(t, rr)
	if v, ok := body["ok"].(bool); !ok || !v {
		t.Fatalf("expected {ok:true}, got %v", body)
	}
}

func TestAuth_LoginLogout(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/auth", map[string]string{"action": "login", "role": "max", "password": "boss"})
	expectStatus(t, rr, http.StatusOK)
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "max_session" || cookies[0].Value != "1" {
		t.Fatalf("expected max_session cookie, got %v", cookies)
	}

	rr = ts.do(t, http.MethodPost, "/api/auth", map[string]string{"action": "logout"})
	expectStatus(t, rr, http.StatusOK)
	if n := len(rr.Result().Cookies()); n != 3 {
		t.Fatalf("expected 3 cleared cookies, got %d", n)
	}
}

func TestAuth_WrongPasswordSetsNoCookie(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/auth", map[string]string{"action": "login", "role": "max", "password": "nope"})

	expectError(t, rr, http.StatusUnauthorized, "Invalid password")
	if n := len(rr.Result().Cookies()); n != 0 {
		t.Fatalf("expected no cookie, got %d", n)
	}
}

func TestAuth_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	expectError(t, ts.do(t, http.MethodPost, "/api/auth", map[string]string{"action": "login", "role": "root", "password": "x"}),
		http.StatusBadRequest, "Invalid role")
	expectError(t, ts.do(t, http.MethodPost, "/api/auth", map[string]string{"action": "dance"}),
		http.StatusBadRequest, "Invalid action")
	expectError(t, ts.do(t, http.MethodPost, "/api/auth", "{not json"),
		http.StatusBadRequest, "Invalid request body")
}

func TestSession(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/auth/session", nil, auth.RoleAdmin, auth.RoleMax)
	expectStatus(t, rr, http.StatusOK)
	roles, ok := decodeBody(t, rr)["roles"].([]any)
	if !ok || len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %v", roles)
	}
}

func TestRoleGates(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method, path string
		allowed      auth.Role
		denied       auth.Role
	}{
		{http.MethodGet, "/api/admin/blasts/recent", auth.RoleAdmin, auth.RoleMax},
		{http.MethodGet, "/api/admin/contacts", auth.RoleAdmin, auth.RoleAssistant},
		{http.MethodGet, "/api/admin/sweeper/status", auth.RoleAdmin, auth.RoleMax},
		{http.MethodGet, "/api/blasts", auth.RoleAssistant, auth.RoleAdmin},
		{http.MethodGet, "/api/blasts", auth.RoleMax, auth.RoleAdmin},
		{http.MethodGet, "/api/assistants", auth.RoleMax, auth.RoleAssistant},
	}

	for _, tt := range tests {
		expectError(t, ts.do(t, tt.method, tt.path, nil), http.StatusUnauthorized, "Unauthorized")
		expectError(t, ts.do(t, tt.method, tt.path, nil, tt.denied), http.StatusUnauthorized, "Unauthorized")
		expectStatus(t, ts.do(t, tt.method, tt.path, nil, tt.allowed), http.StatusOK)
	}
}

func TestCreateBlast(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/admin/blasts", map[string]any{
		"message": "Hello",
		"phones":  []string{"+14155551234", "+14155551234", " "},
		"filters": map[string]string{"keyword": "JOIN"},
	}, auth.RoleAdmin)

	expectStatus(t, rr, http.StatusCreated)
	body := decodeBody(t, rr)
	if body["count"] != float64(1) {
		t.Fatalf("expected count 1, got %v", body["count"])
	}
	blast := body["blast"].(map[string]any)
	if blast["status"] != "open" || blast["cost_estimate_cents"] != float64(10) {
		t.Fatalf("unexpected blast %v", blast)
	}
	if blast["filters_json"] != `{"keyword":"JOIN"}` {
		t.Fatalf("unexpected filters %v", blast["filters_json"])
	}
}

func TestCreateBlast_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	expectError(t, ts.do(t, http.MethodPost, "/api/admin/blasts",
		map[string]any{"message": "Hello", "phones": []string{" "}}, auth.RoleAdmin),
		http.StatusBadRequest, "Select at least one recipient")

	expectError(t, ts.do(t, http.MethodPost, "/api/admin/blasts",
		map[string]any{"message": "", "phones": []string{"+14155551234"}}, auth.RoleAdmin),
		http.StatusBadRequest, "Message is required")

	rr := ts.do(t, http.MethodGet, "/api/admin/blasts/recent", nil, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	if items := decodeBody(t, rr)["items"].([]any); len(items) != 0 {
		t.Fatalf("expected no blasts, got %d", len(items))
	}
}

func TestStoreFailureIsGeneric500(t *testing.T) {
	ts := newTestServer(t)
	ts.mem.FailWith(errors.New("pq: connection refused"))

	rr := ts.do(t, http.MethodGet, "/api/admin/blasts/recent", nil, auth.RoleAdmin)

	expectError(t, rr, http.StatusInternalServerError, "Failed to load campaigns")
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("internal error leaked to client: %q", rr.Body.String())
	}
}

func TestRecentBlastsAndStatus(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.seedBlast(t, "+16502530000", "+16502530001")

	rr := ts.do(t, http.MethodGet, "/api/admin/blasts/recent", nil, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	items := decodeBody(t, rr)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 blast, got %d", len(items))
	}
	first := items[0].(map[string]any)
	if first["pending_count"] != float64(2) || first["sent_count"] != float64(0) {
		t.Fatalf("unexpected counts %v", first)
	}

	path := "/api/admin/blasts/" + itoa(id) + "/status"
	expectStatus(t, ts.do(t, http.MethodPatch, path, map[string]string{"status": "closed"}, auth.RoleAdmin), http.StatusOK)
	expectError(t, ts.do(t, http.MethodPatch, path, map[string]string{"status": "gone"}, auth.RoleAdmin),
		http.StatusBadRequest, "Status must be open or closed")
	expectError(t, ts.do(t, http.MethodPatch, "/api/admin/blasts/999/status", map[string]string{"status": "open"}, auth.RoleAdmin),
		http.StatusNotFound, "Campaign not found")
	expectError(t, ts.do(t, http.MethodPatch, "/api/admin/blasts/abc/status", map[string]string{"status": "open"}, auth.RoleAdmin),
		http.StatusBadRequest, "Invalid id")

	rr = ts.do(t, http.MethodGet, "/api/blasts?status=closed", nil, auth.RoleAssistant)
	expectStatus(t, rr, http.StatusOK)
	if n := len(decodeBody(t, rr)["items"].([]any)); n != 1 {
		t.Fatalf("expected 1 closed blast, got %d", n)
	}
}

func TestTasksFlow(t *testing.T) {
	ts := newTestServer(t)
	id, rids := ts.seedBlast(t, "+16502530000", "+16502530001", "+16502530002")

	expectStatus(t, ts.do(t, http.MethodPost, "/api/tasks/"+itoa(rids[0])+"/complete", nil, auth.RoleAssistant), http.StatusOK)
	expectError(t, ts.do(t, http.MethodPost, "/api/tasks/"+itoa(rids[0])+"/complete", nil, auth.RoleAssistant),
		http.StatusConflict, "Task cannot be completed from its current state")

	expectError(t, ts.do(t, http.MethodPost, "/api/tasks/"+itoa(rids[1])+"/fail", map[string]string{"reason": " "}, auth.RoleAssistant),
		http.StatusBadRequest, "Failure reason is required")
	rr := ts.do(t, http.MethodPost, "/api/tasks/"+itoa(rids[1])+"/fail", map[string]string{"reason": "no WhatsApp"}, auth.RoleAssistant)
	expectStatus(t, rr, http.StatusOK)
	if decodeBody(t, rr)["failed"] != true {
		t.Fatalf("expected failed task, got %q", rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/api/blasts/"+itoa(id)+"/tasks?filter=pending", nil, auth.RoleAssistant)
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if n := len(body["tasks"].([]any)); n != 1 {
		t.Fatalf("expected 1 pending task, got %d", n)
	}
	stats := body["stats"].(map[string]any)
	if stats["total"] != float64(3) || stats["completed"] != float64(1) || stats["failed"] != float64(1) {
		t.Fatalf("unexpected stats %v", stats)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/api/tasks/"+itoa(rids[0])+"/reopen", nil, auth.RoleAssistant), http.StatusOK)

	rr = ts.do(t, http.MethodPost, "/api/blasts/"+itoa(id)+"/tasks/complete-all", nil, auth.RoleAssistant)
	expectStatus(t, rr, http.StatusOK)
	if decodeBody(t, rr)["updated"] != float64(2) {
		t.Fatalf("expected 2 updated, got %q", rr.Body.String())
	}

	expectError(t, ts.do(t, http.MethodGet, "/api/blasts/"+itoa(id)+"/tasks?filter=nope", nil, auth.RoleAssistant),
		http.StatusBadRequest, `Invalid filter "nope"`)
	expectError(t, ts.do(t, http.MethodPost, "/api/tasks/999/complete", nil, auth.RoleAssistant),
		http.StatusNotFound, "Task not found")
}

func TestSweeperEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.seedBlast(t, "+16502530000")
	expectStatus(t, ts.do(t, http.MethodPost, "/api/blasts/"+itoa(id)+"/tasks/complete-all", nil, auth.RoleAssistant), http.StatusOK)

	rr := ts.do(t, http.MethodGet, "/api/admin/sweeper/status", nil, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	if running, ok := decodeBody(t, rr)["running"].(bool); !ok || running {
		t.Fatalf("expected running=false, got %q", rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/admin/sweeper/start", nil, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	if running, ok := decodeBody(t, rr)["running"].(bool); !ok || !running {
		t.Fatalf("expected running=true after start, got %q", rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/admin/sweeper/stop", nil, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if running, ok := body["running"].(bool); !ok || running {
		t.Fatalf("expected running=false after stop, got %v", body)
	}
	if body["last_result"] != float64(1) {
		t.Fatalf("expected the sweep to close 1 blast, got %v", body)
	}

	blast, err := ts.mem.Blasts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if blast.Status != "closed" {
		t.Fatalf("expected blast closed by sweeper, got %q", blast.Status)
	}
}

func TestAssistantsAndAssignment(t *testing.T) {
	ts := newTestServer(t)
	id, rids := ts.seedBlast(t, "+16502530000", "+16502530001")

	rr := ts.do(t, http.MethodPost, "/api/assistants", map[string]string{"display_name": "Ana", "code": "ana"}, auth.RoleMax)
	expectStatus(t, rr, http.StatusCreated)
	aid := int64(decodeBody(t, rr)["id"].(float64))

	expectError(t, ts.do(t, http.MethodPost, "/api/assistants", map[string]string{"display_name": "Bo", "code": "ana"}, auth.RoleMax),
		http.StatusConflict, "Code already exists")

	assign := map[string]any{"recipient_ids": rids, "assistant_id": aid}
	for i := 0; i < 2; i++ {
		rr = ts.do(t, http.MethodPost, "/api/recipients/assign", assign, auth.RoleMax)
		expectStatus(t, rr, http.StatusOK)
	}

	rr = ts.do(t, http.MethodGet, "/api/blasts/"+itoa(id)+"/recipients?page=1&page_size=1", nil, auth.RoleMax)
	expectStatus(t, rr, http.StatusOK)
	page := decodeBody(t, rr)
	if page["total"] != float64(2) || page["pages"] != float64(2) {
		t.Fatalf("unexpected page %v", page)
	}
	first := page["recipients"].([]any)[0].(map[string]any)
	if first["assigned_to"] != float64(aid) || first["assistant_name"] != "Ana" {
		t.Fatalf("unexpected recipient %v", first)
	}

	rr = ts.do(t, http.MethodPatch, "/api/assistants/"+itoa(aid), map[string]any{"active": false}, auth.RoleMax)
	expectStatus(t, rr, http.StatusOK)
	expectError(t, ts.do(t, http.MethodPost, "/api/recipients/assign", assign, auth.RoleMax),
		http.StatusConflict, "Assistant Ana is inactive")

	rr = ts.do(t, http.MethodPost, "/api/assistants/"+itoa(aid)+"/toggle", nil, auth.RoleMax)
	expectStatus(t, rr, http.StatusOK)
	if decodeBody(t, rr)["active"] != true {
		t.Fatalf("expected active after toggle, got %q", rr.Body.String())
	}

	expectStatus(t, ts.do(t, http.MethodDelete, "/api/assistants/"+itoa(aid), nil, auth.RoleMax), http.StatusOK)
	expectError(t, ts.do(t, http.MethodDelete, "/api/assistants/"+itoa(aid), nil, auth.RoleMax),
		http.StatusNotFound, "Assistant not found")

	for _, rid := range rids {
		r, err := ts.mem.Recipients.Get(context.Background(), rid)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if r.AssignedTo != nil {
			t.Fatalf("expected recipient %d unassigned, got %d", rid, *r.AssignedTo)
		}
	}

	expectError(t, ts.do(t, http.MethodPost, "/api/recipients/unassign", map[string]any{"recipient_ids": []int64{}}, auth.RoleMax),
		http.StatusBadRequest, "Select at least one recipient")
}

func TestLoadRecipients_InvalidPagingFallsBackToDefaults(t *testing.T) {
	ts := newTestServer(t)
	id, _ := ts.seedBlast(t, "+16502530000")

	rr := ts.do(t, http.MethodGet, "/api/blasts/"+itoa(id)+"/recipients?page=abc&page_size=zzz", nil, auth.RoleMax)
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if body["page"] != float64(1) || body["page_size"] != float64(campaign.DefaultPageSize) {
		t.Fatalf("expected defaults, got %v", body)
	}
}

func TestContactsImportListExport(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/admin/contacts/import",
		"phone,keyword,received_at\n+16502530000,join,2024-03-01T10:00:00Z\nbad,join,\n", auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	body := decodeBody(t, rr)
	if body["imported"] != float64(1) || body["invalid"] != float64(1) {
		t.Fatalf("unexpected import result %v", body)
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("file", "contacts.csv")
	if err != nil {
		t.Fatalf("CreateFormFile() error: %v", err)
	}
	_, _ = fw.Write([]byte("phone\n+442083661177\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/contacts/import", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: auth.RoleAdmin.CookieName(), Value: "1"})
	rr = httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	expectStatus(t, rr, http.StatusOK)
	if decodeBody(t, rr)["imported"] != float64(1) {
		t.Fatalf("unexpected multipart import result %q", rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/api/admin/contacts?phone=650", nil, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	if n := len(decodeBody(t, rr)["items"].([]any)); n != 1 {
		t.Fatalf("expected 1 contact, got %d", n)
	}

	rr = ts.do(t, http.MethodGet, "/api/admin/contacts/export?phone=650", nil, auth.RoleAdmin)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected text/csv, got %q", ct)
	}
	want := "phone_e164,keyword,received_at,country_iso2\n+16502530000,JOIN,2024-03-01T10:00:00Z,US\n"
	if rr.Body.String() != want {
		t.Fatalf("unexpected export %q", rr.Body.String())
	}

	expectError(t, ts.do(t, http.MethodGet, "/api/admin/contacts?from=yesterday", nil, auth.RoleAdmin),
		http.StatusBadRequest, `Invalid from date "yesterday"`)
}

func TestLanding(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/", nil)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected text/html, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "https://wa.me/19095290130?text=JOIN") {
		t.Fatalf("expected wa.me link in page")
	}

	rr = ts.do(t, http.MethodGet, "/qr.png", nil)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected PNG signature")
	}

	rr = ts.do(t, http.MethodGet, "/api/landing", nil)
	expectStatus(t, rr, http.StatusOK)
	if decodeBody(t, rr)["url"] != "https://wa.me/19095290130?text=JOIN" {
		t.Fatalf("unexpected landing info %q", rr.Body.String())
	}

	expectStatus(t, ts.do(t, http.MethodGet, "/nope", nil), http.StatusNotFound)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
