package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"procline/internal/config"
	"procline/internal/db"
	"procline/internal/domain"
	"procline/internal/engine"
	"procline/internal/migrate"
	"procline/internal/service"
)

const testSecret = "server-test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
	now    *time.Time

	ProcID int64
	FinID  int64
}

func (s *testServer) Client() *http.Client { return s.client }

// setNow moves the clock shared by every engine copy behind the handler.
func (s *testServer) setNow(t time.Time) { *s.now = t }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return now }
	ctx := context.Background()
	procID, err := eng.Repo.InsertDepartment(ctx, domain.Department{Code: "PROC", Name: "Procurement", Active: true})
	if err != nil {
		t.Fatalf("seed department: %v", err)
	}
	finID, err := eng.Repo.InsertDepartment(ctx, domain.Department{Code: "FIN", Name: "Finance", Active: true})
	if err != nil {
		t.Fatalf("seed department: %v", err)
	}
	handler, err := New(Config{
		Service:  service.New(eng),
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowDevHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: eng,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
		now:    &now,
		ProcID: procID,
		FinID:  finID,
	}
	return testSrv, func() { testSrv.close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "1", "X-Actor-Role": "admin"}
}

func staffHeaders(dept int64) map[string]string {
	return map[string]string{
		"X-Actor-Id":         "10",
		"X-Actor-Role":       "staff",
		"X-Actor-Department": fmt.Sprintf("%d", dept),
	}
}

func (s *testServer) createProject(t *testing.T, code string, dept int64) CreateProjectResponse {
	t.Helper()
	res, data := doJSON(t, s.client, http.MethodPost, s.URL+"/v1/projects", map[string]any{
		"code":               code,
		"name":               "Project " + code,
		"department_id":      dept,
		"procurement_method": "direct_purchase",
		"budget":             10000,
		"planned_start_date": "2026-03-02",
	}, adminHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project status %d: %s", res.StatusCode, data)
	}
	var created CreateProjectResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return created
}

func TestStepLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	created := srv.createProject(t, "PRJ-1", srv.ProcID)
	if len(created.Steps) != 3 {
		t.Fatalf("expected generated steps, got %d", len(created.Steps))
	}
	first := created.Steps[0]

	res, data := doJSON(t, srv.Client(), http.MethodPut,
		fmt.Sprintf("%s/v1/steps/%d/status", srv.URL, first.ID),
		map[string]any{"status": "completed"}, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, data)
	}
	var completed StepResponse
	if err := json.Unmarshal(data, &completed); err != nil {
		t.Fatalf("unmarshal step: %v", err)
	}
	if completed.ActualEndDate == nil || *completed.ActualEndDate != "2026-03-02" {
		t.Fatalf("actual end = %v", completed.ActualEndDate)
	}

	// Auto-advance made step 2 in_progress.
	res, data = doJSON(t, srv.Client(), http.MethodGet,
		fmt.Sprintf("%s/v1/steps/%d", srv.URL, created.Steps[1].ID), nil, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get step status %d: %s", res.StatusCode, data)
	}
	var second StepResponse
	if err := json.Unmarshal(data, &second); err != nil {
		t.Fatal(err)
	}
	if second.Status != domain.StepInProgress {
		t.Fatalf("step 2 status = %s", second.Status)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet,
		fmt.Sprintf("%s/v1/projects/%d/progress", srv.URL, created.ID), nil, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("progress status %d: %s", res.StatusCode, data)
	}
	var prog ProgressResponse
	if err := json.Unmarshal(data, &prog); err != nil {
		t.Fatal(err)
	}
	if prog.CompletedSteps != 1 || prog.ProgressPercentage != 33 {
		t.Fatalf("progress = %+v", prog.Progress)
	}
}

func TestInvalidStatusReturnsBadRequestEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	created := srv.createProject(t, "PRJ-1", srv.ProcID)

	res, data := doJSON(t, srv.Client(), http.MethodPut,
		fmt.Sprintf("%s/v1/steps/%d/status", srv.URL, created.Steps[0].ID),
		map[string]any{"status": "done"}, adminHeaders())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "bad_request" {
		t.Fatalf("code = %q: %s", envelope.Error.Code, data)
	}
}

func TestDepartmentScopingOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	mine := srv.createProject(t, "PRJ-PROC", srv.ProcID)
	other := srv.createProject(t, "PRJ-FIN", srv.FinID)

	headers := staffHeaders(srv.ProcID)
	res, _ := doJSON(t, srv.Client(), http.MethodGet,
		fmt.Sprintf("%s/v1/projects/%d", srv.URL, mine.ID), nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("own project status %d", res.StatusCode)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet,
		fmt.Sprintf("%s/v1/projects/%d", srv.URL, other.ID), nil, headers)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("cross-department status %d: %s", res.StatusCode, data)
	}
	// A nonexistent id gets the same answer as an existing foreign one.
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects/99999", nil, headers)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("probe status %d", res.StatusCode)
	}
	// Admin gets a real not found.
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects/99999", nil, adminHeaders())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("admin probe status %d", res.StatusCode)
	}
}

func TestJWTLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"user_id":       7,
		"role":          "executive",
		"department_id": nil,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, data)
	}
	var token TokenResponse
	if err := json.Unmarshal(data, &token); err != nil {
		t.Fatal(err)
	}
	if token.Token == "" {
		t.Fatalf("empty token")
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + token.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, data)
	}
	var me domain.Actor
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatal(err)
	}
	if me.ID != 7 || me.Role != domain.RoleExecutive {
		t.Fatalf("me = %+v", me)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/projects", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestOverdueListingOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	srv.createProject(t, "PRJ-1", srv.ProcID)

	// Move the clock past every planned end date.
	srv.setNow(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/steps/overdue", nil, adminHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("overdue status %d: %s", res.StatusCode, data)
	}
	var steps []StepResponse
	if err := json.Unmarshal(data, &steps); err != nil {
		t.Fatal(err)
	}
	if len(steps) != 3 {
		t.Fatalf("overdue count = %d", len(steps))
	}
	for _, s := range steps {
		if !s.IsOverdue {
			t.Fatalf("step %d not flagged overdue", s.ID)
		}
	}
}
