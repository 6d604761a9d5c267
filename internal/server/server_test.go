package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"novadream/internal/config"
	"novadream/internal/db"
	"novadream/internal/domain"
	"novadream/internal/engine"
	"novadream/internal/migrate"
	"novadream/internal/server"
)

const (
	testOwner  = "owner-1"
	testSecret = "test-secret"
)

type stubCompleter struct {
	Reply string
}

func (s *stubCompleter) Complete(ctx context.Context, history []domain.ChatMessage, userMessage string) (string, error) {
	return s.Reply, nil
}

type testEnv struct {
	Server *httptest.Server
	Engine engine.Engine
}

func newTestEnv(t *testing.T, assistant engine.Completer) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	e.Executor.Now = e.Now
	e.Assistant = assistant

	handler, err := server.New(server.Config{
		Engine: e,
		Auth: server.AuthConfig{
			JWTSecret:              testSecret,
			AllowLegacyOwnerHeader: true,
			Logger:                 log.New(io.Discard, "", 0),
		},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return testEnv{Server: srv, Engine: e}
}

// do sends a JSON request as the legacy-header owner unless headers override.
func (env testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.Server.URL+path, payload)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers == nil {
		headers = map[string]string{"X-Owner-Id": testOwner}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := env.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, raw
}

func decodeInto(t *testing.T, raw []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeInto(t, raw, &body)
	return body.Error.Code
}

func TestHealthIsOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	status, raw := env.do(t, http.MethodGet, "/v0/health", nil, map[string]string{})
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, raw)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)
	status, raw := env.do(t, http.MethodGet, "/v0/projects", nil, map[string]string{})
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d: %s", status, raw)
	}
	if code := errorCode(t, raw); code != "unauthorized" {
		t.Fatalf("code = %q", code)
	}
}

func TestJWTAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "jwt-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	status, raw := env.do(t, http.MethodPost, "/v0/projects",
		map[string]string{"title": "From JWT"},
		map[string]string{"Authorization": "Bearer " + token})
	if status != http.StatusCreated {
		t.Fatalf("status = %d: %s", status, raw)
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "jwt-user",
	}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatal(err)
	}
	status, raw = env.do(t, http.MethodGet, "/v0/projects", nil,
		map[string]string{"Authorization": "Bearer " + forged})
	if status != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d: %s", status, raw)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)
	plain, _, err := env.Engine.CreateAPIKey(context.Background(), testOwner, "ci")
	if err != nil {
		t.Fatal(err)
	}

	status, raw := env.do(t, http.MethodGet, "/v0/projects", nil,
		map[string]string{"X-Api-Key": plain})
	if status != http.StatusOK {
		t.Fatalf("status = %d: %s", status, raw)
	}

	status, _ = env.do(t, http.MethodGet, "/v0/projects", nil,
		map[string]string{"X-Api-Key": "nvd_bogus"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bogus key status = %d", status)
	}
}

func TestProjectCRUDAndOwnerIsolation(t *testing.T) {
	env := newTestEnv(t, nil)

	status, raw := env.do(t, http.MethodPost, "/v0/projects",
		map[string]string{"title": "Side Project", "segment": "saas"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %s", status, raw)
	}
	var created struct {
		ID      string `json:"id"`
		Segment string `json:"segment"`
		Status  string `json:"status"`
	}
	decodeInto(t, raw, &created)
	if created.Segment != "saas" || created.Status != "planned" {
		t.Fatalf("created = %+v", created)
	}

	status, raw = env.do(t, http.MethodGet, "/v0/projects/"+created.ID, nil,
		map[string]string{"X-Owner-Id": "someone-else"})
	if status != http.StatusNotFound {
		t.Fatalf("foreign owner status = %d: %s", status, raw)
	}

	status, raw = env.do(t, http.MethodPatch, "/v0/projects/"+created.ID,
		map[string]any{"status": "active", "progress": 25}, nil)
	if status != http.StatusOK {
		t.Fatalf("patch status = %d: %s", status, raw)
	}
	var patched struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	decodeInto(t, raw, &patched)
	if patched.Status != "active" || patched.Progress != 25 {
		t.Fatalf("patched = %+v", patched)
	}
}

func TestMissionInvalidTransition(t *testing.T) {
	env := newTestEnv(t, nil)
	_, raw := env.do(t, http.MethodPost, "/v0/projects", map[string]string{"title": "p"}, nil)
	var project struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &project)

	_, raw = env.do(t, http.MethodPost, "/v0/projects/"+project.ID+"/missions",
		map[string]string{"title": "m"}, nil)
	var mission struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &mission)

	status, raw := env.do(t, http.MethodPatch, "/v0/missions/"+mission.ID,
		map[string]string{"status": "completed"}, nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", status, raw)
	}
	if code := errorCode(t, raw); code != "invalid_transition" {
		t.Fatalf("code = %q", code)
	}
}

func TestChatAndConfirmDirective(t *testing.T) {
	env := newTestEnv(t, &stubCompleter{Reply: "On it!\n[[ACTION:CREATE_TASK|title=Call the bank]]"})

	status, raw := env.do(t, http.MethodPost, "/v0/chat",
		map[string]string{"message": "remind me to call the bank"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("chat status = %d: %s", status, raw)
	}
	var chat struct {
		DisplayText string `json:"display_text"`
		Cards       []struct {
			MessageID string `json:"message_id"`
			Index     int    `json:"index"`
			State     string `json:"state"`
		} `json:"cards"`
	}
	decodeInto(t, raw, &chat)
	if chat.DisplayText != "On it!" {
		t.Fatalf("display text = %q", chat.DisplayText)
	}
	if len(chat.Cards) != 1 || chat.Cards[0].State != "pending" {
		t.Fatalf("cards = %+v", chat.Cards)
	}

	ref := map[string]any{"message_id": chat.Cards[0].MessageID, "index": chat.Cards[0].Index}
	status, raw = env.do(t, http.MethodPost, "/v0/directives/confirm", ref, nil)
	if status != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", status, raw)
	}
	var card struct {
		State string `json:"state"`
	}
	decodeInto(t, raw, &card)
	if card.State != "executed" {
		t.Fatalf("state = %q", card.State)
	}

	status, raw = env.do(t, http.MethodPost, "/v0/directives/confirm", ref, nil)
	if status != http.StatusConflict {
		t.Fatalf("second confirm status = %d: %s", status, raw)
	}
	if code := errorCode(t, raw); code != "action_done" {
		t.Fatalf("code = %q", code)
	}

	status, raw = env.do(t, http.MethodGet, "/v0/tasks", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list tasks status = %d: %s", status, raw)
	}
	var tasks []struct {
		Title string `json:"title"`
	}
	decodeInto(t, raw, &tasks)
	if len(tasks) != 1 || tasks[0].Title != "Call the bank" {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestRoadmapPreviewAndApplyOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	_, raw := env.do(t, http.MethodPost, "/v0/projects", map[string]string{"title": "Side Project"}, nil)
	var project struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &project)

	body := map[string]string{"text": "- Build landing page (~2w)\n- Ship newsletter\n"}
	status, raw := env.do(t, http.MethodPost, fmt.Sprintf("/v0/projects/%s/roadmap/preview", project.ID), body, nil)
	if status != http.StatusOK {
		t.Fatalf("preview status = %d: %s", status, raw)
	}
	var preview struct {
		Create    int `json:"create"`
		Update    int `json:"update"`
		Identical int `json:"identical"`
	}
	decodeInto(t, raw, &preview)
	if preview.Create != 2 || preview.Update != 0 || preview.Identical != 0 {
		t.Fatalf("preview = %+v", preview)
	}

	status, raw = env.do(t, http.MethodPost, fmt.Sprintf("/v0/projects/%s/roadmap/apply", project.ID), body, nil)
	if status != http.StatusOK {
		t.Fatalf("apply status = %d: %s", status, raw)
	}
	var applied struct {
		Created int    `json:"created"`
		Report  string `json:"report"`
	}
	decodeInto(t, raw, &applied)
	if applied.Created != 2 || applied.Report == "" {
		t.Fatalf("applied = %+v", applied)
	}

	// Re-applying the same text is a no-op.
	status, raw = env.do(t, http.MethodPost, fmt.Sprintf("/v0/projects/%s/roadmap/preview", project.ID), body, nil)
	if status != http.StatusOK {
		t.Fatalf("second preview status = %d: %s", status, raw)
	}
	decodeInto(t, raw, &preview)
	if preview.Create != 0 || preview.Identical != 2 {
		t.Fatalf("second preview = %+v", preview)
	}

	status, raw = env.do(t, http.MethodGet, fmt.Sprintf("/v0/projects/%s/missions", project.ID), nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list missions status = %d: %s", status, raw)
	}
	var missions []struct {
		Title      string `json:"title"`
		OrderIndex int    `json:"order_index"`
	}
	decodeInto(t, raw, &missions)
	if len(missions) != 2 || missions[0].OrderIndex != 0 || missions[1].OrderIndex != 1 {
		t.Fatalf("missions = %+v", missions)
	}
}

func TestStatusSummaryOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	_, raw := env.do(t, http.MethodPost, "/v0/projects", map[string]string{"title": "p"}, nil)
	var project struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &project)

	if status, raw := env.do(t, http.MethodPost, "/v0/projects/"+project.ID+"/missions",
		map[string]string{"title": "m"}, nil); status != http.StatusCreated {
		t.Fatalf("create mission status = %d: %s", status, raw)
	}
	for _, title := range []string{"a", "b"} {
		if status, raw := env.do(t, http.MethodPost, "/v0/tasks",
			map[string]string{"title": title}, nil); status != http.StatusCreated {
			t.Fatalf("create task status = %d: %s", status, raw)
		}
	}

	status, raw := env.do(t, http.MethodGet, "/v0/summary?project_id="+project.ID, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("summary status = %d: %s", status, raw)
	}
	var summary struct {
		Tasks    map[string]int `json:"tasks"`
		Missions map[string]int `json:"missions"`
	}
	decodeInto(t, raw, &summary)
	if summary.Tasks["todo"] != 2 {
		t.Fatalf("tasks = %v", summary.Tasks)
	}
	if summary.Missions["pending"] != 1 {
		t.Fatalf("missions = %v", summary.Missions)
	}

	status, raw = env.do(t, http.MethodGet, "/v0/summary?project_id="+project.ID, nil,
		map[string]string{"X-Owner-Id": "someone-else"})
	if status != http.StatusNotFound {
		t.Fatalf("foreign owner status = %d: %s", status, raw)
	}
}

func TestGetTransactionByID(t *testing.T) {
	env := newTestEnv(t, nil)
	status, raw := env.do(t, http.MethodPost, "/v0/transactions",
		map[string]any{"type": "expense", "amount": 42.5}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %s", status, raw)
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &created)

	status, raw = env.do(t, http.MethodGet, "/v0/transactions/"+created.ID, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d: %s", status, raw)
	}
	var got struct {
		Type   string  `json:"type"`
		Amount float64 `json:"amount"`
	}
	decodeInto(t, raw, &got)
	if got.Type != "expense" || got.Amount != 42.5 {
		t.Fatalf("got = %+v", got)
	}

	status, _ = env.do(t, http.MethodGet, "/v0/transactions/"+created.ID, nil,
		map[string]string{"X-Owner-Id": "someone-else"})
	if status != http.StatusNotFound {
		t.Fatalf("foreign owner status = %d", status)
	}
}

func TestGetNoteByID(t *testing.T) {
	env := newTestEnv(t, nil)
	status, raw := env.do(t, http.MethodPost, "/v0/notes",
		map[string]string{"title": "ideas", "content": "ship it"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %s", status, raw)
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeInto(t, raw, &created)

	status, raw = env.do(t, http.MethodGet, "/v0/notes/"+created.ID, nil, nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d: %s", status, raw)
	}
	var got struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	decodeInto(t, raw, &got)
	if got.Title != "ideas" || got.Content != "ship it" {
		t.Fatalf("got = %+v", got)
	}

	status, _ = env.do(t, http.MethodGet, "/v0/notes/"+created.ID, nil,
		map[string]string{"X-Owner-Id": "someone-else"})
	if status != http.StatusNotFound {
		t.Fatalf("foreign owner status = %d", status)
	}
}

func TestAPIKeyReturnedOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	status, raw := env.do(t, http.MethodPost, "/v0/apikeys", map[string]string{"name": "deploy"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %s", status, raw)
	}
	var created struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	decodeInto(t, raw, &created)
	if created.Key == "" {
		t.Fatal("create must return the plain key")
	}

	status, raw = env.do(t, http.MethodGet, "/v0/apikeys", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d: %s", status, raw)
	}
	var listed []struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	decodeInto(t, raw, &listed)
	if len(listed) != 1 || listed[0].Key != "" {
		t.Fatalf("listing must not expose keys: %+v", listed)
	}
}
