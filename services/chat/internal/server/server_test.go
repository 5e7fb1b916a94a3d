package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"wisechat/pkg/domain"
	"wisechat/pkg/store"
	"wisechat/services/chat/internal/app"
)

type testServer struct {
	url   string
	app   *app.App
	admin domain.User
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	dir := t.TempDir()
	dataStore, err := store.NewGormStore("sqlite://" + filepath.Join(dir, "chat.db") + "?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = dataStore.Close() })

	a, err := app.New(app.Config{
		SecretKey:       "test-secret",
		FileStoragePath: filepath.Join(dir, "uploads"),
		Store:           dataStore,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	admin, err := a.EnsureSuperuser(context.Background(), "admin", "admin-pass")
	if err != nil {
		t.Fatalf("ensure superuser: %v", err)
	}

	cfg := Config{
		App:                      a,
		AppName:                  "wisechat",
		AllowedOrigins:           []string{"https://app.example.com"},
		LoginRateLimitPerMinute:  100,
		SignupRateLimitPerMinute: 100,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{url: ts.URL, app: a, admin: admin}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.url+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return ts.do(t, method, path, token, body, "application/json")
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	resp := ts.do(t, http.MethodPost, "/login", "", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	var out tokenResponse
	decodeBody(t, resp, &out)
	if out.TokenType != "bearer" || out.AccessToken == "" {
		t.Fatalf("unexpected token response: %+v", out)
	}
	return out.AccessToken
}

func (ts *testServer) signup(t *testing.T, username string) domain.User {
	t.Helper()
	resp := ts.doJSON(t, http.MethodPost, "/user/create", "", credentialsRequest{Username: username, Password: username + "-pass"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup %s: status %d", username, resp.StatusCode)
	}
	var u domain.User
	decodeBody(t, resp, &u)
	return u
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d (%s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, raw)
	}
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodGet, "/", "", nil, "")
	var root map[string]string
	decodeBody(t, resp, &root)
	resp.Body.Close()
	if root["app name"] != "wisechat" {
		t.Fatalf("root = %v", root)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/healthz", "", nil, ""), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodGet, "/nope", "", nil, ""), http.StatusNotFound)
}

func TestLoginOutcomes(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "alice")

	form := func(u, p string) io.Reader {
		return strings.NewReader(url.Values{"username": {u}, "password": {p}}.Encode())
	}
	const formType = "application/x-www-form-urlencoded"

	resp := ts.do(t, http.MethodPost, "/login", "", form("nobody", "x"), formType)
	var body map[string]string
	decodeBody(t, resp, &body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || body["error"] != "Invalid Credentials" {
		t.Fatalf("unknown user: %d %v", resp.StatusCode, body)
	}

	resp = ts.do(t, http.MethodPost, "/login", "", form("alice", "wrong"), formType)
	body = nil
	decodeBody(t, resp, &body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest || body["error"] != "Invalid Password" {
		t.Fatalf("wrong password: %d %v", resp.StatusCode, body)
	}

	expectStatus(t, ts.doJSON(t, http.MethodPost, "/login", "", credentialsRequest{Username: "alice", Password: "alice-pass"}), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodPost, "/login", "", form("", ""), formType), http.StatusBadRequest)
}

func TestSignupRejectsTakenUsername(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "alice")
	expectStatus(t, ts.doJSON(t, http.MethodPost, "/user/create", "", credentialsRequest{Username: "alice", Password: "x"}), http.StatusBadRequest)
	expectStatus(t, ts.doJSON(t, http.MethodPost, "/user/create", "", credentialsRequest{Username: "admin", Password: "x"}), http.StatusBadRequest)
}

func TestMeAndLogout(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.signup(t, "alice")
	token := ts.login(t, "alice", "alice-pass")

	resp := ts.do(t, http.MethodGet, "/user/me", "", nil, "")
	if resp.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Fatalf("missing WWW-Authenticate header")
	}
	expectStatus(t, resp, http.StatusUnauthorized)
	expectStatus(t, ts.do(t, http.MethodGet, "/user/me", "garbage", nil, ""), http.StatusUnauthorized)

	resp = ts.do(t, http.MethodGet, "/user/me", token, nil, "")
	var me domain.User
	decodeBody(t, resp, &me)
	resp.Body.Close()
	if me.ID != alice.ID || me.Role != domain.RoleGuest {
		t.Fatalf("me = %+v, want alice", me)
	}

	expectStatus(t, ts.do(t, http.MethodPost, "/logout", token, nil, ""), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodGet, "/user/me", token, nil, ""), http.StatusUnauthorized)
}

func TestUserLookup(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.signup(t, "alice")

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/user/%d", alice.ID), "", nil, "")
	var got domain.User
	decodeBody(t, resp, &got)
	resp.Body.Close()
	if got.Username != "alice" {
		t.Fatalf("user = %+v", got)
	}
	resp = ts.do(t, http.MethodGet, "/user/9999", "", nil, "")
	var body map[string]string
	decodeBody(t, resp, &body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || body["error"] != "User Not Found" {
		t.Fatalf("missing user: %d %v", resp.StatusCode, body)
	}

	resp = ts.do(t, http.MethodGet, "/user/all?limit=1", "", nil, "")
	var users []domain.User
	decodeBody(t, resp, &users)
	resp.Body.Close()
	if len(users) != 1 || users[0].ID != ts.admin.ID {
		t.Fatalf("users page = %+v", users)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/user/all?limit=-1", "", nil, ""), http.StatusBadRequest)
}

func TestMessageToUnknownChatLandsInOwnChat(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.signup(t, "alice")
	token := ts.login(t, "alice", "alice-pass")

	resp := ts.doJSON(t, http.MethodPost, "/chat/message/create", token, createMessageRequest{Message: "hello", ChatID: 999})
	var msg domain.Message
	decodeBody(t, resp, &msg)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create message: status %d", resp.StatusCode)
	}
	if msg.UserID != alice.ID || msg.ChatID == 999 {
		t.Fatalf("message = %+v", msg)
	}

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/chat/%d/messages", msg.ChatID), "", nil, "")
	var msgs []domain.Message
	decodeBody(t, resp, &msgs)
	resp.Body.Close()
	if len(msgs) != 2 || msgs[1].Body != "hello" {
		t.Fatalf("messages = %+v, want opening message then hello", msgs)
	}

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/chat/%d", msg.ChatID), token, nil, "")
	var chat domain.Chat
	decodeBody(t, resp, &chat)
	resp.Body.Close()
	if len(chat.Users) != 2 {
		t.Fatalf("chat users = %+v", chat.Users)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/chat/999", token, nil, ""), http.StatusNotFound)

	expectStatus(t, ts.doJSON(t, http.MethodPost, "/chat/message/create", token, createMessageRequest{Message: "spoof", ChatID: msg.ChatID, UserID: ts.admin.ID}), http.StatusForbidden)
}

func TestRoleGatedRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.signup(t, "alice")
	bob := ts.signup(t, "bob")
	aliceToken := ts.login(t, "alice", "alice-pass")
	adminToken := ts.login(t, "admin", "admin-pass")

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/chat/admin/%d", alice.ID), aliceToken, nil, "")
	var body map[string]string
	decodeBody(t, resp, &body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden || body["error"] != "Permission denied!" {
		t.Fatalf("guest on admin route: %d %v", resp.StatusCode, body)
	}
	expectStatus(t, ts.do(t, http.MethodGet, "/chat/files/all", aliceToken, nil, ""), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodGet, fmt.Sprintf("/chat/user/%d", bob.ID), aliceToken, nil, ""), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodGet, fmt.Sprintf("/chat/user/%d", ts.admin.ID), adminToken, nil, ""), http.StatusForbidden)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/chat/admin/%d", ts.admin.ID), adminToken, nil, "")
	var adminView []domain.ChatSummary
	decodeBody(t, resp, &adminView)
	resp.Body.Close()
	if len(adminView) != 2 {
		t.Fatalf("admin summaries = %+v, want two guest chats", adminView)
	}
	for _, s := range adminView {
		if s.User.Role != domain.RoleGuest {
			t.Fatalf("admin counterpart = %+v, want guest", s.User)
		}
	}

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/chat/user/%d", alice.ID), aliceToken, nil, "")
	var guestView []domain.ChatSummary
	decodeBody(t, resp, &guestView)
	resp.Body.Close()
	if len(guestView) != 1 || guestView[0].User.ID != ts.admin.ID {
		t.Fatalf("guest summaries = %+v", guestView)
	}
}

func TestClearChatAndBulkDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "alice")
	aliceToken := ts.login(t, "alice", "alice-pass")
	adminToken := ts.login(t, "admin", "admin-pass")

	var ids []int64
	var chatID int64
	for _, text := range []string{"one", "two", "three"} {
		resp := ts.doJSON(t, http.MethodPost, "/chat/message/create", aliceToken, createMessageRequest{Message: text})
		var msg domain.Message
		decodeBody(t, resp, &msg)
		resp.Body.Close()
		ids = append(ids, msg.ID)
		chatID = msg.ChatID
	}

	expectStatus(t, ts.doJSON(t, http.MethodPost, "/chat/message/delete", aliceToken, bulkDeleteRequest{IDs: ids[:1]}), http.StatusForbidden)
	expectStatus(t, ts.doJSON(t, http.MethodPost, "/chat/message/delete", adminToken, bulkDeleteRequest{IDs: ids[:1]}), http.StatusOK)
	expectStatus(t, ts.doJSON(t, http.MethodPost, "/chat/message/delete", adminToken, bulkDeleteRequest{}), http.StatusBadRequest)

	expectStatus(t, ts.do(t, http.MethodGet, fmt.Sprintf("/chat/%d/clear", chatID), aliceToken, nil, ""), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodGet, fmt.Sprintf("/chat/%d/clear", chatID), adminToken, nil, ""), http.StatusOK)

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/chat/%d/messages", chatID), "", nil, "")
	var msgs []domain.Message
	decodeBody(t, resp, &msgs)
	resp.Body.Close()
	if len(msgs) != 1 {
		t.Fatalf("messages after clear = %d, want 1", len(msgs))
	}
}

func TestDeleteOwnMessageOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "alice")
	ts.signup(t, "bob")
	aliceToken := ts.login(t, "alice", "alice-pass")
	bobToken := ts.login(t, "bob", "bob-pass")

	resp := ts.doJSON(t, http.MethodPost, "/chat/message/create", aliceToken, createMessageRequest{Message: "mine"})
	var msg domain.Message
	decodeBody(t, resp, &msg)
	resp.Body.Close()

	path := fmt.Sprintf("/chat/message/%d/delete", msg.ID)
	expectStatus(t, ts.do(t, http.MethodGet, path, bobToken, nil, ""), http.StatusForbidden)
	expectStatus(t, ts.do(t, http.MethodGet, path, aliceToken, nil, ""), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodGet, path, aliceToken, nil, ""), http.StatusNotFound)
}

func TestUploadDownloadAndDeleteFile(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "alice")
	aliceToken := ts.login(t, "alice", "alice-pass")
	adminToken := ts.login(t, "admin", "admin-pass")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("message", "see attached")
	part, err := mw.CreateFormFile("files", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("attachment body"))
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	resp := ts.do(t, http.MethodPost, "/chat/message_file/create", aliceToken, &buf, mw.FormDataContentType())
	if resp.StatusCode != http.StatusOK {
		expectStatus(t, resp, http.StatusOK)
	}
	var msg domain.Message
	decodeBody(t, resp, &msg)
	resp.Body.Close()
	if len(msg.Files) != 1 || msg.Files[0].Size != int64(len("attachment body")) {
		t.Fatalf("files = %+v", msg.Files)
	}
	file := msg.Files[0]
	if !strings.HasPrefix(file.Name, "notes_") || !strings.HasSuffix(file.Name, ".txt") {
		t.Fatalf("stored name = %q", file.Name)
	}

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/chat/download/%d", file.ID), "", nil, "")
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(raw) != "attachment body" {
		t.Fatalf("download: %d %q", resp.StatusCode, raw)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, file.Name) {
		t.Fatalf("content disposition = %q", cd)
	}

	resp = ts.do(t, http.MethodGet, "/chat/files/all", adminToken, nil, "")
	var files []domain.File
	decodeBody(t, resp, &files)
	resp.Body.Close()
	if len(files) != 1 {
		t.Fatalf("files listing = %+v", files)
	}

	expectStatus(t, ts.do(t, http.MethodDelete, fmt.Sprintf("/chat/files/%d", file.ID), adminToken, nil, ""), http.StatusNoContent)
	expectStatus(t, ts.do(t, http.MethodGet, fmt.Sprintf("/chat/download/%d", file.ID), "", nil, ""), http.StatusNotFound)
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) { cfg.MaxUploadBytes = 1024 })
	ts.signup(t, "alice")
	token := ts.login(t, "alice", "alice-pass")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("files", "big.bin")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 4096))
	_ = mw.Close()

	expectStatus(t, ts.do(t, http.MethodPost, "/chat/message_file/create", token, &buf, mw.FormDataContentType()), http.StatusRequestEntityTooLarge)
}

func TestCreateAndDeleteChat(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.signup(t, "alice")

	resp := ts.do(t, http.MethodPost, fmt.Sprintf("/chat/create?user_id=%d", alice.ID), "", nil, "")
	var chat domain.Chat
	decodeBody(t, resp, &chat)
	resp.Body.Close()
	if chat.ID == 0 || len(chat.Messages) != 1 {
		t.Fatalf("chat = %+v, want existing chat with opening message", chat)
	}
	expectStatus(t, ts.do(t, http.MethodPost, fmt.Sprintf("/chat/create?user_id=%d", ts.admin.ID), "", nil, ""), http.StatusBadRequest)
	expectStatus(t, ts.do(t, http.MethodPost, "/chat/create", "", nil, ""), http.StatusBadRequest)

	resp = ts.do(t, http.MethodGet, "/chat/all", "", nil, "")
	var chats []domain.Chat
	decodeBody(t, resp, &chats)
	resp.Body.Close()
	if len(chats) != 1 {
		t.Fatalf("chats = %+v", chats)
	}

	expectStatus(t, ts.do(t, http.MethodDelete, fmt.Sprintf("/chat/delete/%d", chat.ID), "", nil, ""), http.StatusOK)
	expectStatus(t, ts.do(t, http.MethodDelete, fmt.Sprintf("/chat/delete/%d", chat.ID), "", nil, ""), http.StatusNotFound)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/chat/user/%d/messages", alice.ID), "", nil, "")
	var msgs []domain.Message
	decodeBody(t, resp, &msgs)
	resp.Body.Close()
	if len(msgs) != 0 {
		t.Fatalf("messages after delete = %+v", msgs)
	}
}

func TestLoginRateLimitSharedThroughRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	ts := newTestServer(t, func(cfg *Config) {
		cfg.RedisAddr = redis.Addr()
		cfg.LoginRateLimitPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		expectStatus(t, ts.doJSON(t, http.MethodPost, "/login", "", credentialsRequest{Username: "admin", Password: "admin-pass"}), http.StatusOK)
	}
	resp := ts.doJSON(t, http.MethodPost, "/login", "", credentialsRequest{Username: "admin", Password: "admin-pass"})
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	expectStatus(t, resp, http.StatusTooManyRequests)

	redis.FastForward(61 * time.Second)
	expectStatus(t, ts.doJSON(t, http.MethodPost, "/login", "", credentialsRequest{Username: "admin", Password: "admin-pass"}), http.StatusOK)
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, ts.url+"/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("allowed preflight: %d %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}

	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign preflight status = %d, want 403", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/healthz", "", nil, "")
	resp.Body.Close()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestFailedLoginsFeedSecurityAlerts(t *testing.T) {
	redis := miniredis.RunT(t)
	ts := newTestServer(t, func(cfg *Config) { cfg.RedisAddr = redis.Addr() })

	for i := 0; i < 3; i++ {
		expectStatus(t, ts.doJSON(t, http.MethodPost, "/login", "", credentialsRequest{Username: "admin", Password: "wrong"}), http.StatusBadRequest)
	}
	var counter string
	for _, key := range redis.Keys() {
		if strings.HasPrefix(key, "wisechat:alerts:login:") {
			counter = key
		}
	}
	if counter == "" {
		t.Fatalf("no alert counter in %v", redis.Keys())
	}
	if got, _ := redis.Get(counter); got != "3" {
		t.Fatalf("alert counter = %q, want 3", got)
	}
}

func TestTranscriptHidesStoragePaths(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.signup(t, "alice")
	token := ts.login(t, "alice", "alice-pass")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("message", "private")
	part, _ := mw.CreateFormFile("files", "secret.txt")
	_, _ = part.Write([]byte("x"))
	_ = mw.Close()
	resp := ts.do(t, http.MethodPost, "/chat/message_file/create", token, &buf, mw.FormDataContentType())
	var msg domain.Message
	decodeBody(t, resp, &msg)
	resp.Body.Close()

	for _, path := range []string{fmt.Sprintf("/chat/%d/messages", msg.ChatID), "/chat/all"} {
		resp := ts.do(t, http.MethodGet, path, "", nil, "")
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if !strings.Contains(string(raw), `"name":"secret_`) {
			t.Fatalf("%s: expected file name in %s", path, raw)
		}
		if strings.Contains(string(raw), `"path"`) {
			t.Fatalf("%s leaks storage path: %s", path, raw)
		}
	}
}
