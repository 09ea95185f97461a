package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/config"
	"github.com/sitebuilder/internal/db"
	"github.com/sitebuilder/internal/draft"
	"github.com/sitebuilder/internal/router"
	"github.com/sitebuilder/internal/section"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type e2eSuite struct {
	db      *gorm.DB
	public  *localClient
	admin   *localClient
	editor  *localClient
	baseURL string
}

// localClient 通过 httptest 直接调用 gin 引擎，同时充当 draft.Doer。
type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:e2e-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if err := db.EnsureUser(gdb, "admin@example.test", "e2e-secret", auth.RoleAdmin); err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
	if err := db.EnsureUser(gdb, "editor@example.test", "editor-secret", ""); err != nil {
		t.Fatalf("failed to seed editor: %v", err)
	}

	engine := router.SetupRouter(gdb, config.AppConfig{
		SessionSecret: "test-session-secret",
		UploadDir:     t.TempDir(),
		UploadURLPath: "/uploads",
		MediaBaseURL:  "https://cdn.example.test",
	})

	return &e2eSuite{
		db:      gdb,
		public:  newLocalClient(engine, false),
		admin:   newLocalClient(engine, true),
		editor:  newLocalClient(engine, true),
		baseURL: "http://example.test",
	}
}

func (s *e2eSuite) request(t *testing.T, client *localClient, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, decoded
}

func (s *e2eSuite) login(t *testing.T, client *localClient, email, password string) {
	t.Helper()
	code, body := s.request(t, client, http.MethodPost, "/admin/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if code != http.StatusOK {
		t.Fatalf("login as %s failed: %d %v", email, code, body)
	}
}

func TestE2E_PageLifecycle(t *testing.T) {
	s := newE2ESuite(t)
	s.login(t, s.admin, "admin@example.test", "e2e-secret")
	s.login(t, s.editor, "editor@example.test", "editor-secret")

	code, created := s.request(t, s.admin, http.MethodPost, "/pages", map[string]string{"title": "About", "type": "landing"})
	if code != http.StatusCreated || created["slug"] != "about" {
		t.Fatalf("create page: %d %v", code, created)
	}

	if code, _ := s.request(t, s.public, http.MethodGet, "/pages/about", nil); code != http.StatusNotFound {
		t.Fatalf("expected unpublished page to be hidden, got %d", code)
	}

	hero := section.Default(section.TypeHero).With("title", "About us")
	hero.ID = "hero"
	text := section.Default(section.TypeText).With("content", "Hello")
	text.ID = "body"
	code, _ = s.request(t, s.admin, http.MethodPatch, "/pages/about/content", map[string]any{
		"sections":   []section.Section{hero, text},
		"properties": map[string]any{"theme": "light"},
	})
	if code != http.StatusOK {
		t.Fatalf("save content: %d", code)
	}

	evil := section.Default(section.TypeText).With("content", "defaced")
	if code, _ := s.request(t, s.editor, http.MethodPatch, "/pages/about/content", map[string]any{
		"sections": []section.Section{evil},
	}); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin save, got %d", code)
	}
	if code, _ := s.request(t, s.public, http.MethodPatch, "/pages/about/content", map[string]any{
		"sections": []section.Section{evil},
	}); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous save, got %d", code)
	}

	if code, _ := s.request(t, s.admin, http.MethodPatch, "/pages/about", map[string]any{"isPublished": true}); code != http.StatusOK {
		t.Fatalf("publish: %d", code)
	}

	code, page := s.request(t, s.public, http.MethodGet, "/pages/about", nil)
	if code != http.StatusOK {
		t.Fatalf("public read: %d", code)
	}
	sections := page["content"].(map[string]any)["sections"].([]any)
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].(map[string]any)["id"] != "hero" || sections[1].(map[string]any)["content"] != "Hello" {
		t.Fatalf("unexpected sections %#v", sections)
	}

	code, list := s.request(t, s.public, http.MethodGet, "/pages", nil)
	if code != http.StatusOK || len(list["pages"].([]any)) != 1 {
		t.Fatalf("expected one public page, got %d %v", code, list)
	}
}

func TestE2E_DraftSessionSavesThroughHTTP(t *testing.T) {
	s := newE2ESuite(t)
	s.login(t, s.admin, "admin@example.test", "e2e-secret")

	start := []section.Section{section.Default(section.TypeHero), section.Default(section.TypeFooter)}
	session := draft.NewSession("home", draft.Content{Sections: start}, draft.NewHTTPSaver(s.baseURL, s.admin))

	heroID := start[0].ID
	session.Update(heroID, section.Patch{"title": "Welcome"})
	textID := session.Add(section.Default(section.TypeText).With("content", "Intro"))
	session.Reorder(2, 1)
	if session.State() != draft.StateDirty {
		t.Fatalf("expected dirty session, got %s", session.State())
	}

	if err := session.Save(context.Background()); err != nil {
		t.Fatalf("save through http: %v", err)
	}
	if session.State() != draft.StateClean {
		t.Fatalf("expected clean session, got %s", session.State())
	}

	var stored db.Page
	if err := s.db.Where("slug = ?", "home").First(&stored).Error; err != nil {
		t.Fatalf("load stored page: %v", err)
	}
	got := stored.Content.Sections
	if len(got) != 3 || got[0].ID != heroID || got[1].ID != textID {
		t.Fatalf("unexpected stored order %#v", got)
	}
	if got[0].String("title") != "Welcome" {
		t.Fatalf("expected stored hero title, got %q", got[0].String("title"))
	}
}

func TestE2E_DraftSessionKeepsEditsWhenForbidden(t *testing.T) {
	s := newE2ESuite(t)
	s.login(t, s.editor, "editor@example.test", "editor-secret")

	session := draft.NewSession("home", draft.Content{}, draft.NewHTTPSaver(s.baseURL, s.editor))
	session.Add(section.Default(section.TypeText).With("content", "pending"))

	err := session.Save(context.Background())
	if !errors.Is(err, draft.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if draft.Retryable(err) {
		t.Fatal("expected 403 not to be retryable")
	}
	if session.State() != draft.StateDirty || len(session.Sections()) != 1 {
		t.Fatalf("expected edits to be kept, state %s", session.State())
	}

	var count int64
	s.db.Model(&db.Page{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected nothing stored, got %d pages", count)
	}
}

func TestE2E_ComponentsAndSettings(t *testing.T) {
	s := newE2ESuite(t)
	s.login(t, s.admin, "admin@example.test", "e2e-secret")
	s.login(t, s.editor, "editor@example.test", "editor-secret")

	hero := section.Default(section.TypeHero).With("title", "Hi")
	footer := section.Default(section.TypeFooter).With("copyright", "Example")
	if code, body := s.request(t, s.admin, http.MethodPut, "/pages/landing", map[string]any{"hero": hero, "footer": footer}); code != http.StatusOK {
		t.Fatalf("put components: %d %v", code, body)
	}
	if code, _ := s.request(t, s.admin, http.MethodPut, "/pages/landing", map[string]any{"hero": hero.With("title", "Hello")}); code != http.StatusOK {
		t.Fatalf("put hero: %d", code)
	}
	code, stored := s.request(t, s.admin, http.MethodGet, "/pages/landing/components/footer", nil)
	if code != http.StatusOK || stored["copyright"] != "Example" {
		t.Fatalf("expected footer untouched, got %d %v", code, stored)
	}

	if code, _ := s.request(t, s.editor, http.MethodPut, "/pages/landing", map[string]any{"hero": hero}); code != http.StatusForbidden {
		t.Fatalf("expected editor to be forbidden, got %d", code)
	}

	if code, _ := s.request(t, s.admin, http.MethodPut, "/admin/api/settings", map[string]string{
		"siteName":   "Example",
		"adminEmail": "editor@example.test",
	}); code != http.StatusOK {
		t.Fatalf("update settings: %d", code)
	}

	code, me := s.request(t, s.editor, http.MethodGet, "/admin/api/me", nil)
	if code != http.StatusOK || me["user"].(map[string]any)["isAdmin"] != true {
		t.Fatalf("expected admin_email to grant the editor admin, got %v", me)
	}
	if code, _ := s.request(t, s.editor, http.MethodPut, "/pages/landing", map[string]any{"hero": hero}); code != http.StatusOK {
		t.Fatalf("expected editor to be allowed after admin_email change, got %d", code)
	}
}
