package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/db"
	"github.com/sitebuilder/internal/section"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

type fixedRoles map[uint]string

func (r fixedRoles) RoleFor(_ context.Context, id uint) (string, error) {
	return r[id], nil
}

func adminActor(t *testing.T) auth.AuthorizedPrincipal {
	t.Helper()
	gate := auth.NewGate(fixedRoles{1: auth.RoleAdmin}, nil)
	actor, err := gate.Authorize(context.Background(), &auth.Principal{ID: 1, Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("authorize admin: %v", err)
	}
	return actor
}

func TestCreatePageAllocatesSuffixedSlug(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, actor, CreatePageInput{Title: "My New Page"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if first.Slug != "my-new-page" {
		t.Fatalf("expected slug my-new-page, got %s", first.Slug)
	}
	if first.IsPublished {
		t.Fatal("expected new pages to start unpublished")
	}

	second, err := svc.Create(ctx, actor, CreatePageInput{Title: "My New Page"})
	if err != nil {
		t.Fatalf("second Create returned error: %v", err)
	}
	if second.Slug != "my-new-page-2" {
		t.Fatalf("expected slug my-new-page-2, got %s", second.Slug)
	}
	if second.CreatedBy != actor.ID() {
		t.Fatalf("expected created_by %d, got %d", actor.ID(), second.CreatedBy)
	}
}

func TestCreatePageFallsBackForPunctuationTitle(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)

	page, err := svc.Create(context.Background(), adminActor(t), CreatePageInput{Title: "!!!"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !strings.HasPrefix(page.Slug, "page-") {
		t.Fatalf("expected fallback slug, got %s", page.Slug)
	}
}

func TestCreatePageSeedsTemplateSections(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)

	page, err := svc.Create(context.Background(), adminActor(t), CreatePageInput{Title: "Reach Us", Type: PageTypeContact})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	sections := page.Content.Sections
	if len(sections) != 3 {
		t.Fatalf("expected 3 template sections, got %d", len(sections))
	}
	want := []section.Type{section.TypeHero, section.TypeContactForm, section.TypeFooter}
	for i, s := range sections {
		if s.Type != want[i] {
			t.Fatalf("expected section %d to be %s, got %s", i, want[i], s.Type)
		}
		if s.ID == "" {
			t.Fatalf("expected section %d to carry an id", i)
		}
	}
	if sections[0].String("title") != "Reach Us" {
		t.Fatalf("expected hero title to follow page title, got %q", sections[0].String("title"))
	}
}

func TestCreatePageValidatesInput(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	ctx := context.Background()

	_, err := svc.Create(ctx, adminActor(t), CreatePageInput{Title: "   "})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validationErr.Fields["title"]; !ok {
		t.Fatalf("expected title issue, got %v", validationErr.FieldNames())
	}

	_, err = svc.Create(ctx, adminActor(t), CreatePageInput{Title: "Fine", Type: "wiki"})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for type, got %v", err)
	}
}

func TestMutationsRequireAuthorizedPrincipal(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	ctx := context.Background()
	var nobody auth.AuthorizedPrincipal

	if _, err := svc.Create(ctx, nobody, CreatePageInput{Title: "x"}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Create: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.UpsertContent(ctx, nobody, "about", db.PageContent{}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("UpsertContent: expected ErrNotAuthorized, got %v", err)
	}
	hero := section.Default(section.TypeHero)
	if _, err := svc.UpsertComponents(ctx, nobody, "about", ComponentUpdate{Hero: &hero}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("UpsertComponents: expected ErrNotAuthorized, got %v", err)
	}

	var count int64
	gdb.Model(&db.Page{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no pages to be written, got %d", count)
	}
}

func TestUpsertContentPreservesOrderAndIDs(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	hero := section.Default(section.TypeHero).With("title", "About us")
	hero.ID = "hero-1"
	text := section.Default(section.TypeText).With("content", "We build things.")
	text.ID = "text-1"
	gallery := section.Default(section.TypeGallery)
	gallery.ID = ""

	content := db.PageContent{
		Sections:   []section.Section{text, hero, gallery},
		Properties: map[string]any{"theme": "dark"},
	}
	if _, err := svc.UpsertContent(ctx, actor, "about", content); err != nil {
		t.Fatalf("UpsertContent returned error: %v", err)
	}

	doc, err := svc.Get(ctx, "about", &actor)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	got := doc.Page.Content.Sections
	if len(got) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(got))
	}
	if got[0].ID != "text-1" || got[1].ID != "hero-1" {
		t.Fatalf("expected order text-1, hero-1, got %s, %s", got[0].ID, got[1].ID)
	}
	if got[2].ID == "" {
		t.Fatal("expected missing id to be assigned")
	}
	if got[1].String("title") != "About us" {
		t.Fatalf("expected hero title to round-trip, got %q", got[1].String("title"))
	}
	if doc.Page.Content.Properties["theme"] != "dark" {
		t.Fatalf("expected properties to round-trip, got %#v", doc.Page.Content.Properties)
	}
	if doc.Page.Title != "About" {
		t.Fatalf("expected title derived from slug, got %q", doc.Page.Title)
	}
}

func TestUpsertContentReplacesWholeContentAndRefreshesUpdatedAt(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return t0 })
	first := db.PageContent{Sections: []section.Section{
		section.Default(section.TypeHero),
		section.Default(section.TypeFooter),
	}}
	if _, err := svc.UpsertContent(ctx, actor, "home", first); err != nil {
		t.Fatalf("first UpsertContent returned error: %v", err)
	}

	t1 := t0.Add(time.Hour)
	svc.SetClock(func() time.Time { return t1 })
	second := db.PageContent{Sections: []section.Section{section.Default(section.TypeText)}}
	page, err := svc.UpsertContent(ctx, actor, "home", second)
	if err != nil {
		t.Fatalf("second UpsertContent returned error: %v", err)
	}

	if len(page.Content.Sections) != 1 || page.Content.Sections[0].Type != section.TypeText {
		t.Fatalf("expected content to be replaced, got %#v", page.Content.Sections)
	}
	if !page.UpdatedAt.Equal(t1) {
		t.Fatalf("expected updated_at %v, got %v", t1, page.UpdatedAt)
	}
	if !page.CreatedAt.Equal(t0) {
		t.Fatalf("expected created_at to stay %v, got %v", t0, page.CreatedAt)
	}

	var count int64
	gdb.Model(&db.Page{}).Where("slug = ?", "home").Count(&count)
	if count != 1 {
		t.Fatalf("expected one row for slug, got %d", count)
	}
}

func TestUpsertContentRejectsInvalidSections(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	broken := section.New(section.TypeMedia, map[string]any{"alt": "no source"})
	_, err := svc.UpsertContent(ctx, actor, "about", db.PageContent{Sections: []section.Section{broken}})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validationErr.Fields["sections"]; !ok {
		t.Fatalf("expected sections issue, got %v", validationErr.FieldNames())
	}

	a := section.Default(section.TypeText)
	b := section.Default(section.TypeText)
	b.ID = a.ID
	if _, err := svc.UpsertContent(ctx, actor, "about", db.PageContent{Sections: []section.Section{a, b}}); !errors.As(err, &validationErr) {
		t.Fatalf("expected duplicate ids to be rejected, got %v", err)
	}

	if _, err := svc.UpsertContent(ctx, actor, "Not A Slug", db.PageContent{}); !errors.As(err, &validationErr) {
		t.Fatalf("expected invalid slug to be rejected, got %v", err)
	}

	var count int64
	gdb.Model(&db.Page{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected nothing to be stored, got %d pages", count)
	}
}

func TestUpsertContentSanitizesHTMLText(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)

	text := section.New(section.TypeText, map[string]any{
		"content": `<p>hi</p><script>alert(1)</script>`,
		"format":  "html",
	})
	page, err := svc.UpsertContent(context.Background(), adminActor(t), "about", db.PageContent{Sections: []section.Section{text}})
	if err != nil {
		t.Fatalf("UpsertContent returned error: %v", err)
	}
	content := page.Content.Sections[0].String("content")
	if strings.Contains(content, "<script>") {
		t.Fatalf("expected script to be stripped, got %q", content)
	}
	if !strings.Contains(content, "<p>hi</p>") {
		t.Fatalf("expected safe markup to survive, got %q", content)
	}
}

func TestGetHidesUnpublishedPagesFromAnonymousViewers(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, actor, CreatePageInput{Title: "Draft"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Get(ctx, "draft", nil); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound for anonymous read, got %v", err)
	}
	if _, err := svc.Get(ctx, "draft", &actor); err != nil {
		t.Fatalf("expected admin to read draft, got %v", err)
	}

	published := true
	if _, err := svc.UpdateSettings(ctx, actor, "draft", PageSettingsInput{IsPublished: &published}); err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if _, err := svc.Get(ctx, "draft", nil); err != nil {
		t.Fatalf("expected published page to be public, got %v", err)
	}

	pages, err := svc.List(ctx, nil)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(pages) != 1 || pages[0].Slug != "draft" {
		t.Fatalf("expected one public page, got %#v", pages)
	}
}

func TestGetMissingPage(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)

	if _, err := svc.Get(context.Background(), "nope", &actor); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestUpsertComponentsLeavesSiblingsUntouched(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	hero := section.Default(section.TypeHero).With("title", "Welcome")
	footer := section.Default(section.TypeFooter).With("copyright", "2024")
	if _, err := svc.UpsertComponents(ctx, actor, "home", ComponentUpdate{Hero: &hero, Footer: &footer}); err != nil {
		t.Fatalf("UpsertComponents returned error: %v", err)
	}

	updatedHero := hero.With("title", "Hello again")
	written, err := svc.UpsertComponents(ctx, actor, "home", ComponentUpdate{Hero: &updatedHero})
	if err != nil {
		t.Fatalf("second UpsertComponents returned error: %v", err)
	}
	if _, ok := written[ComponentFooter]; ok {
		t.Fatal("expected footer not to be rewritten")
	}

	doc, err := svc.Get(ctx, "home", &actor)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	var storedHero, storedFooter section.Section
	if err := json.Unmarshal(doc.Components[ComponentHero], &storedHero); err != nil {
		t.Fatalf("decode hero: %v", err)
	}
	if err := json.Unmarshal(doc.Components[ComponentFooter], &storedFooter); err != nil {
		t.Fatalf("decode footer: %v", err)
	}
	if storedHero.String("title") != "Hello again" {
		t.Fatalf("expected hero to be updated, got %q", storedHero.String("title"))
	}
	if storedFooter.String("copyright") != "2024" {
		t.Fatalf("expected footer to be untouched, got %q", storedFooter.String("copyright"))
	}

	var rows int64
	gdb.Model(&db.PageComponent{}).Where("page_slug = ?", "home").Count(&rows)
	if rows != 2 {
		t.Fatalf("expected 2 component rows, got %d", rows)
	}
}

func TestUpsertComponentsRejectsMismatchedType(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)

	notAHero := section.Default(section.TypeFooter)
	_, err := svc.UpsertComponents(context.Background(), adminActor(t), "home", ComponentUpdate{Hero: &notAHero})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validationErr.Fields[ComponentHero]; !ok {
		t.Fatalf("expected hero issue, got %v", validationErr.FieldNames())
	}

	if _, err := svc.UpsertComponents(context.Background(), adminActor(t), "home", ComponentUpdate{}); !errors.As(err, &validationErr) {
		t.Fatalf("expected empty update to be rejected, got %v", err)
	}
}

func TestGetComponent(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	sections := []section.Section{section.Default(section.TypeText)}
	if _, err := svc.UpsertComponents(ctx, actor, "home", ComponentUpdate{Sections: &sections}); err != nil {
		t.Fatalf("UpsertComponents returned error: %v", err)
	}

	payload, err := svc.GetComponent(ctx, "home", ComponentSections, &actor)
	if err != nil {
		t.Fatalf("GetComponent returned error: %v", err)
	}
	var decoded []section.Section
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode sections: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ID != sections[0].ID {
		t.Fatalf("unexpected sections payload %s", payload)
	}

	if _, err := svc.GetComponent(ctx, "home", ComponentFooter, &actor); !errors.Is(err, ErrComponentNotFound) {
		t.Fatalf("expected ErrComponentNotFound, got %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewPageService(gdb)
	actor := adminActor(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, actor, CreatePageInput{Title: "Old Title"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	title := "  New Title "
	page, err := svc.UpdateSettings(ctx, actor, "old-title", PageSettingsInput{Title: &title})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if page.Title != "New Title" {
		t.Fatalf("expected trimmed title, got %q", page.Title)
	}
	if page.Slug != "old-title" {
		t.Fatalf("expected slug to stay old-title, got %s", page.Slug)
	}

	empty := ""
	var validationErr *ValidationError
	if _, err := svc.UpdateSettings(ctx, actor, "old-title", PageSettingsInput{Title: &empty}); !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error for empty title, got %v", err)
	}

	if _, err := svc.UpdateSettings(ctx, actor, "missing", PageSettingsInput{Title: &title}); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}
