package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/db"
	"github.com/sitebuilder/internal/section"
	"github.com/sitebuilder/internal/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PageTypeBlank   = "blank"
	PageTypeLanding = "landing"
	PageTypeContact = "contact"
)

var pageTypes = []any{PageTypeBlank, PageTypeLanding, PageTypeContact}

const (
	ComponentHero     = "hero"
	ComponentSections = "sections"
	ComponentFooter   = "footer"
)

// maxSlugAttempts bounds the insert-on-conflict retry loop in Create.
const maxSlugAttempts = 20

// PageService 是页面内容存储：按 slug 读取、按 slug 或 (slug, component) upsert。
type PageService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPageService returns a new PageService instance.
func NewPageService(gdb *gorm.DB) *PageService {
	return &PageService{db: gdb, now: time.Now}
}

// SetClock overrides the commit timestamp source, mainly for tests.
func (s *PageService) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// CreatePageInput describes a new page.
type CreatePageInput struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Validate implements validation.Validatable.
func (in CreatePageInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Type, validation.In(pageTypes...)),
	)
}

// PageSettingsInput updates page level attributes. Nil fields are left alone.
type PageSettingsInput struct {
	Title       *string `json:"title"`
	IsPublished *bool   `json:"isPublished"`
}

// Validate implements validation.Validatable.
func (in PageSettingsInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
	)
}

// ComponentUpdate carries the component-keyed parts of a page. Only non-nil
// parts are written.
type ComponentUpdate struct {
	Hero     *section.Section
	Sections *[]section.Section
	Footer   *section.Section
}

// Empty reports whether no component was supplied.
func (u ComponentUpdate) Empty() bool {
	return u.Hero == nil && u.Sections == nil && u.Footer == nil
}

// PageDocument is a page together with its independently saved components.
type PageDocument struct {
	Page       db.Page
	Components map[string]json.RawMessage
}

// Create allocates a slug from the title and inserts the page. Slug allocation
// uses insert-on-conflict-do-nothing and retries with the next suffix.
func (s *PageService) Create(ctx context.Context, actor auth.AuthorizedPrincipal, input CreatePageInput) (*db.Page, error) {
	if !actor.Valid() {
		return nil, ErrNotAuthorized
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Type = strings.TrimSpace(input.Type)
	if input.Type == "" {
		input.Type = PageTypeBlank
	}
	if err := input.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	taken, err := s.slugsWithBase(ctx, slug.Normalize(input.Title))
	if err != nil {
		return nil, err
	}

	content := db.PageContent{Sections: initialSections(input.Type, input.Title)}.Normalized()
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		candidate := slug.Generate(input.Title, taken)
		now := s.now()
		page := db.Page{
			Slug:      candidate,
			Title:     input.Title,
			Content:   content,
			CreatedBy: actor.ID(),
		}
		page.CreatedAt = now
		page.UpdatedAt = now

		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&page)
		if res.Error != nil {
			return nil, fmt.Errorf("create page %s: %w", candidate, res.Error)
		}
		if res.RowsAffected == 1 {
			return s.loadBySlug(ctx, candidate, true)
		}
		taken[candidate] = struct{}{}
	}

	return nil, ErrSlugExhausted
}

// Get loads a page. Without an authorized viewer only published pages are
// visible; unpublished pages look exactly like missing ones.
func (s *PageService) Get(ctx context.Context, pageSlug string, viewer *auth.AuthorizedPrincipal) (*PageDocument, error) {
	includeDrafts := viewer != nil && viewer.Valid()

	page, err := s.loadBySlug(ctx, pageSlug, includeDrafts)
	if err != nil {
		return nil, err
	}

	components, err := s.loadComponents(ctx, page.Slug)
	if err != nil {
		return nil, err
	}

	return &PageDocument{Page: *page, Components: components}, nil
}

// List returns pages ordered by creation, filtered the same way as Get.
func (s *PageService) List(ctx context.Context, viewer *auth.AuthorizedPrincipal) ([]db.Page, error) {
	query := s.db.WithContext(ctx).Model(&db.Page{})
	if viewer == nil || !viewer.Valid() {
		query = query.Where("is_published = ?", true)
	}

	var pages []db.Page
	if err := query.Order("created_at asc, id asc").Find(&pages).Error; err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// UpsertContent replaces the whole content blob of a page, creating the page
// row if the slug is new. updated_at is always set to the commit time.
func (s *PageService) UpsertContent(ctx context.Context, actor auth.AuthorizedPrincipal, pageSlug string, content db.PageContent) (*db.Page, error) {
	if !actor.Valid() {
		return nil, ErrNotAuthorized
	}
	if !slug.IsValid(pageSlug) {
		return nil, invalidField("slug", errors.New("must be a lower-case slug"))
	}

	sections, err := prepareSections(content.Sections)
	if err != nil {
		return nil, err
	}
	content.Sections = sections
	content = content.Normalized()

	now := s.now()
	page := db.Page{
		Slug:      pageSlug,
		Title:     titleFromSlug(pageSlug),
		Content:   content,
		CreatedBy: actor.ID(),
	}
	page.CreatedAt = now
	page.UpdatedAt = now

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&page).Error
	if err != nil {
		return nil, fmt.Errorf("upsert page %s: %w", pageSlug, err)
	}

	return s.loadBySlug(ctx, pageSlug, true)
}

// UpsertComponents writes each supplied component as its own row keyed by
// (page_slug, component_type). Each write is an independent commit.
func (s *PageService) UpsertComponents(ctx context.Context, actor auth.AuthorizedPrincipal, pageSlug string, update ComponentUpdate) (map[string]json.RawMessage, error) {
	if !actor.Valid() {
		return nil, ErrNotAuthorized
	}
	if !slug.IsValid(pageSlug) {
		return nil, invalidField("slug", errors.New("must be a lower-case slug"))
	}
	if update.Empty() {
		return nil, invalidField("components", errors.New("at least one of hero, sections or footer is required"))
	}

	payloads, err := componentPayloads(update)
	if err != nil {
		return nil, err
	}

	if _, err := s.ensurePage(ctx, actor, pageSlug); err != nil {
		return nil, err
	}

	written := make(map[string]json.RawMessage, len(payloads))
	for _, componentType := range []string{ComponentHero, ComponentSections, ComponentFooter} {
		payload, ok := payloads[componentType]
		if !ok {
			continue
		}
		now := s.now()
		row := db.PageComponent{
			PageSlug:      pageSlug,
			ComponentType: componentType,
			Content:       string(payload),
			UpdatedBy:     actor.ID(),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "page_slug"}, {Name: "component_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "updated_by", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return written, fmt.Errorf("upsert %s component of %s: %w", componentType, pageSlug, err)
		}
		written[componentType] = payload
	}

	return written, nil
}

// GetComponent returns one component of a page, respecting publication state.
func (s *PageService) GetComponent(ctx context.Context, pageSlug, componentType string, viewer *auth.AuthorizedPrincipal) (json.RawMessage, error) {
	doc, err := s.Get(ctx, pageSlug, viewer)
	if err != nil {
		return nil, err
	}
	payload, ok := doc.Components[componentType]
	if !ok {
		return nil, ErrComponentNotFound
	}
	return payload, nil
}

// UpdateSettings changes the title or publication flag. The slug never changes.
func (s *PageService) UpdateSettings(ctx context.Context, actor auth.AuthorizedPrincipal, pageSlug string, input PageSettingsInput) (*db.Page, error) {
	if !actor.Valid() {
		return nil, ErrNotAuthorized
	}
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		input.Title = &trimmed
	}
	if err := input.Validate(); err != nil {
		return nil, asValidationError(err)
	}

	updates := map[string]any{"updated_at": s.now()}
	if input.Title != nil {
		updates["title"] = *input.Title
	}
	if input.IsPublished != nil {
		updates["is_published"] = *input.IsPublished
	}

	res := s.db.WithContext(ctx).Model(&db.Page{}).Where("slug = ?", pageSlug).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update page %s: %w", pageSlug, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPageNotFound
	}
	return s.loadBySlug(ctx, pageSlug, true)
}

func (s *PageService) loadBySlug(ctx context.Context, pageSlug string, includeDrafts bool) (*db.Page, error) {
	query := s.db.WithContext(ctx).Where("slug = ?", pageSlug)
	if !includeDrafts {
		query = query.Where("is_published = ?", true)
	}

	var page db.Page
	if err := query.First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("load page %s: %w", pageSlug, err)
	}
	page.Content = page.Content.Normalized()
	return &page, nil
}

func (s *PageService) loadComponents(ctx context.Context, pageSlug string) (map[string]json.RawMessage, error) {
	var rows []db.PageComponent
	if err := s.db.WithContext(ctx).Where("page_slug = ?", pageSlug).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load components of %s: %w", pageSlug, err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.ComponentType] = json.RawMessage(row.Content)
	}
	return out, nil
}

// ensurePage inserts an empty page row for slug when none exists.
func (s *PageService) ensurePage(ctx context.Context, actor auth.AuthorizedPrincipal, pageSlug string) (*db.Page, error) {
	now := s.now()
	page := db.Page{
		Slug:      pageSlug,
		Title:     titleFromSlug(pageSlug),
		Content:   db.PageContent{}.Normalized(),
		CreatedBy: actor.ID(),
	}
	page.CreatedAt = now
	page.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&page).Error
	if err != nil {
		return nil, fmt.Errorf("ensure page %s: %w", pageSlug, err)
	}
	return s.loadBySlug(ctx, pageSlug, true)
}

func (s *PageService) slugsWithBase(ctx context.Context, base string) (map[string]struct{}, error) {
	taken := make(map[string]struct{})
	if base == "" {
		return taken, nil
	}

	var slugs []string
	err := s.db.WithContext(ctx).Unscoped().Model(&db.Page{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, fmt.Errorf("load existing slugs: %w", err)
	}
	for _, existing := range slugs {
		taken[existing] = struct{}{}
	}
	return taken, nil
}

// prepareSections validates every section, fills in missing ids, rejects
// duplicate ids and sanitises rich content.
func prepareSections(sections []section.Section) ([]section.Section, error) {
	issues := validation.Errors{}
	for i, s := range sections {
		if err := section.Validate(s); err != nil {
			issues[strconv.Itoa(i)] = sectionIssues(err)
		}
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Fields: validation.Errors{"sections": issues}}
	}

	if dups := section.DuplicateIDs(sections); len(dups) > 0 {
		return nil, invalidField("sections", fmt.Errorf("duplicate section ids: %s", strings.Join(dups, ", ")))
	}

	prepared := section.EnsureIDs(sections)
	return sanitizeSections(prepared), nil
}

func sectionIssues(err error) error {
	var sectionErr *section.Error
	if errors.As(err, &sectionErr) {
		return sectionErr.Issues
	}
	return err
}

func componentPayloads(update ComponentUpdate) (map[string]json.RawMessage, error) {
	payloads := make(map[string]json.RawMessage, 3)
	issues := validation.Errors{}

	single := func(key string, s *section.Section, want section.Type) {
		if s == nil {
			return
		}
		if s.Type != want {
			issues[key] = fmt.Errorf("must be a %s section", want)
			return
		}
		prepared, err := prepareSections([]section.Section{*s})
		if err != nil {
			issues[key] = componentIssue(err)
			return
		}
		data, err := json.Marshal(prepared[0])
		if err != nil {
			issues[key] = err
			return
		}
		payloads[key] = data
	}

	single(ComponentHero, update.Hero, section.TypeHero)
	single(ComponentFooter, update.Footer, section.TypeFooter)

	if update.Sections != nil {
		prepared, err := prepareSections(*update.Sections)
		if err != nil {
			issues[ComponentSections] = componentIssue(err)
		} else {
			data, err := json.Marshal(prepared)
			if err != nil {
				issues[ComponentSections] = err
			} else {
				payloads[ComponentSections] = data
			}
		}
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Fields: issues}
	}
	return payloads, nil
}

func componentIssue(err error) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		if nested, ok := validationErr.Fields["sections"]; ok {
			return nested
		}
		return validationErr.Fields
	}
	return err
}

func initialSections(pageType, title string) []section.Section {
	switch pageType {
	case PageTypeLanding:
		hero := section.Default(section.TypeHero).With("title", title)
		return []section.Section{hero, section.Default(section.TypeFooter)}
	case PageTypeContact:
		hero := section.Default(section.TypeHero).With("title", title)
		return []section.Section{
			hero,
			section.Default(section.TypeContactForm),
			section.Default(section.TypeFooter),
		}
	}
	return []section.Section{}
}

func titleFromSlug(pageSlug string) string {
	words := strings.Split(pageSlug, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
