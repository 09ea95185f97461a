package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sitebuilder/internal/db"
	"github.com/sitebuilder/internal/section"
	"github.com/sitebuilder/internal/service"
)

type createPageRequest struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Sections are bound raw so that shape errors in a single section come back
// as a field list instead of a bind failure.
type pageContentRequest struct {
	Sections   *[]json.RawMessage `json:"sections"`
	Properties map[string]any     `json:"properties"`
}

type pageComponentsRequest struct {
	Hero     json.RawMessage    `json:"hero"`
	Sections *[]json.RawMessage `json:"sections"`
	Footer   json.RawMessage    `json:"footer"`
}

type pageSettingsRequest struct {
	Title       *string `json:"title"`
	IsPublished *bool   `json:"isPublished"`
}

func pagePayload(page db.Page) gin.H {
	return gin.H{
		"slug":        page.Slug,
		"title":       page.Title,
		"isPublished": page.IsPublished,
		"content":     page.Content.Normalized(),
		"createdBy":   page.CreatedBy,
		"createdAt":   page.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":   page.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func pageSummary(page db.Page) gin.H {
	return gin.H{
		"slug":        page.Slug,
		"title":       page.Title,
		"isPublished": page.IsPublished,
		"updatedAt":   page.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GetPage 返回页面内容。未发布页面对非管理员一律表现为 404。
func (a *API) GetPage(c *gin.Context) {
	doc, err := a.pages.Get(c.Request.Context(), c.Param("slug"), a.viewer(c))
	if err != nil {
		respondServiceError(c, err, "加载页面失败，请稍后再试")
		return
	}

	sections := doc.Page.Content.Sections
	for _, name := range []string{service.ComponentHero, service.ComponentFooter} {
		if raw, ok := doc.Components[name]; ok {
			var s section.Section
			if json.Unmarshal(raw, &s) == nil {
				sections = append(sections[:len(sections):len(sections)], s)
			}
		}
	}
	if raw, ok := doc.Components[service.ComponentSections]; ok {
		var list []section.Section
		if json.Unmarshal(raw, &list) == nil {
			sections = append(sections[:len(sections):len(sections)], list...)
		}
	}

	payload := pagePayload(doc.Page)
	payload["components"] = doc.Components
	payload["media"] = resolveMedia(a.resolver, sections)
	payload["rendered"] = renderSections(sections)
	c.JSON(http.StatusOK, payload)
}

// ListPages 返回页面摘要列表，非管理员只能看到已发布页面。
func (a *API) ListPages(c *gin.Context) {
	pages, err := a.pages.List(c.Request.Context(), a.viewer(c))
	if err != nil {
		respondServiceError(c, err, "加载页面列表失败")
		return
	}

	items := make([]gin.H, 0, len(pages))
	for _, page := range pages {
		items = append(items, pageSummary(page))
	}
	c.JSON(http.StatusOK, gin.H{"pages": items})
}

// GetPageComponent 返回单个独立保存的页面组件。
func (a *API) GetPageComponent(c *gin.Context) {
	payload, err := a.pages.GetComponent(c.Request.Context(), c.Param("slug"), c.Param("component"), a.viewer(c))
	if err != nil {
		respondServiceError(c, err, "加载页面组件失败")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// CreatePage 根据标题生成 slug 并创建页面。
func (a *API) CreatePage(c *gin.Context) {
	actor, ok := a.authorize(c)
	if !ok {
		return
	}

	var payload createPageRequest
	if !bindJSON(c, &payload, "请填写页面标题") {
		return
	}

	page, err := a.pages.Create(c.Request.Context(), actor, service.CreatePageInput{
		Title: payload.Title,
		Type:  payload.Type,
	})
	if err != nil {
		respondServiceError(c, err, "创建页面失败，请稍后重试")
		return
	}

	c.JSON(http.StatusCreated, pagePayload(*page))
}

// UpdatePageContent 整体覆盖页面的 sections 与 properties。
func (a *API) UpdatePageContent(c *gin.Context) {
	actor, ok := a.authorize(c)
	if !ok {
		return
	}

	var payload pageContentRequest
	if !bindJSON(c, &payload, "页面内容格式不正确") {
		return
	}
	if payload.Sections == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "页面内容格式不正确",
			"fields": gin.H{"sections": "cannot be blank"},
		})
		return
	}

	sections, err := decodeSections(*payload.Sections)
	if err != nil {
		respondServiceError(c, &service.ValidationError{Fields: validation.Errors{"sections": err}}, "页面内容格式不正确")
		return
	}

	page, err := a.pages.UpsertContent(c.Request.Context(), actor, c.Param("slug"), db.PageContent{
		Sections:   sections,
		Properties: payload.Properties,
	})
	if err != nil {
		respondServiceError(c, err, "保存失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, pagePayload(*page))
}

// UpsertPageComponents 按组件独立保存 hero、sections、footer，未提交的组件保持不变。
func (a *API) UpsertPageComponents(c *gin.Context) {
	actor, ok := a.authorize(c)
	if !ok {
		return
	}

	var payload pageComponentsRequest
	if !bindJSON(c, &payload, "页面组件格式不正确") {
		return
	}

	var update service.ComponentUpdate
	issues := validation.Errors{}
	if hero, err := decodeOptionalSection(payload.Hero); err != nil {
		issues[service.ComponentHero] = err
	} else {
		update.Hero = hero
	}
	if footer, err := decodeOptionalSection(payload.Footer); err != nil {
		issues[service.ComponentFooter] = err
	} else {
		update.Footer = footer
	}
	if payload.Sections != nil {
		if sections, err := decodeSections(*payload.Sections); err != nil {
			issues[service.ComponentSections] = err
		} else {
			update.Sections = &sections
		}
	}
	if len(issues) > 0 {
		respondServiceError(c, &service.ValidationError{Fields: issues}, "页面组件格式不正确")
		return
	}

	written, err := a.pages.UpsertComponents(c.Request.Context(), actor, c.Param("slug"), update)
	if err != nil {
		respondServiceError(c, err, "保存失败，请稍后重试")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slug":       c.Param("slug"),
		"components": written,
	})
}

// UpdatePageSettings 修改页面标题或发布状态，slug 保持不变。
func (a *API) UpdatePageSettings(c *gin.Context) {
	actor, ok := a.authorize(c)
	if !ok {
		return
	}

	var payload pageSettingsRequest
	if !bindJSON(c, &payload, "页面设置格式不正确") {
		return
	}

	page, err := a.pages.UpdateSettings(c.Request.Context(), actor, c.Param("slug"), service.PageSettingsInput{
		Title:       payload.Title,
		IsPublished: payload.IsPublished,
	})
	if err != nil {
		respondServiceError(c, err, "保存页面设置失败")
		return
	}

	c.JSON(http.StatusOK, pagePayload(*page))
}

// decodeSection parses one raw section object. Shape and variant problems come
// back as validation.Errors keyed by field.
func decodeSection(raw json.RawMessage) (section.Section, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return section.Section{}, errors.New("must be an object")
	}
	s, err := section.Parse(obj)
	if err != nil {
		var sectionErr *section.Error
		if errors.As(err, &sectionErr) {
			return section.Section{}, sectionErr.Issues
		}
		return section.Section{}, err
	}
	return s, nil
}

// decodeOptionalSection treats an absent or null component as not supplied.
func decodeOptionalSection(raw json.RawMessage) (*section.Section, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	s, err := decodeSection(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeSections parses every element and keys failures by index.
func decodeSections(raw []json.RawMessage) ([]section.Section, error) {
	out := make([]section.Section, 0, len(raw))
	issues := validation.Errors{}
	for i, item := range raw {
		s, err := decodeSection(item)
		if err != nil {
			issues[strconv.Itoa(i)] = err
			continue
		}
		out = append(out, s)
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}
