package db

import (
	"time"

	"github.com/sitebuilder/internal/section"
	"gorm.io/gorm"
)

// Page is an authorable page. Slug is fixed at creation; Content is replaced
// as a whole on every save.
type Page struct {
	gorm.Model
	Slug        string      `gorm:"size:200;uniqueIndex;not null"`
	Title       string      `gorm:"not null"`
	Content     PageContent `gorm:"type:text;serializer:json"`
	IsPublished bool        `gorm:"not null;default:false;index"`
	CreatedBy   uint
}

// PageContent is the authorable body of a page. Section order is display order.
type PageContent struct {
	Sections   []section.Section `json:"sections"`
	Properties map[string]any    `json:"properties"`
}

// Normalized replaces nil collections with empty ones so the stored JSON is stable.
func (c PageContent) Normalized() PageContent {
	out := c
	if out.Sections == nil {
		out.Sections = []section.Section{}
	}
	if out.Properties == nil {
		out.Properties = map[string]any{}
	}
	return out
}

// PageComponent 按 (page_slug, component_type) 独立保存页面的一部分内容，
// 例如 hero、sections、footer，彼此之间互不影响。
type PageComponent struct {
	ID            uint   `gorm:"primaryKey"`
	PageSlug      string `gorm:"size:200;not null;uniqueIndex:idx_page_component"`
	ComponentType string `gorm:"size:50;not null;uniqueIndex:idx_page_component"`
	Content       string `gorm:"type:text;not null"`
	UpdatedBy     uint
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 自定义表名以保持命名一致。
func (PageComponent) TableName() string {
	return "page_components"
}
