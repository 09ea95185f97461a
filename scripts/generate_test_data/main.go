package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/config"
	"github.com/sitebuilder/internal/db"
	"github.com/sitebuilder/internal/section"
	"github.com/sitebuilder/internal/service"
	"gorm.io/gorm"
)

const (
	seedAdminEmail    = "admin@example.com"
	seedAdminPassword = "admin123"
	seedUserEmail     = "user@example.com"
	seedUserPassword  = "user123"
)

type demoPage struct {
	Title     string
	Type      string
	Published bool
	Extra     []section.Section
}

var demoPages = []demoPage{
	{
		Title:     "首页",
		Type:      service.PageTypeLanding,
		Published: true,
		Extra: []section.Section{
			section.Default(section.TypeText).
				With("format", "markdown").
				With("content", "## 欢迎\n\n这是一个由区块组成的示例页面。\n\nhttps://www.youtube.com/watch?v=dQw4w9WgXcQ"),
		},
	},
	{
		Title:     "联系我们",
		Type:      service.PageTypeContact,
		Published: true,
	},
	{
		Title: "草稿页面",
		Type:  service.PageTypeBlank,
	},
}

// 测试数据生成器
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	if err := createTestUsers(db.DB); err != nil {
		log.Fatal("创建测试用户失败:", err)
	}
	created, err := createDemoPages(context.Background(), db.DB)
	if err != nil {
		log.Fatal("创建示例页面失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("管理员: %s (密码: %s)\n", seedAdminEmail, seedAdminPassword)
	fmt.Printf("普通用户: %s (密码: %s)\n", seedUserEmail, seedUserPassword)
	fmt.Printf("页面: %d 个\n", created)
}

func createTestUsers(gdb *gorm.DB) error {
	if err := db.EnsureUser(gdb, seedAdminEmail, seedAdminPassword, auth.RoleAdmin); err != nil {
		return err
	}
	if err := db.EnsureUser(gdb, seedUserEmail, seedUserPassword, "user"); err != nil {
		return err
	}
	fmt.Println("✅ 测试用户就绪")
	return nil
}

// createDemoPages 以管理员身份通过服务层写入示例页面。已有页面时跳过。
func createDemoPages(ctx context.Context, gdb *gorm.DB) (int, error) {
	var count int64
	if err := gdb.Model(&db.Page{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		fmt.Println("页面已存在，跳过创建")
		return 0, nil
	}

	users := service.NewUserService(gdb)
	var admin db.User
	if err := gdb.Where("email = ?", seedAdminEmail).First(&admin).Error; err != nil {
		return 0, err
	}
	principal, err := users.Principal(ctx, admin.ID)
	if err != nil {
		return 0, err
	}
	actor, err := auth.NewGate(users, service.NewSystemSettingService(gdb)).Authorize(ctx, principal)
	if err != nil {
		return 0, errors.Join(errors.New("seed admin is not authorized"), err)
	}

	pages := service.NewPageService(gdb)
	for _, demo := range demoPages {
		page, err := pages.Create(ctx, actor, service.CreatePageInput{Title: demo.Title, Type: demo.Type})
		if err != nil {
			return 0, fmt.Errorf("create %s: %w", demo.Title, err)
		}
		if len(demo.Extra) > 0 {
			content := page.Content
			content.Sections = append(content.Sections, demo.Extra...)
			if _, err := pages.UpsertContent(ctx, actor, page.Slug, content); err != nil {
				return 0, fmt.Errorf("fill %s: %w", page.Slug, err)
			}
		}
		if demo.Published {
			published := true
			if _, err := pages.UpdateSettings(ctx, actor, page.Slug, service.PageSettingsInput{IsPublished: &published}); err != nil {
				return 0, fmt.Errorf("publish %s: %w", page.Slug, err)
			}
		}
	}

	fmt.Println("✅ 示例页面创建完成")
	return len(demoPages), nil
}
