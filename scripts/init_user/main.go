package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/config"
	"github.com/sitebuilder/internal/db"
)

func main() {
	email := flag.String("email", "admin@example.com", "管理员邮箱")
	password := flag.String("password", "admin123", "管理员密码")
	role := flag.String("role", auth.RoleAdmin, "账号角色")
	flag.Parse()

	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	var count int64
	db.DB.Model(&db.User{}).Where("email = ?", *email).Count(&count)
	if count > 0 {
		fmt.Println("用户已存在，无需初始化")
		return
	}

	if err := db.EnsureUser(db.DB, *email, *password, *role); err != nil {
		log.Fatal("创建用户失败:", err)
	}

	fmt.Println("用户创建成功")
	fmt.Println("邮箱:", *email)
	fmt.Println("角色:", *role)
}
