package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 定义了用户模型，Role 为 "admin" 时拥有页面编辑权限。
type User struct {
	gorm.Model
	Email    string `gorm:"size:255;uniqueIndex;not null"`
	Password string `gorm:"not null"`
	Role     string `gorm:"size:50;not null;default:'user'"`
}

// EnsureUser 存在性检查：若邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的用户。
// 已存在的账号不会被修改。
func EnsureUser(gdb *gorm.DB, email, password, role string) error {
	trimmedEmail := strings.TrimSpace(email)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil
	}

	if gdb == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return gdb.Create(&User{Email: trimmedEmail, Password: string(hashed), Role: strings.TrimSpace(role)}).Error
	}

	return nil
}
