package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/sitebuilder/internal/auth"
	"github.com/sitebuilder/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultSiteName = "SiteBuilder"

// SystemSettings 描述后台可配置的系统信息。
type SystemSettings struct {
	SiteName   string
	AdminEmail string
}

// SystemSettingsInput 用于更新系统设置。nil 字段保持原值，空字符串表示清空。
type SystemSettingsInput struct {
	SiteName   *string
	AdminEmail *string
}

// Validate implements validation.Validatable.
func (in SystemSettingsInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SiteName, validation.Length(0, 100)),
		validation.Field(&in.AdminEmail, validation.Length(0, 255), is.EmailFormat),
	)
}

// SystemSettingService 提供系统设置的读取与更新能力，同时作为管理员邮箱兜底来源。
type SystemSettingService struct {
	db *gorm.DB
}

// NewSystemSettingService 构造 SystemSettingService。
func NewSystemSettingService(gdb *gorm.DB) *SystemSettingService {
	return &SystemSettingService{db: gdb}
}

var settingKeys = []string{
	db.SettingKeySiteName,
	db.SettingKeyAdminEmail,
}

// GetSettings 读取系统设置，如未设置将返回默认值。
func (s *SystemSettingService) GetSettings(ctx context.Context) (SystemSettings, error) {
	result := SystemSettings{SiteName: defaultSiteName}

	var records []db.SystemSetting
	if err := s.db.WithContext(ctx).Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load system settings: %w", err)
	}

	for _, record := range records {
		switch record.Key {
		case db.SettingKeySiteName:
			if strings.TrimSpace(record.Value) != "" {
				result.SiteName = record.Value
			}
		case db.SettingKeyAdminEmail:
			result.AdminEmail = record.Value
		}
	}

	return result, nil
}

// AdminEmail implements auth.AdminEmailSource with a single-row lookup.
// A missing row yields an empty email, which never matches.
func (s *SystemSettingService) AdminEmail(ctx context.Context) (string, error) {
	var record db.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", db.SettingKeyAdminEmail).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load admin email: %w", err)
	}
	return record.Value, nil
}

// UpdateSettings 只保存提交了的设置项，站点名称清空时回退默认值。
func (s *SystemSettingService) UpdateSettings(ctx context.Context, actor auth.AuthorizedPrincipal, input SystemSettingsInput) (SystemSettings, error) {
	if !actor.Valid() {
		return SystemSettings{}, ErrNotAuthorized
	}
	if input.SiteName == nil && input.AdminEmail == nil {
		return SystemSettings{}, invalidField("settings", errors.New("at least one of SiteName or AdminEmail is required"))
	}

	sanitized := SystemSettingsInput{
		SiteName:   trimmedPtr(input.SiteName),
		AdminEmail: trimmedPtr(input.AdminEmail),
	}
	if err := sanitized.Validate(); err != nil {
		return SystemSettings{}, asValidationError(err)
	}
	if sanitized.SiteName != nil && *sanitized.SiteName == "" {
		name := defaultSiteName
		sanitized.SiteName = &name
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sanitized.SiteName != nil {
			if err := upsertSetting(tx, db.SettingKeySiteName, *sanitized.SiteName); err != nil {
				return err
			}
		}
		if sanitized.AdminEmail != nil {
			return upsertSetting(tx, db.SettingKeyAdminEmail, *sanitized.AdminEmail)
		}
		return nil
	})
	if err != nil {
		return SystemSettings{}, fmt.Errorf("update system settings: %w", err)
	}

	return s.GetSettings(ctx)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

// EnsureAdminEmail 仅在 admin_email 尚未配置时写入，用于启动时的环境变量引导。
func (s *SystemSettingService) EnsureAdminEmail(ctx context.Context, email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return nil
	}
	setting := db.SystemSetting{Key: db.SettingKeyAdminEmail, Value: trimmed}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&setting).Error; err != nil {
		return fmt.Errorf("seed admin email: %w", err)
	}
	return nil
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
