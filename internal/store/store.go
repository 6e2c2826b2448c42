package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound 表示记录不存在。
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials 表示用户名或密码错误。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden 表示用户无权访问该计划。
	ErrForbidden = errors.New("forbidden")
	// ErrUsernameTaken 表示用户名已被注册。
	ErrUsernameTaken = errors.New("username taken")
)

// Store 封装了对 SQLite 数据库的持久化访问。
type Store struct {
	DB  *gorm.DB
	sql *sql.DB
}

// New 根据给定的 SQLite 文件路径初始化 Store。
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // SQLite 更适合单写入，这里保持简单配置。

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open orm: %w", err)
	}

	s := &Store{DB: db, sql: sqlDB}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Close 释放数据库资源。
func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	err := s.DB.AutoMigrate(
		&models.User{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.MealPlan{},
		&models.PlannedMeal{},
		&models.PlanContributor{},
		&models.ShoppingItem{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// EnsureAdmin 根据给定凭证创建或更新管理员账号，确保其存在。
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Where("username = ?", username).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.User{Username: username, PasswordHash: string(hash)}).Error; err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			return nil
		case err != nil:
			return err
		}
		if err := tx.Model(&existing).Update("password_hash", string(hash)).Error; err != nil {
			return fmt.Errorf("update admin: %w", err)
		}
		return nil
	})
}

// CreateUser 新建普通用户，用户名重复时返回 ErrUsernameTaken。
func (s *Store) CreateUser(ctx context.Context, username, displayName, password string) (*models.User, error) {
	if _, err := s.FindUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !IsNotFound(err) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{Username: username, DisplayName: displayName, PasswordHash: string(hash)}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate 校验登录凭证，成功时返回用户。
func (s *Store) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetUser 根据 ID 获取用户。
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindUserByUsername 按用户名查询用户。
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
