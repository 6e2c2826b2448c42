package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
)

// RecipeQuery 用于列举菜谱时提供可选过滤条件。
type RecipeQuery struct {
	Search   string
	Page     int
	PageSize int
}

// CreateRecipe 创建菜谱及其配料。
func (s *Store) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	return s.DB.WithContext(ctx).Create(recipe).Error
}

// GetRecipe 根据 ID 获取菜谱，包含配料。
func (s *Store) GetRecipe(ctx context.Context, id int64) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.DB.WithContext(ctx).Preload("Ingredients").First(&recipe, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &recipe, nil
}

// ListRecipes 结合搜索与分页条件返回菜谱，以及满足条件的总数。
func (s *Store) ListRecipes(ctx context.Context, q *RecipeQuery) ([]models.Recipe, int64, error) {
	query := &RecipeQuery{}
	if q != nil {
		*query = *q
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 24
	}

	base := s.DB.WithContext(ctx).Model(&models.Recipe{})
	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := "%" + search + "%"
		base = base.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recipes []models.Recipe
	err := base.Session(&gorm.Session{}).
		Order("view_count DESC, id ASC").
		Offset((query.Page - 1) * query.PageSize).
		Limit(query.PageSize).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

// IncrementRecipeViews 将菜谱的浏览计数增加 n，单条语句完成。
func (s *Store) IncrementRecipeViews(ctx context.Context, recipeID, n int64) error {
	res := s.DB.WithContext(ctx).Model(&models.Recipe{}).
		Where("id = ?", recipeID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
