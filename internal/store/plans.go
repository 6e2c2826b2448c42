package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
	"github.com/HaiBangi/yumiso-sub003/internal/shopping"
)

// CreateMealPlan 新建膳食计划。
func (s *Store) CreateMealPlan(ctx context.Context, plan *models.MealPlan) error {
	return s.DB.WithContext(ctx).Omit(clause.Associations).Create(plan).Error
}

// GetMealPlan 获取计划及其菜品与菜谱配料。
func (s *Store) GetMealPlan(ctx context.Context, id int64) (*models.MealPlan, error) {
	var plan models.MealPlan
	err := s.DB.WithContext(ctx).
		Preload("Meals", func(db *gorm.DB) *gorm.DB { return db.Order("day ASC, id ASC") }).
		Preload("Meals.Recipe.Ingredients").
		First(&plan, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

// ListMealPlans 返回用户拥有或参与协作的计划。
func (s *Store) ListMealPlans(ctx context.Context, userID int64) ([]models.MealPlan, error) {
	var plans []models.MealPlan
	err := s.DB.WithContext(ctx).
		Where("owner_id = ? OR id IN (?)", userID,
			s.DB.Model(&models.PlanContributor{}).Select("meal_plan_id").Where("user_id = ?", userID)).
		Order("week_start DESC, id DESC").
		Find(&plans).Error
	return plans, err
}

// AddPlannedMeal 把菜谱加入计划。
func (s *Store) AddPlannedMeal(ctx context.Context, meal *models.PlannedMeal) error {
	if _, err := s.GetRecipe(ctx, meal.RecipeID); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Omit(clause.Associations).Create(meal).Error
}

// AddContributor 授予用户协作权限，重复添加不报错。
func (s *Store) AddContributor(ctx context.Context, planID, userID int64) error {
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PlanContributor{MealPlanID: planID, UserID: userID}).Error
}

// CheckPlanAccess 校验用户是计划所有者或协作者。
func (s *Store) CheckPlanAccess(ctx context.Context, planID, userID int64) error {
	var plan models.MealPlan
	if err := s.DB.WithContext(ctx).Select("id", "owner_id").First(&plan, planID).Error; err != nil {
		return notFound(err)
	}
	if plan.OwnerID == userID {
		return nil
	}
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.PlanContributor{}).
		Where("meal_plan_id = ? AND user_id = ?", planID, userID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrForbidden
	}
	return nil
}

// ListShoppingItems 返回计划当前的购物项。
func (s *Store) ListShoppingItems(ctx context.Context, planID int64) ([]models.ShoppingItem, error) {
	items := []models.ShoppingItem{}
	err := s.DB.WithContext(ctx).
		Where("meal_plan_id = ?", planID).
		Order("category ASC, ingredient_name ASC, id ASC").
		Find(&items).Error
	return items, err
}

// AddShoppingItem 新增购物项。
func (s *Store) AddShoppingItem(ctx context.Context, item *models.ShoppingItem) error {
	item.IngredientName = shopping.Normalize(item.IngredientName)
	item.Category = shopping.Category(item.Category)
	return s.DB.WithContext(ctx).Create(item).Error
}

// RemoveShoppingItem 删除购物项并返回被删除的记录。
func (s *Store) RemoveShoppingItem(ctx context.Context, planID, itemID int64) (*models.ShoppingItem, error) {
	var item models.ShoppingItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meal_plan_id = ?", planID).First(&item, itemID).Error; err != nil {
			return notFound(err)
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetShoppingItemChecked 更新购物项的勾选状态。
func (s *Store) SetShoppingItemChecked(ctx context.Context, planID, itemID int64, checked bool) (*models.ShoppingItem, error) {
	var item models.ShoppingItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meal_plan_id = ?", planID).First(&item, itemID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&item).Update("checked", checked).Error; err != nil {
			return err
		}
		item.Checked = checked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ResetShoppingList 清空计划的购物清单，返回删除数量。
func (s *Store) ResetShoppingList(ctx context.Context, planID int64) (int64, error) {
	res := s.DB.WithContext(ctx).Where("meal_plan_id = ?", planID).Delete(&models.ShoppingItem{})
	return res.RowsAffected, res.Error
}

// ReplaceShoppingList 用汇总结果替换购物清单，在同一事务内完成。
func (s *Store) ReplaceShoppingList(ctx context.Context, planID, userID int64, lines []shopping.Line) ([]models.ShoppingItem, error) {
	items := make([]models.ShoppingItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.ShoppingItem{
			MealPlanID:     planID,
			IngredientName: line.IngredientName,
			Category:       line.Category,
			Quantity:       line.Quantity,
			Unit:           line.Unit,
			AddedByID:      userID,
		})
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meal_plan_id = ?", planID).Delete(&models.ShoppingItem{}).Error; err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// IsNotFound 判断错误是否为记录不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
