package models

import "time"

// User 表示已认证的账户信息。
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName  string    `gorm:"not null;default:''" json:"displayName"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Name 返回界面展示用的名称。
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Recipe 表示一份菜谱及其浏览计数。
type Recipe struct {
	ID          int64              `gorm:"primaryKey" json:"id"`
	AuthorID    int64              `gorm:"index;not null" json:"authorId"`
	Title       string             `gorm:"not null" json:"title"`
	Description string             `gorm:"not null;default:''" json:"description"`
	Servings    int                `gorm:"not null;default:1" json:"servings"`
	ViewCount   int64              `gorm:"not null;default:0" json:"viewCount"`
	Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE" json:"ingredients"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// RecipeIngredient 是菜谱中的一行配料。
type RecipeIngredient struct {
	ID       int64   `gorm:"primaryKey" json:"id"`
	RecipeID int64   `gorm:"index;not null" json:"recipeId"`
	Name     string  `gorm:"not null" json:"name"`
	Quantity float64 `gorm:"not null;default:0" json:"quantity"`
	Unit     string  `gorm:"not null;default:''" json:"unit"`
	Category string  `gorm:"not null;default:''" json:"category"`
}

// MealPlan 表示一周的膳食计划，同时也是购物清单的归属。
type MealPlan struct {
	ID           int64             `gorm:"primaryKey" json:"id"`
	OwnerID      int64             `gorm:"index;not null" json:"ownerId"`
	Name         string            `gorm:"not null" json:"name"`
	WeekStart    time.Time         `json:"weekStart"`
	Meals        []PlannedMeal     `gorm:"constraint:OnDelete:CASCADE" json:"meals"`
	Contributors []PlanContributor `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// PlannedMeal 把菜谱安排到计划中的某一天与餐次。
type PlannedMeal struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	MealPlanID int64  `gorm:"index;not null" json:"mealPlanId"`
	RecipeID   int64  `gorm:"index;not null" json:"recipeId"`
	Recipe     Recipe `gorm:"constraint:OnDelete:CASCADE" json:"recipe"`
	Day        int    `gorm:"not null" json:"day"`
	Slot       string `gorm:"not null" json:"slot"`
	Servings   int    `gorm:"not null;default:1" json:"servings"`
}

// PlanContributor 授予其他用户协作编辑计划的权限。
type PlanContributor struct {
	MealPlanID int64     `gorm:"primaryKey" json:"mealPlanId"`
	UserID     int64     `gorm:"primaryKey" json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ShoppingItem 是购物清单中的一项。
type ShoppingItem struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	MealPlanID     int64     `gorm:"index;not null" json:"mealPlanId"`
	IngredientName string    `gorm:"not null" json:"ingredientName"`
	Category       string    `gorm:"not null;default:''" json:"category"`
	Quantity       float64   `gorm:"not null;default:0" json:"quantity"`
	Unit           string    `gorm:"not null;default:''" json:"unit"`
	Checked        bool      `gorm:"not null;default:false" json:"checked"`
	AddedByID      int64     `gorm:"not null;default:0" json:"addedById"`
	CreatedAt      time.Time `json:"createdAt"`
}

// 计划中的餐次。
const (
	SlotBreakfast = "breakfast"
	SlotLunch     = "lunch"
	SlotDinner    = "dinner"
	SlotSnack     = "snack"
)

// DefaultCategory 用于未分类的购物项。
const DefaultCategory = "Autres"
