package shopping

import (
	"math"
	"sort"
	"strings"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
)

// Line 是由计划菜品汇总得到的一条购物需求。
type Line struct {
	IngredientName string  `json:"ingredientName"`
	Category       string  `json:"category"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
}

// Normalize 裁剪首尾空白并折叠内部连续空白。
func Normalize(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Key 返回用于合并同类配料的比较键。
func Key(name, unit, category string) string {
	return strings.ToLower(Normalize(name)) + "|" + strings.ToLower(Normalize(unit)) + "|" + strings.ToLower(Category(category))
}

// Category 规范化分类，空分类归入默认分类。
func Category(raw string) string {
	c := Normalize(raw)
	if c == "" {
		return models.DefaultCategory
	}
	return c
}

// Derive 汇总所有计划菜品的配料，按份数缩放后合并相同项。
// 结果按分类、名称排序；首次出现的写法作为展示名称。
func Derive(meals []models.PlannedMeal) []Line {
	index := make(map[string]int)
	lines := make([]Line, 0, 16)

	for _, meal := range meals {
		factor := scale(meal.Servings, meal.Recipe.Servings)
		for _, ing := range meal.Recipe.Ingredients {
			name := Normalize(ing.Name)
			if name == "" {
				continue
			}
			key := Key(name, ing.Unit, ing.Category)
			qty := ing.Quantity * factor
			if i, ok := index[key]; ok {
				lines[i].Quantity += qty
				continue
			}
			index[key] = len(lines)
			lines = append(lines, Line{
				IngredientName: name,
				Category:       Category(ing.Category),
				Quantity:       qty,
				Unit:           Normalize(ing.Unit),
			})
		}
	}

	for i := range lines {
		lines[i].Quantity = round(lines[i].Quantity)
	}
	sort.SliceStable(lines, func(i, j int) bool {
		ci, cj := strings.ToLower(lines[i].Category), strings.ToLower(lines[j].Category)
		if ci != cj {
			return ci < cj
		}
		return strings.ToLower(lines[i].IngredientName) < strings.ToLower(lines[j].IngredientName)
	})
	return lines
}

func scale(planned, base int) float64 {
	if planned <= 0 {
		planned = 1
	}
	if base <= 0 {
		base = 1
	}
	return float64(planned) / float64(base)
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
