package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HaiBangi/yumiso-sub003/internal/auth"
	"github.com/HaiBangi/yumiso-sub003/internal/models"
	"github.com/HaiBangi/yumiso-sub003/internal/store"
	"github.com/HaiBangi/yumiso-sub003/internal/views"
)

type ingredientRequest struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Unit     string  `json:"unit" validate:"max=32"`
	Category string  `json:"category" validate:"max=64"`
}

type recipeRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Servings    int                 `json:"servings" validate:"min=1,max=100"`
	Ingredients []ingredientRequest `json:"ingredients" validate:"dive"`
}

func (s *Server) apiListRecipes(w http.ResponseWriter, r *http.Request) {
	q := &store.RecipeQuery{
		Search:   r.URL.Query().Get("q"),
		Page:     intParam(r.URL.Query().Get("page"), 1),
		PageSize: intParam(r.URL.Query().Get("pageSize"), 24),
	}
	recipes, total, err := s.store.ListRecipes(r.Context(), q)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"items": recipes,
		"total": total,
		"page":  q.Page,
	})
}

// apiGetRecipe 返回菜谱详情，并在节流窗口外为访客计一次浏览。
func (s *Server) apiGetRecipe(w http.ResponseWriter, r *http.Request) {
	recipeID, err := parseIDParam(chi.URLParam(r, "recipeID"))
	if err != nil {
		writeMessage(w, "invalid recipe id", http.StatusBadRequest)
		return
	}
	recipe, err := s.store.GetRecipe(r.Context(), recipeID)
	if err != nil {
		storeError(w, err)
		return
	}
	s.countView(w, r, recipeID)
	writeJSON(w, recipe)
}

func (s *Server) countView(w http.ResponseWriter, r *http.Request, recipeID int64) {
	now := time.Now()
	throttle := s.viewCookie.Read(r)
	if !views.ShouldCountView(throttle, recipeID, now) {
		return
	}
	s.views.Register(recipeID)
	if err := s.viewCookie.Write(w, views.UpdateViewsData(throttle, recipeID, now)); err != nil {
		s.logger.Warn().Err(err).Int64("recipe_id", recipeID).Msg("write view cookie")
	}
}

func (s *Server) apiCreateRecipe(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var body recipeRequest
	if !s.decode(w, r, &body) {
		return
	}
	recipe := &models.Recipe{
		AuthorID:    user.ID,
		Title:       body.Title,
		Description: body.Description,
		Servings:    body.Servings,
	}
	for _, ing := range body.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Unit:     ing.Unit,
			Category: ing.Category,
		})
	}
	if err := s.store.CreateRecipe(r.Context(), recipe); err != nil {
		storeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, recipe)
}

func (s *Server) apiViewStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.views.Stats())
}
