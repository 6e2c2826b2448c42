package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HaiBangi/yumiso-sub003/internal/auth"
	"github.com/HaiBangi/yumiso-sub003/internal/models"
	"github.com/HaiBangi/yumiso-sub003/internal/store"
)

type planRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	WeekStart string `json:"weekStart" validate:"omitempty,datetime=2006-01-02"`
}

type mealRequest struct {
	RecipeID int64  `json:"recipeId" validate:"required,gt=0"`
	Day      int    `json:"day" validate:"min=0,max=6"`
	Slot     string `json:"slot" validate:"required,oneof=breakfast lunch dinner snack"`
	Servings int    `json:"servings" validate:"min=1,max=100"`
}

type contributorRequest struct {
	Username string `json:"username" validate:"required"`
}

// planAccess 解析路径中的计划 ID 并确认当前用户可访问，失败时已写出响应。
func (s *Server) planAccess(w http.ResponseWriter, r *http.Request) (int64, auth.Identity, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeMessage(w, "login required", http.StatusUnauthorized)
		return 0, user, false
	}
	planID, err := parseIDParam(chi.URLParam(r, "planID"))
	if err != nil {
		writeMessage(w, "invalid plan id", http.StatusBadRequest)
		return 0, user, false
	}
	if err := s.store.CheckPlanAccess(r.Context(), planID, user.ID); err != nil {
		storeError(w, err)
		return 0, user, false
	}
	return planID, user, true
}

func (s *Server) apiListPlans(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	plans, err := s.store.ListMealPlans(r.Context(), user.ID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, plans)
}

func (s *Server) apiCreatePlan(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var body planRequest
	if !s.decode(w, r, &body) {
		return
	}
	plan := &models.MealPlan{OwnerID: user.ID, Name: body.Name}
	if body.WeekStart != "" {
		plan.WeekStart, _ = time.Parse("2006-01-02", body.WeekStart)
	}
	if err := s.store.CreateMealPlan(r.Context(), plan); err != nil {
		storeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, plan)
}

func (s *Server) apiGetPlan(w http.ResponseWriter, r *http.Request) {
	planID, _, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	plan, err := s.store.GetMealPlan(r.Context(), planID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, plan)
}

func (s *Server) apiAddMeal(w http.ResponseWriter, r *http.Request) {
	planID, _, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	var body mealRequest
	if !s.decode(w, r, &body) {
		return
	}
	meal := &models.PlannedMeal{
		MealPlanID: planID,
		RecipeID:   body.RecipeID,
		Day:        body.Day,
		Slot:       body.Slot,
		Servings:   body.Servings,
	}
	if err := s.store.AddPlannedMeal(r.Context(), meal); err != nil {
		storeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, meal)
}

// apiAddContributor 仅允许计划所有者邀请协作者。
func (s *Server) apiAddContributor(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	var body contributorRequest
	if !s.decode(w, r, &body) {
		return
	}
	plan, err := s.store.GetMealPlan(r.Context(), planID)
	if err != nil {
		storeError(w, err)
		return
	}
	if plan.OwnerID != user.ID {
		storeError(w, store.ErrForbidden)
		return
	}
	invitee, err := s.store.FindUserByUsername(r.Context(), body.Username)
	if err != nil {
		storeError(w, err)
		return
	}
	if err := s.store.AddContributor(r.Context(), planID, invitee.ID); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"planId": planID, "user": invitee})
}
