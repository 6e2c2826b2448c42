package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/HaiBangi/yumiso-sub003/internal/auth"
	"github.com/HaiBangi/yumiso-sub003/internal/models"
	"github.com/HaiBangi/yumiso-sub003/internal/realtime"
	"github.com/HaiBangi/yumiso-sub003/internal/shopping"
)

type shoppingItemRequest struct {
	IngredientName string  `json:"ingredientName" validate:"required,max=120"`
	Category       string  `json:"category" validate:"max=64"`
	Quantity       float64 `json:"quantity" validate:"gte=0"`
	Unit           string  `json:"unit" validate:"max=32"`
}

type checkRequest struct {
	Checked bool `json:"checked"`
}

func actor(id auth.Identity) realtime.Actor {
	return realtime.Actor{ID: id.ID, Name: id.Name}
}

func (s *Server) apiListShopping(w http.ResponseWriter, r *http.Request) {
	planID, _, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	items, err := s.store.ListShoppingItems(r.Context(), planID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"items":       items,
		"subscribers": s.registry.Count(planID),
	})
}

func (s *Server) apiAddShoppingItem(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	var body shoppingItemRequest
	if !s.decode(w, r, &body) {
		return
	}
	item := &models.ShoppingItem{
		MealPlanID:     planID,
		IngredientName: body.IngredientName,
		Category:       body.Category,
		Quantity:       body.Quantity,
		Unit:           body.Unit,
		AddedByID:      user.ID,
	}
	if err := s.store.AddShoppingItem(r.Context(), item); err != nil {
		storeError(w, err)
		return
	}
	s.broadcaster.Broadcast(planID, realtime.ItemAdded(actor(user), *item))
	writeJSONStatus(w, http.StatusCreated, item)
}

func (s *Server) apiRemoveShoppingItem(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	itemID, err := parseIDParam(chi.URLParam(r, "itemID"))
	if err != nil {
		writeMessage(w, "invalid item id", http.StatusBadRequest)
		return
	}
	item, err := s.store.RemoveShoppingItem(r.Context(), planID, itemID)
	if err != nil {
		storeError(w, err)
		return
	}
	s.broadcaster.Broadcast(planID, realtime.ItemRemoved(actor(user), *item))
	writeJSON(w, item)
}

func (s *Server) apiCheckShoppingItem(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	itemID, err := parseIDParam(chi.URLParam(r, "itemID"))
	if err != nil {
		writeMessage(w, "invalid item id", http.StatusBadRequest)
		return
	}
	var body checkRequest
	if !s.decode(w, r, &body) {
		return
	}
	item, err := s.store.SetShoppingItemChecked(r.Context(), planID, itemID, body.Checked)
	if err != nil {
		storeError(w, err)
		return
	}
	s.broadcaster.Broadcast(planID, realtime.ItemChecked(actor(user), *item))
	writeJSON(w, item)
}

func (s *Server) apiResetShopping(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	removed, err := s.store.ResetShoppingList(r.Context(), planID)
	if err != nil {
		storeError(w, err)
		return
	}
	s.broadcaster.Broadcast(planID, realtime.ListReset(actor(user)))
	writeJSON(w, map[string]int64{"removed": removed})
}

// apiGenerateShopping 根据计划中的菜品重新汇总购物清单。
func (s *Server) apiGenerateShopping(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	plan, err := s.store.GetMealPlan(r.Context(), planID)
	if err != nil {
		storeError(w, err)
		return
	}
	items, err := s.store.ReplaceShoppingList(r.Context(), planID, user.ID, shopping.Derive(plan.Meals))
	if err != nil {
		storeError(w, err)
		return
	}
	s.broadcaster.Broadcast(planID, realtime.ListGenerated(actor(user), len(items)))
	writeJSON(w, map[string]interface{}{"items": items})
}

// handshakeFrames 是每个新连接固定入队的 connected 与 initial。
const handshakeFrames = 2

// openStream 注册新连接并入队 connected 与 initial 两帧。
// 读取快照期间到达的事件先暂存，在 initial 之后送达。
func (s *Server) openStream(ctx context.Context, planID int64) (*realtime.Stream, error) {
	stream := realtime.NewStream(s.cfg.StreamBuffer + handshakeFrames)
	frame, err := realtime.Encode(realtime.Connected(planID))
	if err != nil {
		return nil, err
	}
	if err := stream.Send(frame); err != nil {
		return nil, err
	}
	stream.Hold()
	s.registry.Subscribe(planID, stream)

	items, err := s.store.ListShoppingItems(ctx, planID)
	if err != nil {
		s.closeStream(planID, stream)
		return nil, err
	}
	frame, err = realtime.Encode(realtime.Initial(items))
	if err == nil {
		err = stream.Release(frame)
	}
	if err != nil {
		s.closeStream(planID, stream)
		return nil, err
	}
	return stream, nil
}

func (s *Server) closeStream(planID int64, stream *realtime.Stream) {
	s.registry.Unsubscribe(planID, stream)
	stream.Close()
}

func (s *Server) streamShoppingList(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	stream, err := s.openStream(r.Context(), planID)
	if err != nil {
		storeError(w, err)
		return
	}
	defer s.closeStream(planID, stream)

	flusher, ok := realtime.PrepareSSE(w)
	if !ok {
		writeMessage(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	logger := s.logger.With().Int64("list_id", planID).Int64("user_id", user.ID).Str("stream", stream.ID()).Logger()
	logger.Debug().Int("subscribers", s.registry.Count(planID)).Msg("sse connected")

	err = realtime.PumpSSE(r.Context(), w, flusher, stream, s.cfg.HeartbeatInterval)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug().Err(err).Msg("sse closed")
	}
}

func (s *Server) websocketShoppingList(w http.ResponseWriter, r *http.Request) {
	planID, user, ok := s.planAccess(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Int64("list_id", planID).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	stream, err := s.openStream(r.Context(), planID)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "list unavailable")
		return
	}
	defer s.closeStream(planID, stream)

	logger := s.logger.With().Int64("list_id", planID).Int64("user_id", user.ID).Str("stream", stream.ID()).Logger()
	logger.Debug().Msg("websocket connected")

	err = realtime.PumpWebSocket(r.Context(), conn, stream, s.cfg.HeartbeatInterval)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug().Err(err).Msg("websocket closed")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
