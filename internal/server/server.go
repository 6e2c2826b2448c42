package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"

	"github.com/HaiBangi/yumiso-sub003/internal/auth"
	"github.com/HaiBangi/yumiso-sub003/internal/config"
	"github.com/HaiBangi/yumiso-sub003/internal/logging"
	"github.com/HaiBangi/yumiso-sub003/internal/realtime"
	"github.com/HaiBangi/yumiso-sub003/internal/store"
	"github.com/HaiBangi/yumiso-sub003/internal/views"
)

// Server 负责协调 HTTP 路由与业务逻辑。
type Server struct {
	cfg         *config.Config
	store       *store.Store
	auth        *auth.Manager
	registry    *realtime.Registry
	broadcaster *realtime.Broadcaster
	relay       *realtime.RedisRelay
	views       *views.Buffer
	viewCookie  *views.CookieCodec
	flusher     *views.Flusher
	validate    *validator.Validate
	logger      zerolog.Logger
	stopRelay   context.CancelFunc
}

// New 创建并初始化 Server，启动浏览量定时落库与可选的跨实例转发。
func New(cfg *config.Config, st *store.Store) (*Server, error) {
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry, logging.Component("realtime"))
	buffer := views.NewBuffer(st, logging.Component("views"))

	srv := &Server{
		cfg:         cfg,
		store:       st,
		auth:        auth.NewManager(st, []byte(cfg.SessionKey), cfg.CSRFSecure),
		registry:    registry,
		broadcaster: broadcaster,
		views:       buffer,
		viewCookie:  views.NewCookieCodec([]byte(cfg.SessionKey), cfg.CSRFSecure),
		flusher:     views.NewFlusher(buffer, cfg.FlushInterval),
		validate:    validator.New(),
		logger:      logging.Component("server"),
	}

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		relay, err := realtime.NewRedisRelay(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logging.Component("realtime"))
		cancel()
		if err != nil {
			return nil, err
		}
		srv.relay = relay
		broadcaster.UseRelay(relay)

		runCtx, stop := context.WithCancel(context.Background())
		srv.stopRelay = stop
		go func() {
			if err := relay.Run(runCtx, broadcaster.Deliver); err != nil {
				srv.logger.Error().Err(err).Msg("relay stopped")
			}
		}()
	}

	srv.flusher.Start()
	return srv, nil
}

// Drain 断开全部实时连接，供 http.Server 关闭时调用。
func (s *Server) Drain() {
	if n := s.registry.CloseAll(); n > 0 {
		s.logger.Info().Int("streams", n).Msg("closed live streams")
	}
}

// Close 关闭后台组件，并把剩余浏览量写入数据库。
func (s *Server) Close() {
	s.flusher.Close()
	if s.stopRelay != nil {
		s.stopRelay()
	}
	if s.relay != nil {
		_ = s.relay.Close()
	}
}

// Handler 返回根 HTTP 处理器。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if s.cfg.SentryDSN != "" {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(middleware.Heartbeat("/healthz"))

	r.Get("/cron/flush-views", s.cronFlushViews)
	r.Post("/cron/flush-views", s.cronFlushViews)

	csrfMiddleware := csrf.Protect(
		[]byte(s.cfg.CSRFKey),
		csrf.Secure(s.cfg.CSRFSecure),
		csrf.Path("/"),
		csrf.RequestHeader("X-CSRF-Token"),
	)

	r.Route("/api", func(api chi.Router) {
		api.Use(csrfMiddleware)

		api.Get("/session", s.apiSession)
		api.Post("/register", s.apiRegister)
		api.Post("/login", s.apiLogin)
		api.Post("/logout", s.apiLogout)

		api.Get("/recipes", s.apiListRecipes)
		api.Get("/recipes/{recipeID}", s.apiGetRecipe)

		api.Group(func(authed chi.Router) {
			authed.Use(s.auth.Middleware)

			authed.Post("/recipes", s.apiCreateRecipe)
			authed.Get("/views/stats", s.apiViewStats)

			authed.Get("/plans", s.apiListPlans)
			authed.Post("/plans", s.apiCreatePlan)
			authed.Get("/plans/{planID}", s.apiGetPlan)
			authed.Post("/plans/{planID}/meals", s.apiAddMeal)
			authed.Post("/plans/{planID}/contributors", s.apiAddContributor)

			authed.Get("/plans/{planID}/shopping", s.apiListShopping)
			authed.Post("/plans/{planID}/shopping/items", s.apiAddShoppingItem)
			authed.Delete("/plans/{planID}/shopping/items/{itemID}", s.apiRemoveShoppingItem)
			authed.Post("/plans/{planID}/shopping/items/{itemID}/check", s.apiCheckShoppingItem)
			authed.Post("/plans/{planID}/shopping/reset", s.apiResetShopping)
			authed.Post("/plans/{planID}/shopping/generate", s.apiGenerateShopping)
			authed.Get("/plans/{planID}/shopping/events", s.streamShoppingList)
			authed.Get("/plans/{planID}/shopping/ws", s.websocketShoppingList)
		})
	})

	return r
}

func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"csrfToken": csrf.Token(r)}
	if id, err := s.auth.Current(r); err == nil {
		user, err := s.store.GetUser(r.Context(), id.ID)
		switch {
		case err == nil:
			resp["user"] = user
		case !store.IsNotFound(err):
			storeError(w, err)
			return
		}
	}
	writeJSON(w, resp)
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,alphanum,min=3,max=32"`
	DisplayName string `json:"displayName" validate:"max=64"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

// apiRegister 创建普通账号并直接登录。
func (s *Server) apiRegister(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !s.decode(w, r, &body) {
		return
	}
	if _, err := s.store.CreateUser(r.Context(), body.Username, body.DisplayName, body.Password); err != nil {
		storeError(w, err)
		return
	}
	user, err := s.auth.Authenticate(w, r, body.Username, body.Password)
	if err != nil {
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, user)
}

func (s *Server) apiLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	user, err := s.auth.Authenticate(w, r, body.Username, body.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeMessage(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		writeErr(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, user)
}

func (s *Server) apiLogout(w http.ResponseWriter, r *http.Request) {
	_ = s.auth.Logout(w, r)
	writeJSON(w, map[string]string{"status": "ok"})
}

// decode 解析并校验 JSON 请求体，失败时已写出 400 响应。
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeErr(w, err, http.StatusBadRequest)
		return false
	}
	return true
}

// storeError 把存储层错误映射为 HTTP 状态码。
func storeError(w http.ResponseWriter, err error) {
	switch {
	case store.IsNotFound(err):
		writeMessage(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrForbidden):
		writeMessage(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, store.ErrUsernameTaken):
		writeMessage(w, "username taken", http.StatusConflict)
	default:
		sentry.CaptureException(err)
		writeErr(w, err, http.StatusInternalServerError)
	}
}

func requestLogger(next http.Handler) http.Handler {
	logger := logging.Component("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseIDParam(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func intParam(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	writeJSONStatus(w, http.StatusOK, payload)
}

func writeJSONStatus(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErr(w http.ResponseWriter, err error, status int) {
	writeMessage(w, err.Error(), status)
}

func writeMessage(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
