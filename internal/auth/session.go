package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/HaiBangi/yumiso-sub003/internal/models"
)

const sessionName = "yumiso_auth"

// ErrUnauthorised 表示请求未携带有效会话。
var ErrUnauthorised = errors.New("unauthorised")

// Authenticator 是登录校验所需的存储能力。
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// Identity 是会话中保存的当前用户。
type Identity struct {
	ID   int64
	Name string
}

// Manager 负责处理登录会话。
type Manager struct {
	store  Authenticator
	cookie sessions.Store
}

// NewManager 使用提供的会话密钥创建 Manager。
func NewManager(store Authenticator, sessionKey []byte, secure bool) *Manager {
	cookieStore := sessions.NewCookieStore(sessionKey)
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   60 * 60 * 24 * 7, // 7 天
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{
		store:  store,
		cookie: cookieStore,
	}
}

// Authenticate 校验凭证并写入会话信息。
func (m *Manager) Authenticate(w http.ResponseWriter, r *http.Request, username, password string) (*models.User, error) {
	user, err := m.store.Authenticate(r.Context(), username, password)
	if err != nil {
		return nil, err
	}
	session, _ := m.cookie.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["user_name"] = user.Name()
	if err := session.Save(r, w); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout 清理当前会话。
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.cookie.Get(r, sessionName)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Current 读取当前登录用户。
func (m *Manager) Current(r *http.Request) (Identity, error) {
	session, err := m.cookie.Get(r, sessionName)
	if err != nil {
		return Identity{}, err
	}
	userID := toInt64(session.Values["user_id"])
	if userID == 0 {
		return Identity{}, ErrUnauthorised
	}
	name, _ := session.Values["user_name"].(string)
	return Identity{ID: userID, Name: name}, nil
}

// Middleware 确保请求具备已登录用户，并把用户写入上下文。
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Current(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "login required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), id)))
	})
}

// ContextWithUser 将用户写入上下文。
func ContextWithUser(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey("user"), id)
}

// UserFromContext 从上下文读取用户。
func UserFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey("user")).(Identity)
	return id, ok
}

type contextKey string

func toInt64(v interface{}) int64 {
	switch value := v.(type) {
	case int:
		return int64(value)
	case int64:
		return value
	case uint:
		return int64(value)
	case uint64:
		return int64(value)
	case float64:
		return int64(value)
	default:
		return 0
	}
}
