package views

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

const cookieName = "yumiso_views"

// CookieCodec 使用签名 cookie 读写访客的浏览记录。
type CookieCodec struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewCookieCodec 以 hashKey 签名 cookie 内容。
func NewCookieCodec(hashKey []byte, secure bool) *CookieCodec {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(EntryTTL.Seconds()))
	return &CookieCodec{codec: codec, secure: secure}
}

// Read 读取访客记录；缺失或签名无效时返回空记录。
func (c *CookieCodec) Read(r *http.Request) Throttle {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return Throttle{}
	}
	var t Throttle
	if err := c.codec.Decode(cookieName, cookie.Value, &t); err != nil || t == nil {
		return Throttle{}
	}
	return t
}

// Write 写回访客记录。
func (c *CookieCodec) Write(w http.ResponseWriter, t Throttle) error {
	encoded, err := c.codec.Encode(cookieName, t)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(EntryTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
