package server

import (
	"net/http"
	"time"
)

const (
	// CookieName is the name of the session cookie
	CookieName = "maiya_session"
	// OAuthCookieName binds an OAuth state to the browser that started it
	OAuthCookieName = "maiya_oauth"
	oauthCookieAge  = 10 * time.Minute
)

// SetSessionCookie sets an HTTP-only session cookie that lives as long as the session
func (s *Server) SetSessionCookie(w http.ResponseWriter, sessionID string) {
	s.setCookie(w, CookieName, sessionID, s.cfg.SessionTTL)
}

// ClearSessionCookie removes the session cookie
func (s *Server) ClearSessionCookie(w http.ResponseWriter) {
	s.setCookie(w, CookieName, "", -1)
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	age := int(maxAge.Seconds())
	if maxAge < 0 {
		age = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   age,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.cfg.CookieSecure,
	})
}

// GetSessionCookie reads the session ID from the cookie
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
