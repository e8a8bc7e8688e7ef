package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"tracker/internal/cache"
	"tracker/internal/form"
)

const sessionCookie = "tracker_session"

// sessionStore keeps one form per browser, keyed by a random cookie value.
// Idle forms expire after the TTL and are dropped when the store is full.
type sessionStore struct {
	forms   *cache.LRUCache[*form.Form]
	newForm func() *form.Form
	ttl     time.Duration
}

func newSessionStore(maxSessions int, ttl time.Duration, newForm func() *form.Form) *sessionStore {
	return &sessionStore{
		forms:   cache.NewLRUCache[*form.Form](maxSessions, ttl),
		newForm: newForm,
		ttl:     ttl,
	}
}

// get returns the session id and form for r, creating both when the cookie
// is missing or malformed. The cookie is refreshed on every call.
func (s *sessionStore) get(w http.ResponseWriter, r *http.Request) (string, *form.Form) {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if parsed, err := uuid.Parse(c.Value); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
	}

	f, _ := s.forms.GetOrCreate(id, s.newForm)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id, f
}

func (s *sessionStore) size() int {
	return s.forms.Size()
}
