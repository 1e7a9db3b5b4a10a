package fetcher

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
)

// Session is the cookie state shared between the page fetcher and the
// auxiliary vote tab. A vote cast in the tab only unblocks later fetches if
// its cookies land here.
type Session struct {
	jar    *cookiejar.Jar
	mu     sync.Mutex
	logger *slog.Logger
}

// NewSession creates an empty session.
func NewSession(logger *slog.Logger) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Session{
		jar:    jar,
		logger: logger.With("component", "session"),
	}, nil
}

// Jar returns the jar to plug into an http.Client.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Cookies returns the cookies the session would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// Import stores cookies captured elsewhere (e.g. by the browser tab) as if
// they had been set by a response from rawURL.
func (s *Session) Import(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("import cookies: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(u, cookies)
	s.logger.Debug("cookies imported", "host", u.Host, "count", len(cookies))
	return nil
}
