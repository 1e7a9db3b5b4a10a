package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/fetcher"
)

// VoteControlSelector matches the buttons of the vote gate.
const VoteControlSelector = "button.vote-submit"

// Feedback selects which vote button the tab presses.
type Feedback struct {
	// Label is matched against the button text.
	Label string

	// Auto presses the button as soon as the page loads; vote requests
	// are then only acknowledged.
	Auto bool
}

// BrowserTabOpener opens background pages in a headless Chromium driven by
// Rod. The browser is launched on first use.
type BrowserTabOpener struct {
	cfg      *config.HandshakeConfig
	session  *fetcher.Session
	feedback Feedback
	selector string
	logger   *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserTabOpener creates an opener. Cookies are read from and written
// back to session.
func NewBrowserTabOpener(cfg *config.HandshakeConfig, session *fetcher.Session, feedback Feedback, logger *slog.Logger) *BrowserTabOpener {
	return &BrowserTabOpener{
		cfg:      cfg,
		session:  session,
		feedback: feedback,
		selector: VoteControlSelector,
		logger:   logger.With("component", "browser_tab"),
	}
}

// connect launches and connects the browser once.
func (o *BrowserTabOpener) connect() (*rod.Browser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.browser != nil {
		return o.browser, nil
	}

	l := launcher.New().
		Headless(o.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	if o.cfg.BrowserBin != "" {
		l = l.Bin(o.cfg.BrowserBin)
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	o.browser = browser
	o.logger.Info("browser ready", "headless", o.cfg.Headless, "stealth", o.cfg.Stealth)
	return browser, nil
}

// Open creates a page for url, seeded with the session cookies.
func (o *BrowserTabOpener) Open(ctx context.Context, url string) (Tab, error) {
	browser, err := o.connect()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if o.cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if o.session != nil {
		if params := cookieParams(url, o.session.Cookies(url)); len(params) > 0 {
			if err := page.SetCookies(params); err != nil {
				o.logger.Warn("failed to seed cookies", "error", err)
			}
		}
	}

	if err := page.Context(ctx).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		o.logger.Warn("page load wait failed, continuing", "url", url, "error", err)
	}

	tab := &browserTab{
		page:     page,
		url:      url,
		feedback: o.feedback,
		selector: o.selector,
		session:  o.session,
		logger:   o.logger,
	}

	if o.feedback.Auto {
		if err := sleep(ctx, time.Second); err == nil {
			if n := tab.press(ctx); n > 0 {
				o.logger.Info("auto-feedback", "url", url, "label", o.feedback.Label)
			}
		}
	}

	return tab, nil
}

// Close shuts the browser down.
func (o *BrowserTabOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.browser == nil {
		return nil
	}
	err := o.browser.Close()
	o.browser = nil
	return err
}

// browserTab answers vote and close requests the way the page-side
// listener does.
type browserTab struct {
	page     *rod.Page
	url      string
	feedback Feedback
	selector string
	session  *fetcher.Session
	logger   *slog.Logger
}

func (t *browserTab) ID() string { return string(t.page.TargetID) }

func (t *browserTab) Send(ctx context.Context, msg Message) (Message, error) {
	switch msg.Op {
	case OpVote:
		if !t.feedback.Auto && t.hasControl(ctx) {
			t.press(ctx)
		}
		return msg.Reply(OpAck), nil

	case OpClose:
		if t.hasControl(ctx) {
			return msg.Reply(OpDeny), nil
		}
		t.exportCookies()
		return msg.Reply(OpAck), nil

	default:
		return Message{}, fmt.Errorf("unknown op %q", msg.Op)
	}
}

func (t *browserTab) Close() error {
	return t.page.Close()
}

func (t *browserTab) hasControl(ctx context.Context) bool {
	has, _, err := t.page.Context(ctx).Has(t.selector)
	if err != nil {
		t.logger.Debug("vote control lookup failed", "error", err)
		return true
	}
	return has
}

// press clicks every vote button whose text contains the feedback label
// and returns how many were pressed.
func (t *browserTab) press(ctx context.Context) int {
	buttons, err := t.page.Context(ctx).Elements(t.selector)
	if err != nil {
		return 0
	}
	pressed := 0
	for _, b := range buttons {
		text, err := b.Text()
		if err != nil || !strings.Contains(text, t.feedback.Label) {
			continue
		}
		if err := b.Click(proto.InputMouseButtonLeft, 1); err != nil {
			t.logger.Warn("vote click failed", "error", err)
			continue
		}
		pressed++
	}
	return pressed
}

// exportCookies copies the page cookies into the shared session.
func (t *browserTab) exportCookies() {
	if t.session == nil {
		return
	}
	cookies, err := t.page.Cookies([]string{t.url})
	if err != nil {
		t.logger.Warn("failed to read page cookies", "error", err)
		return
	}
	if err := t.session.Import(t.url, httpCookies(cookies)); err != nil {
		t.logger.Warn("failed to import cookies", "error", err)
	}
}

func httpCookies(in []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

func cookieParams(url string, in []*http.Cookie) []*proto.NetworkCookieParam {
	out := make([]*proto.NetworkCookieParam, 0, len(in))
	for _, c := range in {
		out = append(out, &proto.NetworkCookieParam{
			Name:  c.Name,
			Value: c.Value,
			URL:   url,
		})
	}
	return out
}
