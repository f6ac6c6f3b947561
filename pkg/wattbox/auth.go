package wattbox

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/icholy/digest"
	"github.com/rs/zerolog/log"
)

// AuthMode is the authentication scheme detected for the device.
type AuthMode int

const (
	AuthUnknown AuthMode = iota
	AuthNone             // status page is served without credentials
	AuthBasic            // HTTP Basic challenge
	AuthForm             // HTML login form plus session cookie
	AuthDigest           // HTTP Digest challenge
)

func (m AuthMode) String() string {
	switch m {
	case AuthNone:
		return "unauthenticated"
	case AuthBasic:
		return "basic"
	case AuthForm:
		return "form"
	case AuthDigest:
		return "digest"
	default:
		return "unknown"
	}
}

// AuthState tracks the session lifecycle:
//
//	Unknown -> Detecting -> Ready(mode) -> Expired -> Detecting -> Failed
//
// Failed only lasts until the next call, which starts detection again.
type AuthState int

const (
	StateUnknown AuthState = iota
	StateDetecting
	StateReady
	StateExpired
	StateFailed
)

func (s AuthState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateDetecting:
		return "detecting"
	case StateReady:
		return "ready"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("AuthState(%d)", int(s))
	}
}

// authSession is the credential state attached to outgoing requests. It is
// replaced wholesale on re-detection and never shared across detections.
type authSession struct {
	mode    AuthMode
	cookies []*http.Cookie
	format  Format

	// client replaces the plain client for digest sessions, whose transport
	// answers challenges and keeps the nonce count.
	client *http.Client
}

func (s *authSession) decorate(req *http.Request, username, password string) {
	switch s.mode {
	case AuthBasic:
		req.SetBasicAuth(username, password)
	case AuthForm:
		for _, ck := range s.cookies {
			req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}
}

// mergeCookies folds Set-Cookie headers into the session, replacing cookies
// by name and dropping the ones the device expires.
func (s *authSession) mergeCookies(h http.Header) {
	for _, ck := range (&http.Response{Header: h}).Cookies() {
		kept := s.cookies[:0]
		for _, old := range s.cookies {
			if old.Name != ck.Name {
				kept = append(kept, old)
			}
		}
		s.cookies = kept
		if ck.MaxAge < 0 || ck.Value == "" {
			continue
		}
		s.cookies = append(s.cookies, ck)
	}
}

// AuthMode returns the cached authentication mode and the session state.
func (c *Client) AuthMode() (AuthMode, AuthState) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.session == nil {
		return AuthUnknown, c.state
	}
	return c.session.mode, c.state
}

// StatusFormat returns the status representation in use, once detected.
func (c *Client) StatusFormat() (Format, bool) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.session == nil {
		return FormatHTML, false
	}
	return c.session.format, true
}

// DetectAuthMode queries the device and caches the result. A cached result
// is returned without network I/O.
func (c *Client) DetectAuthMode(ctx context.Context) (AuthMode, error) {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return AuthUnknown, err
	}
	return sess.mode, nil
}

func (c *Client) ensureSession(ctx context.Context) (*authSession, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.state == StateReady && c.session != nil {
		return c.session, nil
	}

	c.state = StateDetecting
	sess, err := c.detect(ctx)
	if err != nil {
		c.state = StateFailed
		c.session = nil
		return nil, err
	}
	c.state = StateReady
	c.session = sess
	log.Info().
		Str("host", c.host).
		Str("mode", sess.mode.String()).
		Str("format", sess.format.String()).
		Msg("authentication detected")
	return sess, nil
}

// expire drops stale if it is still the active session. A session that was
// already replaced by a concurrent caller is left alone.
func (c *Client) expire(stale *authSession) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.session == stale {
		c.session = nil
		c.state = StateExpired
	}
}

func (c *Client) fail() {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	c.session = nil
	c.state = StateFailed
}

// authedDo runs a request with the current session. When the device answers
// with an authentication failure the session is expired, detection runs once
// more and the request is retried once.
func (c *Client) authedDo(ctx context.Context, op string, build func(*authSession) request) (*response, error) {
	for attempt := 0; ; attempt++ {
		sess, err := c.ensureSession(ctx)
		if err != nil {
			return nil, err
		}
		res, err := c.do(ctx, sess, build(sess))
		if err != nil {
			return nil, connectError(op, err)
		}
		if !isAuthFailure(res) {
			return res, nil
		}
		if attempt > 0 {
			c.fail()
			return nil, &DeviceError{
				Kind:       KindAuth,
				Op:         op,
				StatusCode: res.StatusCode,
				Msg:        "session rejected after re-authentication",
			}
		}
		log.Info().Str("host", c.host).Str("op", op).Msg("session expired, detecting authentication again")
		c.expire(sess)
	}
}

// detect implements the detection described on AuthState.
func (c *Client) detect(ctx context.Context) (*authSession, error) {
	const op = "detect auth"
	first := request{Method: http.MethodGet, Path: c.cfg.StatusPath}

	res, err := c.do(ctx, nil, first)
	if err != nil {
		return nil, connectError(op, err)
	}

	var sess *authSession
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		challenge := strings.TrimSpace(res.Header.Get("WWW-Authenticate"))
		scheme := strings.ToLower(challenge)
		switch {
		case strings.HasPrefix(scheme, "basic"):
			sess = &authSession{mode: AuthBasic}
		case strings.HasPrefix(scheme, "digest"):
			sess = c.digestSession()
		default:
			return nil, newError(KindUnsupported, op, nil, "authentication challenge %q", challenge)
		}
		if c.cfg.Username == "" {
			return nil, newError(KindAuth, op, nil, "device requires credentials")
		}
		if err := c.verifySession(ctx, op, sess); err != nil {
			return nil, err
		}
	case res.StatusCode == http.StatusForbidden:
		return nil, &DeviceError{Kind: KindAuth, Op: op, StatusCode: res.StatusCode, Msg: "access denied"}
	case res.isRedirect() && isLoginLocation(res.location()):
		sess, err = c.formLogin(ctx, res.location(), nil)
		if err != nil {
			return nil, err
		}
	case res.StatusCode == http.StatusOK && hasLoginForm(res):
		sess, err = c.formLogin(ctx, "", res)
		if err != nil {
			return nil, err
		}
	case res.StatusCode == http.StatusOK:
		sess = &authSession{mode: AuthNone}
	default:
		return nil, unexpectedStatus(op, res)
	}

	sess.format = c.detectFormat(ctx, sess)
	return sess, nil
}

// digestSession wraps the client transport in a digest transport bound to
// the configured credentials. Redirect and timeout settings carry over.
func (c *Client) digestSession() *authSession {
	hc := *c.http
	hc.Transport = &digest.Transport{
		Username:  c.cfg.Username,
		Password:  c.cfg.Password,
		Transport: c.http.Transport,
	}
	return &authSession{mode: AuthDigest, client: &hc}
}

// formLogin submits the login form once and captures the session cookie.
// page is the already fetched login page, or nil to fetch loginPath.
func (c *Client) formLogin(ctx context.Context, loginPath string, page *response) (*authSession, error) {
	const op = "form login"
	if c.cfg.Username == "" {
		return nil, newError(KindAuth, op, nil, "device requires credentials")
	}
	sess := &authSession{mode: AuthForm}

	if page == nil {
		var err error
		page, err = c.do(ctx, sess, request{Method: http.MethodGet, Path: loginPath})
		if err != nil {
			return nil, connectError(op, err)
		}
		if page.StatusCode != http.StatusOK {
			return nil, &DeviceError{Kind: KindAuth, Op: op, StatusCode: page.StatusCode, Msg: "login page unavailable"}
		}
	}
	sess.mergeCookies(page.Header)

	form, ok := findLoginForm(page.Body)
	if !ok {
		return nil, newError(KindAuth, op, nil, "no login form found")
	}
	action := form.Action
	if action == "" {
		action = page.URL.RequestURI()
	}
	values := form.values(c.cfg.Username, c.cfg.Password)
	submit := request{Method: form.Method, Path: action}
	if form.Method == http.MethodGet {
		submit.Query = values
	} else {
		submit.Form = values
	}

	log.Debug().Str("host", c.host).Str("action", action).Msg("submitting login form")
	res, err := c.do(ctx, sess, submit)
	if err != nil {
		return nil, connectError(op, err)
	}
	sess.mergeCookies(res.Header)
	if res.StatusCode >= http.StatusBadRequest {
		return nil, &DeviceError{Kind: KindAuth, Op: op, StatusCode: res.StatusCode, Msg: "login rejected"}
	}
	if err := c.verifySession(ctx, op, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// verifySession replays the status request with sess attached.
func (c *Client) verifySession(ctx context.Context, op string, sess *authSession) error {
	res, err := c.do(ctx, sess, request{Method: http.MethodGet, Path: c.cfg.StatusPath})
	if err != nil {
		return connectError(op, err)
	}
	if isAuthFailure(res) {
		return &DeviceError{Kind: KindAuth, Op: op, StatusCode: res.StatusCode, Msg: "credentials rejected"}
	}
	if res.StatusCode != http.StatusOK {
		return unexpectedStatus(op, res)
	}
	return nil
}

// detectFormat decides between the JSON endpoint and the HTML page.
func (c *Client) detectFormat(ctx context.Context, sess *authSession) Format {
	switch c.cfg.StatusFormat {
	case StatusFormatHTML:
		return FormatHTML
	case StatusFormatJSON:
		return FormatJSON
	}
	res, err := c.do(ctx, sess, request{Method: http.MethodGet, Path: c.cfg.JSONStatusPath})
	if err != nil {
		log.Debug().Err(err).Str("host", c.host).Msg("JSON status request failed, using HTML")
		return FormatHTML
	}
	if res.StatusCode == http.StatusOK && strings.Contains(res.contentType(), "json") {
		return FormatJSON
	}
	return FormatHTML
}

func isLoginLocation(location string) bool {
	if location == "" {
		return false
	}
	u, err := url.Parse(location)
	if err != nil {
		return strings.Contains(strings.ToLower(location), "login")
	}
	return strings.Contains(strings.ToLower(u.Path), "login")
}

// isAuthFailure reports whether the device refused the request for lack of a
// valid session rather than for the request itself.
func isAuthFailure(res *response) bool {
	switch {
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return true
	case res.isRedirect():
		return isLoginLocation(res.location())
	case res.StatusCode == http.StatusOK:
		return hasLoginForm(res)
	}
	return false
}

func hasLoginForm(res *response) bool {
	if !strings.Contains(res.contentType(), "html") {
		return false
	}
	_, ok := findLoginForm(res.Body)
	return ok
}
