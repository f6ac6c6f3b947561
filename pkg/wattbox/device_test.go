package wattbox

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/icholy/digest"
	"github.com/stretchr/testify/require"
)

// fakeDevice emulates the web interface of a WB-800 unit.
type fakeDevice struct {
	mu       sync.Mutex
	auth      AuthMode
	challenge string // overrides the Basic challenge
	username string
	password string
	token    string
	outlets  []fakeOutlet
	noTotals bool
	json     bool
	noReset  bool
	raw      string
	delay    time.Duration
	hold     chan struct{}
	entered  chan struct{}

	logins     int
	challenges int
	statusHits int
	commands   []string
}

type fakeOutlet struct {
	Name      string
	On        bool
	ResetOnly bool
	Watts     string
	Amps      string
	Energy    float64
}

func newFakeDevice(auth AuthMode) *fakeDevice {
	return &fakeDevice{
		auth:     auth,
		username: "admin",
		password: "secret",
		token:    "tok-1",
		outlets: []fakeOutlet{
			{Name: "Router", On: true, Watts: "12.5 W", Amps: "0.10 A", Energy: 1.5},
			{Name: "Switch", On: false, Watts: "0 W", Amps: "0 A", Energy: 0.25},
			{Name: "Modem", On: true, ResetOnly: true, Watts: "5.25 W", Amps: "0.05 A", Energy: 3},
		},
	}
}

func newTestClient(t *testing.T, d *fakeDevice, mutate func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(d.router())
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Host = srv.URL
	cfg.Username = "admin"
	cfg.Password = "secret"
	cfg.Timeout = 2 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c, srv
}

func (d *fakeDevice) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/login", d.loginPage)
	r.Post("/login", d.login)
	r.Group(func(r chi.Router) {
		r.Use(d.authenticate)
		r.Get("/main", d.status)
		r.Get("/api/status", d.jsonStatus)
		r.Get("/outlet/{action}", d.command)
	})
	return r
}

func (d *fakeDevice) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		auth, override, user, pass, token := d.auth, d.challenge, d.username, d.password, d.token
		d.mu.Unlock()

		switch auth {
		case AuthBasic:
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				d.set(func(d *fakeDevice) { d.challenges++ })
				challenge := `Basic realm="WattBox"`
				if override != "" {
					challenge = override
				}
				w.Header().Set("WWW-Authenticate", challenge)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		case AuthDigest:
			if !validDigest(r, user, pass) {
				d.set(func(d *fakeDevice) { d.challenges++ })
				w.Header().Set("WWW-Authenticate", digestChallenge)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		case AuthForm:
			ck, err := r.Cookie("session")
			if err != nil || ck.Value != token {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

const digestChallenge = `Digest realm="WattBox", nonce="4f2a9c", qop="auth", algorithm=MD5`

// validDigest recomputes the response the client should have sent for the
// credentials in the Authorization header.
func validDigest(r *http.Request, user, pass string) bool {
	cred, err := digest.ParseCredentials(r.Header.Get("Authorization"))
	if err != nil || cred.Username != user {
		return false
	}
	chal, err := digest.ParseChallenge(digestChallenge)
	if err != nil {
		return false
	}
	want, err := digest.Digest(chal, digest.Options{
		Method:   r.Method,
		URI:      cred.URI,
		Count:    cred.Nc,
		Cnonce:   cred.Cnonce,
		Username: user,
		Password: pass,
	})
	return err == nil && want.Response == cred.Response
}

func (d *fakeDevice) loginPage(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "pre", Value: "1"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, `<html><body><form action="/login" method="post">
<input type="hidden" name="csrf" value="xyz">
<input type="text" name="username">
<input type="password" name="password">
<input type="submit" value="Login">
</form></body></html>`)
}

func (d *fakeDevice) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := r.Cookie("pre"); err != nil || r.PostForm.Get("csrf") != "xyz" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	d.mu.Lock()
	d.logins++
	ok := r.PostForm.Get("username") == d.username && r.PostForm.Get("password") == d.password
	token := d.token
	d.mu.Unlock()
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session", Value: token})
	http.Redirect(w, r, "/main", http.StatusFound)
}

func (d *fakeDevice) status(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.statusHits++
	hold, entered, delay, raw := d.hold, d.entered, d.delay, d.raw
	page := d.render()
	d.mu.Unlock()

	if hold != nil {
		entered <- struct{}{}
		<-hold
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if raw != "" {
		page = raw
	}
	io.WriteString(w, page)
}

func (d *fakeDevice) jsonStatus(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.json {
		http.NotFound(w, r)
		return
	}
	d.statusHits++
	var outlets []map[string]any
	for i, o := range d.outlets {
		state := "off"
		if o.On {
			state = "on"
		}
		outlets = append(outlets, map[string]any{
			"number":    i + 1,
			"name":      o.Name,
			"state":     state,
			"resetOnly": o.ResetOnly,
			"watts":     o.Watts,
			"amps":      o.Amps,
			"energy":    o.Energy,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"voltage":  120.4,
		"model":    "WB-800-IPVM-12",
		"serial":   "ST0042",
		"firmware": "2.4.1",
		"outlets":  outlets,
	})
}

func (d *fakeDevice) command(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	n, err := strconv.Atoi(r.URL.Query().Get("o"))

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil || n < 1 || n > len(d.outlets) {
		http.Error(w, "bad outlet", http.StatusBadRequest)
		return
	}
	switch {
	case action == "on":
		d.outlets[n-1].On = true
	case action == "off":
		d.outlets[n-1].On = false
	case action == "reset" && !d.noReset:
	default:
		http.NotFound(w, r)
		return
	}
	d.commands = append(d.commands, fmt.Sprintf("%s %d", action, n))
	http.Redirect(w, r, "/main", http.StatusFound)
}

// render builds the status page. Caller holds d.mu.
func (d *fakeDevice) render() string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="grid-grey">`)
	for i, o := range d.outlets {
		attrs := ""
		if o.On {
			attrs += " checked"
		}
		if o.ResetOnly {
			attrs += " disabled"
		}
		fmt.Fprintf(&b, `<div class="grid-block">`+
			`<div class="grid-index-label"><span>%d</span></div>`+
			`<ul class="grid-list"><li class="grid-head">%s</li></ul>`+
			`<input type="checkbox" id="outlet%d"%s>`+
			`<div style="margin-top: 6px"><p>%s</p><p>%s</p></div>`+
			`</div>`, i+1, o.Name, i+1, attrs, o.Watts, o.Amps)
	}
	b.WriteString(`</div><div class="grid-block" style="background: #222"><div class="grid-text"><ul class="primary-text"><li>`)
	if !d.noTotals {
		b.WriteString(`<table><tr><td>POWER<br>CURRENT</td><td>17.75 W<br>0.15 A</td></tr></table>`)
	}
	b.WriteString(`</li></ul></div><span>120.4 V</span></div></body></html>`)
	return b.String()
}

func (d *fakeDevice) set(fn func(d *fakeDevice)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d)
}

func (d *fakeDevice) counters() (logins, challenges, statusHits int, commands []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logins, d.challenges, d.statusHits, append([]string(nil), d.commands...)
}

// holdStatus makes status requests block until the returned release func is
// called. entered receives once per blocked request.
func (d *fakeDevice) holdStatus() (entered <-chan struct{}, release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hold = make(chan struct{})
	d.entered = make(chan struct{}, 8)
	hold := d.hold
	return d.entered, func() { close(hold) }
}
