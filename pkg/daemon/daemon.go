package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/OpenCHAMI/wattbox/pkg/adapter"
	"github.com/OpenCHAMI/wattbox/pkg/poller"
	"github.com/OpenCHAMI/wattbox/pkg/wattbox"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/rs/zerolog/log"
)

// Device is what the server needs from the device client.
type Device interface {
	adapter.Device
	Host() string
}

// Server exposes the outlet switches and sensors of one device over HTTP.
type Server struct {
	Device Device
	Poller *poller.Poller // optional, backs GET /status

	// TokenKey enables bearer token checks when set. Tokens must be HS256
	// signed with this key.
	TokenKey []byte

	// CommandTimeout bounds outlet commands. A simulated reset includes the
	// reset delay.
	CommandTimeout time.Duration
}

type statusResponse struct {
	poller.Status
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Outlets   int        `json:"outlets"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Timeout(60*time.Second),
	)

	router.Group(func(r chi.Router) {
		if len(s.TokenKey) > 0 {
			r.Use(s.verifyToken)
		}
		r.Get("/switches", s.listSwitches)
		r.Get("/switches/{outlet}", s.getSwitch)
		r.Post("/switches/{outlet}/{action}", s.commandSwitch)
		r.Get("/sensors", s.listSensors)
		r.Get("/status", s.status)
	})
	return router
}

// RunServer serves on endpoint until ctx is cancelled.
func (s *Server) RunServer(ctx context.Context, endpoint string) error {
	srv := &http.Server{
		Addr:              endpoint,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to shut down server cleanly")
		}
	}()

	log.Info().Str("endpoint", endpoint).Str("host", s.Device.Host()).Msg("serving device")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) listSwitches(w http.ResponseWriter, r *http.Request) {
	switches, err := adapter.NewSwitches(s.Device, s.Device.Host())
	if err != nil {
		writeError(w, err)
		return
	}
	states := make([]adapter.SwitchState, 0, len(switches))
	for _, sw := range switches {
		states = append(states, sw.State())
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) getSwitch(w http.ResponseWriter, r *http.Request) {
	sw, err := s.findSwitch(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sw.State())
}

func (s *Server) commandSwitch(w http.ResponseWriter, r *http.Request) {
	sw, err := s.findSwitch(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if s.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.CommandTimeout)
		defer cancel()
	}

	action := chi.URLParam(r, "action")
	switch action {
	case "on":
		err = sw.TurnOn(ctx)
	case "off":
		err = sw.TurnOff(ctx)
	case "reset":
		err = sw.Reset(ctx)
	default:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown action " + strconv.Quote(action)})
		return
	}
	if err != nil {
		log.Error().Err(err).Int("outlet", sw.Number()).Str("action", action).Msg("outlet command failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sw.State())
}

func (s *Server) listSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := adapter.NewSensors(s.Device, s.Device.Host())
	if err != nil {
		writeError(w, err)
		return
	}
	states := make([]adapter.SensorState, 0, len(sensors))
	for _, sensor := range sensors {
		states = append(states, sensor.State())
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	if s.Poller != nil {
		resp.Status = s.Poller.Status()
	} else {
		resp.Host = s.Device.Host()
	}
	if tel, err := s.Device.Telemetry(); err == nil {
		resp.FetchedAt = &tel.FetchedAt
		resp.Outlets = len(tel.Outlets)
	}
	writeJSON(w, http.StatusOK, resp)
}

// findSwitch resolves the {outlet} URL parameter against the current snapshot.
func (s *Server) findSwitch(r *http.Request) (*adapter.Switch, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "outlet"))
	if err != nil {
		return nil, &wattbox.DeviceError{Kind: wattbox.KindInvalidOutlet, Op: "lookup", Msg: "outlet must be a number"}
	}
	switches, err := adapter.NewSwitches(s.Device, s.Device.Host())
	if err != nil {
		return nil, err
	}
	for _, sw := range switches {
		if sw.Number() == n {
			return sw, nil
		}
	}
	return nil, &wattbox.DeviceError{Kind: wattbox.KindInvalidOutlet, Op: "lookup", Outlet: n}
}

func (s *Server) verifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		if _, err := jwt.ParseString(raw, jwt.WithVerify(jwa.HS256, s.TokenKey), jwt.WithValidate(true)); err != nil {
			log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("rejected bearer token")
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps a device error onto the HTTP status returned to callers.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wattbox.ErrInvalidOutlet):
		return http.StatusNotFound
	case errors.Is(err, wattbox.ErrUnsupported):
		return http.StatusConflict
	case errors.Is(err, wattbox.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, wattbox.ErrAuth),
		errors.Is(err, wattbox.ErrCommand),
		errors.Is(err, wattbox.ErrConnect),
		errors.Is(err, wattbox.ErrParse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// requestLogger logs every request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
