// Package server is the robot's HTTP surface: the driver camera, metrics,
// a status report and the driver station websocket.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/Jagwires7443/Defense/pkg/camera"
	"github.com/Jagwires7443/Defense/pkg/joystick"
	"github.com/Jagwires7443/Defense/pkg/testbot"
	"github.com/Jagwires7443/Defense/pkg/timedrobot"
)

type ModeController interface {
	Mode() timedrobot.Mode
	SetMode(m timedrobot.Mode)
}

type Robot interface {
	Camera() *camera.Camera
	Status() testbot.Status
}

type OutputGate interface {
	OutputsEnabled() bool
}

type Config struct {
	Modes    ModeController
	Robot    Robot
	Gamepad  *joystick.Gamepad
	Outputs  OutputGate
	Gatherer prometheus.Gatherer
	// Timeout is how long the driver station may stay silent before it is
	// treated as lost.  Zero means DefaultTimeout.
	Timeout time.Duration
}

const DefaultTimeout = 500 * time.Millisecond

type Server struct {
	cfg      Config
	started  time.Time
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	// Held for the life of the one controlling connection.
	dsLock sync.Mutex
}

// Report is the body of /status.json and of every driver station reply.
type Report struct {
	Mode    timedrobot.Mode `json:"mode"`
	Enabled bool            `json:"enabled"`
	Uptime  float64         `json:"uptime"`
	Gamepad GamepadReport   `json:"gamepad"`
	Robot   testbot.Status  `json:"robot"`
	Error   string          `json:"error,omitempty"`
}

type GamepadReport struct {
	Axes    []float64 `json:"axes"`
	Buttons []bool    `json:"buttons"`
}

// Command is a message from the driver station.  Every field is optional.
type Command struct {
	Mode    *timedrobot.Mode `json:"mode,omitempty"`
	Enabled *bool            `json:"enabled,omitempty"`
	Axes    []float64        `json:"axes,omitempty"`
	Buttons []bool           `json:"buttons,omitempty"`
}

func New(cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		started: time.Now(),
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.mux.HandleFunc("/", s.serveCamera)
	s.mux.HandleFunc("/stream.mjpg", s.serveCamera)
	s.mux.HandleFunc("/frame.jpg", s.serveCamera)
	s.mux.HandleFunc("/status.json", s.serveStatus)
	s.mux.HandleFunc("/ds", s.serveDriverStation)
	if cfg.Gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()
	log.WithField("addr", addr).Info("HTTP server listening")
	err := hs.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrap(err, "http server")
}

func (s *Server) serveCamera(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/stream.mjpg", "/frame.jpg":
	default:
		http.NotFound(w, r)
		return
	}
	var cam *camera.Camera
	if s.cfg.Robot != nil {
		cam = s.cfg.Robot.Camera()
	}
	if cam == nil {
		http.Error(w, "no camera", http.StatusServiceUnavailable)
		return
	}
	switch r.URL.Path {
	case "/stream.mjpg":
		cam.ServeStream(w, r)
	case "/frame.jpg":
		cam.ServeSnapshot(w, r)
	default:
		cam.ServeHTTP(w, r)
	}
}

func (s *Server) report() Report {
	rep := Report{
		Uptime: time.Since(s.started).Seconds(),
	}
	if s.cfg.Modes != nil {
		rep.Mode = s.cfg.Modes.Mode()
	}
	if s.cfg.Outputs != nil {
		rep.Enabled = s.cfg.Outputs.OutputsEnabled()
	}
	if s.cfg.Gamepad != nil {
		state := s.cfg.Gamepad.Snapshot()
		rep.Gamepad.Axes = state.Axes[:]
		rep.Gamepad.Buttons = state.Buttons[:]
	}
	if s.cfg.Robot != nil {
		rep.Robot = s.cfg.Robot.Status()
	}
	return rep
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(s.report()); err != nil {
		log.WithError(err).Debug("Failed to write status")
	}
}

func (s *Server) serveDriverStation(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache")
	if !s.dsLock.TryLock() {
		http.Error(w, "driver station already connected", http.StatusConflict)
		return
	}
	defer s.dsLock.Unlock()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Error upgrading websocket")
		return
	}
	defer ws.Close()

	log.WithField("remote", r.RemoteAddr).Info("Driver station connected")
	drove := false
	defer func() {
		// Losing the driver station disables the robot.
		log.WithField("remote", r.RemoteAddr).Info("Driver station disconnected")
		if s.cfg.Modes != nil {
			s.cfg.Modes.SetMode(timedrobot.Disabled)
		}
		if drove && s.cfg.Gamepad != nil {
			s.cfg.Gamepad.Reset()
		}
	}()

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	// A ping counts as a sign of life, as does any message.
	ws.SetPingHandler(func(data string) error {
		_ = ws.SetReadDeadline(time.Now().Add(timeout))
		err := ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_ = ws.SetReadDeadline(time.Now().Add(timeout))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.WithField("timeout", timeout).Warn("Driver station went silent")
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Error reading from driver station")
			}
			return
		}
		var cmd Command
		var rep Report
		if err := json.Unmarshal(msg, &cmd); err != nil {
			rep = s.report()
			rep.Error = errors.Wrap(err, "bad command").Error()
		} else {
			if s.apply(cmd) {
				drove = true
			}
			rep = s.report()
		}
		if err := ws.WriteJSON(rep); err != nil {
			log.WithError(err).Warn("Error writing to driver station")
			return
		}
	}
}

// apply carries out a driver station command, reporting whether it included
// gamepad state.
func (s *Server) apply(cmd Command) bool {
	if s.cfg.Modes != nil {
		switch {
		case cmd.Enabled != nil && !*cmd.Enabled:
			s.cfg.Modes.SetMode(timedrobot.Disabled)
		case cmd.Mode != nil:
			s.cfg.Modes.SetMode(*cmd.Mode)
		case cmd.Enabled != nil && s.cfg.Modes.Mode() == timedrobot.Disabled:
			s.cfg.Modes.SetMode(timedrobot.Teleop)
		}
	}
	if cmd.Axes == nil && cmd.Buttons == nil {
		return false
	}
	if s.cfg.Gamepad != nil {
		s.cfg.Gamepad.SetState(cmd.Axes, cmd.Buttons)
	}
	return true
}
