// Package httpapi serves the operational HTTP surface and the WebSocket
// carrier for the reliable channel.
package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"skirmish/internal/server"
	"skirmish/internal/session"
	"skirmish/internal/telemetry"
	"skirmish/internal/world"
	"skirmish/logging"
)

type HandlerConfig struct {
	Logger telemetry.Logger
	// Origin, when set, is echoed in CORS headers.
	Origin     string
	TickPeriod time.Duration
	// Events reports router statistics; nil omits them.
	Events func() logging.RouterStats
	Clock  logging.Clock
	// EnablePprof mounts the runtime profiler under /debug/pprof/.
	EnablePprof bool
}

type diagnostics struct {
	Status     string               `json:"status"`
	ServerTime int64                `json:"serverTime"`
	TickMillis int64                `json:"tickMillis"`
	World      world.Diagnostics    `json:"world"`
	Server     server.Stats         `json:"server"`
	Events     *logging.RouterStats `json:"events,omitempty"`
}

func NewHandler(w *world.World, srv *server.Server, cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	router := mux.NewRouter()

	router.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain")
		rw.Write([]byte("ok"))
	}).Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/diagnostics", func(rw http.ResponseWriter, r *http.Request) {
		payload := diagnostics{
			Status:     "ok",
			ServerTime: clock.Now().UnixMilli(),
			TickMillis: cfg.TickPeriod.Milliseconds(),
			World:      w.Diagnostics(),
			Server:     srv.Stats(),
		}
		if cfg.Events != nil {
			stats := cfg.Events()
			payload.Events = &stats
		}
		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(rw, "failed to encode", http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Write(data)
	}).Methods(http.MethodGet)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	router.HandleFunc("/ws", func(rw http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
			return
		}
		conn := session.NewWebSocketConn(ws, srv.MaxFrame(), srv.WriteTimeout())
		if err := srv.Attach(r.Context(), conn); err != nil {
			logger.Printf("websocket session %s ended: %v", r.RemoteAddr, err)
		}
	})

	if cfg.EnablePprof {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	if cfg.Origin == "" {
		return router
	}
	return withCORS(router, cfg.Origin)
}

func withCORS(h http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", origin)
		rw.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		rw.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(rw, r)
	})
}
