// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/teleop_rover/internal/metrics"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
)

//go:embed static/index.html
var indexHTML []byte

const (
	multipartBoundary = "frame"
	wsWriteTimeout    = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // page and stream are served from the rover itself
	},
}

// NewWebHandler returns the rover HTTP routes backed by state.
func NewWebHandler(state *telemetry.State) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(indexHTML); err != nil {
			log.Debugf("web: index write error: %v", err)
		}
	})

	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, state.Pose())
	})

	mux.HandleFunc("/video_feed", func(w http.ResponseWriter, r *http.Request) {
		serveVideoFeed(w, r, state)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		servePoseSocket(w, r, state)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, newStatusResponse(state))
	})

	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("web: json encode error: %v", err)
	}
}

// serveVideoFeed writes one multipart part per frame broadcast until the
// client goes away. Frames published while a part is being written are
// skipped; the next part always carries the newest frame.
func serveVideoFeed(w http.ResponseWriter, r *http.Request, state *telemetry.State) {
	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+multipartBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	metrics.VideoClients.Inc()
	defer metrics.VideoClients.Dec()
	log.Debugf("web: video client %s connected", r.RemoteAddr)

	seq := state.FrameSeq()
	for {
		frame, next, err := state.WaitFrame(r.Context(), seq)
		if err != nil {
			log.Debugf("web: video client %s gone", r.RemoteAddr)
			return
		}
		seq = next

		if err := writePart(w, frame); err != nil {
			log.Debugf("web: video client %s write error: %v", r.RemoteAddr, err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\n\r\n", multipartBoundary); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// servePoseSocket pushes the pose as JSON on connect and on every change.
func servePoseSocket(w http.ResponseWriter, r *http.Request, state *telemetry.State) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: only needed to notice the close frame.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debugf("web: websocket read error: %v", err)
				}
				return
			}
		}
	}()

	pose, seq := state.LatestPose()
	for {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(pose); err != nil {
			log.Debugf("web: websocket write error: %v", err)
			return
		}
		pose, seq, err = state.WaitPose(ctx, seq)
		if err != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// statusResponse is the /status body.
type statusResponse struct {
	telemetry.Status
	Started       string `json:"started"`
	Uptime        string `json:"uptime"`
	LastFrameSize string `json:"last_frame_size"`
}

func newStatusResponse(state *telemetry.State) statusResponse {
	st := state.Snapshot()
	return statusResponse{
		Status:        st,
		Started:       humanize.Time(state.Started()),
		Uptime:        state.Uptime().Truncate(time.Second).String(),
		LastFrameSize: humanize.Bytes(uint64(st.LastFrameBytes)),
	}
}

// serveWeb serves NewWebHandler on ln until ctx is cancelled.
func serveWeb(ctx context.Context, ln net.Listener, state *telemetry.State) error {
	srv := &http.Server{
		Handler:           NewWebHandler(state),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	})
	defer stop()

	log.Printf("web server listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}
