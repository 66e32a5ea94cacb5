package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/teleop_rover/internal/orientation"
	"github.com/relabs-tech/teleop_rover/internal/telemetry"
)

func newTestServer(t *testing.T) (*httptest.Server, *telemetry.State) {
	t.Helper()
	state := telemetry.New()
	srv := httptest.NewServer(NewWebHandler(state))
	t.Cleanup(srv.Close)
	return srv, state
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestIndexPage(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "/video_feed") || !strings.Contains(body, "/data") {
		t.Error("index page does not reference the video and data endpoints")
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/nope", "/data/extra", "/index.html"} {
		resp, body := get(t, srv.URL+path)
		if resp.StatusCode != http.StatusNotFound || strings.TrimSpace(body) != "Not Found" {
			t.Errorf("GET %s = %d %q, want 404 Not Found", path, resp.StatusCode, body)
		}
	}
}

func TestDataReturnsLatestPose(t *testing.T) {
	srv, state := newTestServer(t)

	_, body := get(t, srv.URL+"/data")
	var p orientation.Pose
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if p != (orientation.Pose{}) {
		t.Errorf("pose before first estimate = %+v, want zero", p)
	}

	state.PublishPose(orientation.Pose{Roll: 12.5, Pitch: -7.25})
	_, body = get(t, srv.URL+"/data")

	var raw map[string]float64
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if raw["roll"] != 12.5 || raw["pitch"] != -7.25 || len(raw) != 2 {
		t.Errorf("/data = %v, want roll 12.5 pitch -7.25", raw)
	}
}

func TestConcurrentDataNeverMixed(t *testing.T) {
	srv, state := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for i := 0; ctx.Err() == nil; i++ {
			v := float64(i % 90)
			state.PublishPose(orientation.Pose{Roll: v, Pitch: -v})
		}
	}()

	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				resp, err := http.Get(srv.URL + "/data")
				if err != nil {
					t.Errorf("GET /data: %v", err)
					return
				}
				var p orientation.Pose
				err = json.NewDecoder(resp.Body).Decode(&p)
				resp.Body.Close()
				if err != nil {
					t.Errorf("decode: %v", err)
					return
				}
				if p.Roll != -p.Pitch {
					t.Errorf("mixed pose %+v", p)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func testFrame(i int) []byte {
	return []byte(fmt.Sprintf("\xff\xd8frame-%04d\xff\xd9", i))
}

func TestVideoFeedPartsMatchPublishedFrames(t *testing.T) {
	srv, state := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	published := make(map[string]bool)
	var mu sync.Mutex
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			f := testFrame(i)
			mu.Lock()
			published[string(f)] = true
			mu.Unlock()
			state.PublishFrame(f)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/video_feed", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /video_feed: %v", err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] != "frame" {
		t.Fatalf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	mr := multipart.NewReader(resp.Body, params["boundary"])
	for i := 0; i < 3; i++ {
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("part %d: %v", i, err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part %d Content-Type = %q", i, ct)
		}
		body, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("read part %d: %v", i, err)
		}
		mu.Lock()
		ok := published[string(body)]
		mu.Unlock()
		if !ok {
			t.Errorf("part %d = %q is not a published frame", i, body)
		}
	}
}

func TestWebSocketPushesPose(t *testing.T) {
	srv, state := newTestServer(t)
	state.PublishPose(orientation.Pose{Roll: 1, Pitch: 2})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var p orientation.Pose
	if err := conn.ReadJSON(&p); err != nil {
		t.Fatalf("read initial pose: %v", err)
	}
	if p != (orientation.Pose{Roll: 1, Pitch: 2}) {
		t.Errorf("initial pose = %+v", p)
	}

	state.PublishPose(orientation.Pose{Roll: 10, Pitch: -10})
	// the publish may race the handler's first wait; skip a repeat of the old pose
	for {
		if err := conn.ReadJSON(&p); err != nil {
			t.Fatalf("read pushed pose: %v", err)
		}
		if p.Roll != 1 {
			break
		}
	}
	if p != (orientation.Pose{Roll: 10, Pitch: -10}) {
		t.Errorf("pushed pose = %+v", p)
	}
}

func TestStatus(t *testing.T) {
	srv, state := newTestServer(t)
	state.PublishCalibration(0.5, -0.25)
	state.PublishFrame(make([]byte, 2048))
	state.PacketApplied()

	_, body := get(t, srv.URL+"/status")
	var st map[string]any
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	if st["calibrated"] != true {
		t.Errorf("calibrated = %v", st["calibrated"])
	}
	if st["command_packets"] != float64(1) || st["frames_published"] != float64(1) {
		t.Errorf("counters = %v / %v", st["command_packets"], st["frames_published"])
	}
	if st["last_frame_size"] != "2.0 kB" {
		t.Errorf("last_frame_size = %v, want 2.0 kB", st["last_frame_size"])
	}
	if _, ok := st["gps"]; ok {
		t.Error("gps present without a fix")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "rover_video_frames_total") {
		t.Errorf("/metrics = %d, missing rover collectors", resp.StatusCode)
	}
}
