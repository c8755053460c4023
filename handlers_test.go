package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/mobsurvey/survey"
	"github.com/paulmach/orb/geojson"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// processedSession runs the pipeline over a generated log named name
func processedSession(t *testing.T, name string, lines, perLine int) *survey.Session {
	t.Helper()
	path := writeLog(t, t.TempDir(), name, sessionLog(lines, perLine))
	cfg := survey.DefaultProcessConfig()
	cfg.Grid.CellSize = 1
	cfg.Grid.Margin = 2
	s, err := survey.NewPipeline(cfg).Process(path, survey.PassthroughResolver{}, t.TempDir())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return s
}

// populatedTracker holds 017_site with a grid and 018_pair without one
func populatedTracker(t *testing.T) *survey.StateTracker {
	t.Helper()
	st := survey.NewStateTracker()
	st.AddSession(processedSession(t, "17_site.csv", 3, 10), map[string]string{"grd": "/out/017_site.grd"})
	st.AddSession(processedSession(t, "18_pair.csv", 1, 2), nil)
	return st
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealth_NoSessions(t *testing.T) {
	w := get(t, newHTTPServer(survey.NewStateTracker()), "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Status      string `json:"status"`
		HasSessions bool   `json:"hasSessions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.HasSessions {
		t.Error("hasSessions = true, want false")
	}
}

func TestHealth_WithSessions(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/health")
	if !strings.Contains(w.Body.String(), `"hasSessions":true`) {
		t.Errorf("expected hasSessions true, got %s", w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// /sessions
// ---------------------------------------------------------------------------

func TestSessions_List(t *testing.T) {
	st := populatedTracker(t)
	st.AddFailure("/raw/19_bad.csv", survey.ErrEmptyLog)
	w := get(t, newHTTPServer(st), "/sessions")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body struct {
		Sessions []survey.Summary `json:"sessions"`
		Failures map[string]string
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(body.Sessions))
	}
	if body.Sessions[0].ID != "017_site" || body.Sessions[1].ID != "018_pair" {
		t.Errorf("session ids = %s, %s", body.Sessions[0].ID, body.Sessions[1].ID)
	}
	if _, ok := body.Failures["/raw/19_bad.csv"]; !ok {
		t.Errorf("failure missing: %v", body.Failures)
	}
}

func TestSessions_Detail(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/sessions/017_site")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		ID        string            `json:"id"`
		Lines     int               `json:"lines"`
		Artifacts map[string]string `json:"artifacts"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ID != "017_site" || body.Lines != 3 {
		t.Errorf("detail = %+v", body)
	}
	if body.Artifacts["grd"] != "/out/017_site.grd" {
		t.Errorf("artifacts = %v", body.Artifacts)
	}
}

func TestSessions_UnknownID_404(t *testing.T) {
	h := newHTTPServer(populatedTracker(t))
	for _, ep := range []string{
		"/sessions/nope",
		"/sessions/nope/map.svg",
		"/sessions/nope/map.png",
		"/sessions/nope/grid.png",
		"/sessions/nope/grid.grd",
		"/sessions/nope/figure.html",
		"/sessions/nope/features.geojson",
	} {
		t.Run(ep, func(t *testing.T) {
			w := get(t, h, ep)
			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", w.Code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// grid endpoints
// ---------------------------------------------------------------------------

func TestGridGRD(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/sessions/017_site/grid.grd")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "017_site.grd") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	sg, err := survey.DecodeSurferGrid(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("DecodeSurferGrid: %v", err)
	}
	if sg.Cols == 0 || sg.Rows == 0 {
		t.Errorf("grid %dx%d is empty", sg.Cols, sg.Rows)
	}
}

func TestGridPNG(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/sessions/017_site/grid.png")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Errorf("invalid PNG: %v", err)
	}
}

func TestGrid_NoGrid_404(t *testing.T) {
	h := newHTTPServer(populatedTracker(t))
	for _, ep := range []string{"/sessions/018_pair/grid.grd", "/sessions/018_pair/grid.png"} {
		w := get(t, h, ep)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", ep, w.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// maps, figure and features
// ---------------------------------------------------------------------------

func TestMapSVG(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/sessions/017_site/map.svg")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<svg") {
		t.Error("body is not SVG")
	}
}

func TestMapPNG(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/sessions/017_site/map.png")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, err := png.Decode(w.Body); err != nil {
		t.Errorf("invalid PNG: %v", err)
	}
}

func TestFigureHTML(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/sessions/017_site/figure.html")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "017_site") {
		t.Error("figure does not name the session")
	}
}

func TestFeaturesGeoJSON(t *testing.T) {
	w := get(t, newHTTPServer(populatedTracker(t)), "/sessions/017_site/features.geojson")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	fc, err := geojson.UnmarshalFeatureCollection(w.Body.Bytes())
	if err != nil {
		t.Fatalf("UnmarshalFeatureCollection: %v", err)
	}
	if len(fc.Features) == 0 {
		t.Error("no features")
	}
	if fc.Features[0].Properties.MustString("kind") != "footprint" {
		t.Errorf("first feature kind = %v", fc.Features[0].Properties["kind"])
	}
}
