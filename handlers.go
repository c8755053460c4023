package main

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/kwv/mobsurvey/survey"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *survey.StateTracker) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status      string    `json:"status"`
			Timestamp   time.Time `json:"timestamp"`
			HasSessions bool      `json:"hasSessions"`
		}{
			Status:      "ok",
			Timestamp:   time.Now(),
			HasSessions: stateTracker.HasSessions(),
		}
		writeJSON(w, status)
	})

	// Session list
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		list := struct {
			Sessions []survey.Summary  `json:"sessions"`
			Failures map[string]string `json:"failures,omitempty"`
		}{
			Sessions: stateTracker.Summaries(),
			Failures: stateTracker.Failures(),
		}
		writeJSON(w, list)
	})

	// Session summary with its artifacts
	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupSession(w, r, stateTracker)
		if !ok {
			return
		}
		detail := struct {
			survey.Summary
			Artifacts   map[string]string `json:"artifacts,omitempty"`
			ProcessedAt time.Time         `json:"processedAt"`
		}{
			Summary:     rec.Session.Summarize(),
			Artifacts:   rec.Artifacts,
			ProcessedAt: rec.ProcessedAt,
		}
		writeJSON(w, detail)
	})

	// Vector session map
	mux.HandleFunc("GET /sessions/{id}/map.svg", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupSession(w, r, stateTracker)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := survey.NewVectorRenderer(rec.Session).RenderToSVG(w); err != nil {
			log.Printf("Error rendering SVG map for %s: %v", rec.Session.Info.ID, err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		}
	})

	mux.HandleFunc("GET /sessions/{id}/map.png", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupSession(w, r, stateTracker)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := survey.NewVectorRenderer(rec.Session).RenderToPNG(w); err != nil {
			log.Printf("Error rendering PNG map for %s: %v", rec.Session.Info.ID, err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		}
	})

	// Raster heatmap of the interpolated grid
	mux.HandleFunc("GET /sessions/{id}/grid.png", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupSession(w, r, stateTracker)
		if !ok {
			return
		}
		if rec.Session.Grid.Empty() {
			http.Error(w, "No grid produced for this session", http.StatusNotFound)
			return
		}
		img, err := survey.NewGridRenderer(rec.Session).Render()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, img); err != nil {
			log.Printf("Error encoding grid PNG: %v", err)
		}
	})

	// Surfer grid download, node coordinates as computed
	mux.HandleFunc("GET /sessions/{id}/grid.grd", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupSession(w, r, stateTracker)
		if !ok {
			return
		}
		if rec.Session.Grid.Empty() {
			http.Error(w, "No grid produced for this session", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Session.Info.ID+".grd"))
		if err := survey.EncodeSurferGrid(w, rec.Session.Grid); err != nil {
			log.Printf("Error encoding grid for %s: %v", rec.Session.Info.ID, err)
		}
	})

	// Interactive figure
	mux.HandleFunc("GET /sessions/{id}/figure.html", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupSession(w, r, stateTracker)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := survey.RenderHTML(rec.Session, w); err != nil {
			log.Printf("Error rendering figure for %s: %v", rec.Session.Info.ID, err)
		}
	})

	mux.HandleFunc("GET /sessions/{id}/features.geojson", func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupSession(w, r, stateTracker)
		if !ok {
			return
		}
		data, err := survey.SessionFeatures(rec.Session).MarshalJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing features: %v", err)
		}
	})

	return mux
}

// lookupSession resolves the {id} path value, writing 404 when unknown
func lookupSession(w http.ResponseWriter, r *http.Request, st *survey.StateTracker) (*survey.SessionRecord, bool) {
	id := r.PathValue("id")
	rec, ok := st.GetSession(id)
	if !ok {
		http.Error(w, fmt.Sprintf("Session %q not found", id), http.StatusNotFound)
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}
