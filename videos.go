// Video catalog endpoints

package main

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

const DATE_FORMAT = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		LogError(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// Handles GET /videos
// Without parameters it returns the filtered catalog for the caller.
// With classroom it returns that classroom's manifest, behind the
// access check. Denied and unknown classrooms produce the exact same
// response, so the catalog cannot be enumerated.
func (gateway *MediaGateway) HandleVideoIndex(w http.ResponseWriter, req *http.Request) {
	subject := subjectFromContext(req.Context())
	catalog := gateway.catalog.Snapshot()
	query := req.URL.Query()

	if !query.Has("classroom") {
		writeJSON(w, http.StatusOK, FilterCatalogFor(subject, catalog))
		return
	}

	classroom := query.Get("classroom")

	if !query.Has("date") {
		if !CanAccessClassroom(subject, classroom, catalog) {
			metricAccessDecisions.WithLabelValues("denied").Inc()
			writeJSONError(w, http.StatusNotFound, "not_found")
			return
		}

		metricAccessDecisions.WithLabelValues("allowed").Inc()
		gateway.serveClassroomManifest(w, req, classroom)
		return
	}

	if _, err := time.Parse(DATE_FORMAT, query.Get("date")); err != nil {
		writeJSONError(w, http.StatusBadRequest, "date invalid")
		return
	}

	// The preparation pipeline never produced date-scoped manifests,
	// so this combination stays rejected instead of guessing one.
	writeJSONError(w, http.StatusBadRequest, "missing required parameters")
}

// serveClassroomManifest sends the per-classroom index document.
// A classroom that passed the access check but has no manifest on
// disk yields the same denial as an unknown classroom.
func (gateway *MediaGateway) serveClassroomManifest(w http.ResponseWriter, req *http.Request, classroom string) {
	manifest := filepath.Join(gateway.videoPath, classroom, "index.json")

	info, err := os.Stat(manifest)
	if err != nil || info.IsDir() {
		writeJSONError(w, http.StatusNotFound, "not_found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, req, manifest)
}
