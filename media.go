// Media file serving

package main

import (
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Content types for the HLS assets the gateway serves.
var MEDIA_CONTENT_TYPES = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/MP2T",
	".jpg":  "image/jpeg",
	".json": "application/json",
}

// Handles GET /videos/{classroom}/...
// The access check runs on every request against the current catalog
// snapshot, so allow-list changes apply on the next request. No bytes
// are transferred on denial, and denial is indistinguishable from a
// missing file.
func (gateway *MediaGateway) HandleMediaFile(w http.ResponseWriter, req *http.Request) {
	subject := subjectFromContext(req.Context())
	classroom := chi.URLParam(req, "classroom")
	rest := chi.URLParam(req, "*")

	catalog := gateway.catalog.Snapshot()

	if !CanAccessClassroom(subject, classroom, catalog) {
		metricAccessDecisions.WithLabelValues("denied").Inc()
		writeJSONError(w, http.StatusNotFound, "not_found")
		return
	}

	metricAccessDecisions.WithLabelValues("allowed").Inc()

	// Hidden files and relative segments are never served
	for _, segment := range strings.Split(rest, "/") {
		if strings.HasPrefix(segment, ".") {
			writeJSONError(w, http.StatusNotFound, "not_found")
			return
		}
	}

	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err == nil && !gateway.isIPExempted(ip) {
		if !gateway.AddIP(ip) {
			writeJSONError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		defer gateway.RemoveIP(ip)
	}

	relative := path.Clean("/" + rest)
	file := filepath.Join(gateway.videoPath, classroom, filepath.FromSlash(relative))

	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		writeJSONError(w, http.StatusNotFound, "not_found")
		return
	}

	if contentType, found := MEDIA_CONTENT_TYPES[strings.ToLower(path.Ext(relative))]; found {
		w.Header().Set("Content-Type", contentType)
	}

	w.Header().Set("Cache-Control", "max-age=86400")

	http.ServeFile(w, req, file)
}
