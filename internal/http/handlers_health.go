package httpx

import (
	"io"
	"net/http"
)

const (
	healthResponse = `{"status":"ok"}`
	robotsTxt      = "User-agent: *\nDisallow:\n"
	sitemapXML     = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>` + "\n"
)

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

func robotsHandler(w http.ResponseWriter, r *http.Request) {
	writeText(w, r, "text/plain; charset=utf-8", robotsTxt)
}

func sitemapHandler(w http.ResponseWriter, r *http.Request) {
	writeText(w, r, "application/xml; charset=utf-8", sitemapXML)
}
