package server

import (
	"fmt"
	"io"
)

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo(w io.Writer) {
	scheme := "http"
	if s.tlsMode() != "disabled" {
		scheme = "https"
	}
	fmt.Fprintf(w, "Starting server on %s://%s:%s (TLS mode: %s)\n", scheme, s.Host, s.Port, s.tlsMode())
	s.displayEndpoints(w)
	s.displayAuthInfo(w)
	s.displayRequestLimitInfo(w)
	s.displayRateLimitInfo(w)
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints(w io.Writer) {
	fmt.Fprintln(w, "Available endpoints:")
	fmt.Fprintln(w, "  GET  /health                 - Health check")
	fmt.Fprintln(w, "  GET  /stats                  - Server statistics")
	fmt.Fprintln(w, "  GET  /templates              - Available templates")
	fmt.Fprintln(w, "  POST /score                  - ATS score for a markdown resume")
	fmt.Fprintln(w, "  POST /render                 - Render markdown to PDF or DOCX")
	fmt.Fprintln(w, "  POST /analyze                - Analyze job description")
	fmt.Fprintln(w, "  POST /generate               - Tailor, render and score a resume")
	fmt.Fprintln(w, "  POST /evaluate               - Check a tailored resume against its base")
	fmt.Fprintln(w, "  GET  /jobs                   - Stored job descriptions")
	fmt.Fprintln(w, "  GET  /resumes                - Generated resumes")
	fmt.Fprintln(w, "  GET  /resumes/{id}/versions  - Version history")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo(w io.Writer) {
	if len(s.APIKeys) > 0 {
		fmt.Fprintf(w, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Fprintln(w, "Include 'X-API-Key: <your-key>' header in requests to POST endpoints")
	} else {
		fmt.Fprintln(w, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(w, "WARNING: API endpoints are publicly accessible!")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo(w io.Writer) {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(w, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(w, "Request size limit: DISABLED")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo(w io.Writer) {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(w, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Fprintln(w, "  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Fprintln(w, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(w, "Rate limiting: DISABLED")
	}
}
