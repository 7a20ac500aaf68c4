// Package api hosts the HTTP server and handlers. Routes:
//   - GET / returns a plain-text welcome line.
//   - GET /current-version returns the stored record for the watched software.
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /check runs one scrape cycle when a Checker is configured.
package api
