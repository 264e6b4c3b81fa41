// Package api exposes the license gateway over HTTP.
//
// Routes:
//
//	POST /v1/licenses                     provision a license
//	POST /v1/licenses/offline-activation  create an offline activation response
//	GET  /healthz                         liveness
//	GET  /readyz                          readiness (credential secret reachable)
//	GET  /metrics                         Prometheus metrics (unless METRICS_LISTEN_ADDR is set)
package api
