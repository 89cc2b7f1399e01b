// Package http wires the chi router and handlers for the public API:
//
//	POST /api/v1/upload       — multipart dataset upload
//	POST /api/v1/process      — enqueue an analysis run
//	GET  /api/v1/insights     — stored insights for a file
//	GET  /api/v1/status       — processing status for a file
//	GET  /api/v1/ws/{file_id} — live progress stream
//	GET  /health              — service health
//	GET  /metrics             — prometheus metrics
//
// Handlers translate service and queue errors into APIError responses
// rendered through chi/render.
package http
