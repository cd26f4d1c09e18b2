// Package api holds the wire types of the CHIKA HTTP API.
//
// # API Overview
//
// CHIKA exposes a small REST surface around the collaboration engine:
//   - POST /api/v1/rooms/{room}/collaborate runs one collaboration
//   - GET  /api/v1/rooms/{room}/discussions lists a room's discussions, newest first
//   - GET  /api/v1/discussions/{id} returns one discussion
//   - GET  /api/v1/providers lists deployments in routing order
//   - GET  /api/v1/rooms/{room}/ws streams engine events over WebSocket
//   - /health, /healthz, /ready and /version for probes
//
// Every JSON body is wrapped in the handlers.Response envelope:
//
//	{"success": true, "data": {...}, "timestamp": "...", "request_id": "..."}
//
// # Authentication
//
// When server.api_keys is configured, /api/v1 requires the X-API-Key header
// (or the api_key query parameter when server.allow_query_api_key is set):
//
//	X-API-Key: your-api-key
//
// When server.jwt is configured, a Bearer token is accepted as well.
//
// # Base URL
//
//	http://localhost:8000
package api
