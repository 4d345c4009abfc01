// Package api is the REST client for the shop backend.
//
// Every authenticated request carries the access token as a bearer token.
// A 401 triggers one refresh through POST /auth/refresh followed by one
// retry; concurrent 401s share a single refresh. When the refresh itself is
// rejected the stored tokens are cleared and the caller gets an error for
// which IsSessionExpired reports true.
//
// Responses use the backend's envelope:
//
//	{"status": "success", "message": "...", "data": {...}}
package api
