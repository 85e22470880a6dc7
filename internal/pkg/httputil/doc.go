// Package httputil holds the JSON response and request helpers shared by
// the API and tracking handlers.
//
// Handlers use these instead of writing to http.ResponseWriter directly so
// every endpoint returns the same error envelope.
package httputil
