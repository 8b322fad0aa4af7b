// Package httputil provides shared HTTP response helpers for handlers so
// every endpoint uses the same JSON formatting and error envelope.
package httputil
