// Package httpapi exposes the broker over HTTP with chi.
package httpapi
