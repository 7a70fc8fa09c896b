// Package api exposes the tool registry over HTTP: tool listing and
// invocation, health and metrics endpoints.
package api
