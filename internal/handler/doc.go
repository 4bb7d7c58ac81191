// Package handler implements the HTTP API of the upstream selector.
// It translates engine answers into the JSON wire contract and keeps
// status codes honest: 503 when the pool has no healthy member, 404
// for unknown upstreams and routes.
package handler
