//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are run via `go run` or installed with `go install` and are not
// tracked in go.mod since they are not runtime dependencies.
package tools

// Development tools:
//
// Air - Live reload for the lab server
//   Install: go install github.com/air-verse/air@v1.63.0
//   Usage:   DEV=true air -- ./cmd/seclab
//
// mockgen - Regenerates gomock doubles for repository and session ports
//   Usage:   go generate ./internal/mocks
//   Version: pinned in internal/mocks/generate.go (v0.6.0)
