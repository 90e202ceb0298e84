package api

import (
	"github.com/mattjoyce/tokenforge/internal/command"
	"github.com/mattjoyce/tokenforge/internal/storage"
	"github.com/mattjoyce/tokenforge/internal/window"
)

// ErrorResponse is returned on non-invocation errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version,omitempty"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	CommandsLoaded    int    `json:"commands_loaded"`
	WindowsOpen       int    `json:"windows_open"`
	ConfigFingerprint string `json:"config_fingerprint,omitempty"`
}

// CommandsResponse is returned by GET /commands.
type CommandsResponse struct {
	Commands []command.Descriptor `json:"commands"`
}

// WindowsResponse is returned by GET /windows.
type WindowsResponse struct {
	Windows []window.Info `json:"windows"`
}

// OpenWindowRequest is the JSON body for POST /windows.
type OpenWindowRequest struct {
	Label string `json:"label"`
	Title string `json:"title,omitempty"`
}

// InvocationsResponse is returned by GET /invocations.
type InvocationsResponse struct {
	Invocations []storage.Entry `json:"invocations"`
}
