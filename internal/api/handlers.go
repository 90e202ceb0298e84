package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mattjoyce/tokenforge/internal/command"
	"github.com/mattjoyce/tokenforge/internal/fault"
	"github.com/mattjoyce/tokenforge/internal/protocol"
	"github.com/mattjoyce/tokenforge/internal/storage"
	"github.com/mattjoyce/tokenforge/internal/window"
)

const maxInvokeBodyBytes = 1 << 20

// StatusForKind maps a failure kind to the HTTP status of its envelope.
func StatusForKind(kind fault.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case fault.UnknownCommand:
		return http.StatusNotFound
	case fault.InvalidArgs:
		return http.StatusBadRequest
	case fault.NativeCallFailed, fault.EncodingError:
		return http.StatusBadGateway
	case fault.EmitFailed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:            "ok",
		Version:           s.config.Version,
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		CommandsLoaded:    len(s.dispatcher.Commands()),
		WindowsOpen:       len(s.windows.List()),
		ConfigFingerprint: s.config.ConfigFingerprint,
	})
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CommandsResponse{Commands: s.dispatcher.Commands()})
}

// handleInvoke handles POST /invoke/{command}.
// Every outcome, including unknown commands, is a protocol.InvokeResponse.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")
	start := time.Now()

	req, err := protocol.DecodeRequest(http.MaxBytesReader(w, r.Body, maxInvokeBodyBytes))
	if err != nil {
		id := uuid.NewString()
		s.finishInvoke(w, r, start, id, name, "", nil, fault.New(fault.InvalidArgs, name, err))
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	label := s.resolveWindow(req, r)

	inv := command.Invocation{
		ID:      id,
		Command: name,
		Args:    req.Args,
		Window:  s.windows.Handle(label),
	}
	result, err := s.dispatcher.Dispatch(r.Context(), inv)
	s.finishInvoke(w, r, start, id, name, label, result, err)
}

func (s *Server) resolveWindow(req *protocol.InvokeRequest, r *http.Request) string {
	if req.Window != "" {
		return req.Window
	}
	if h := r.Header.Get(WindowHeader); h != "" {
		return h
	}
	return s.config.MainWindow
}

func (s *Server) finishInvoke(w http.ResponseWriter, r *http.Request, start time.Time, id, name, label string, result any, err error) {
	var resp *protocol.InvokeResponse
	if err == nil {
		resp, err = protocol.OK(id, name, result)
		if err != nil {
			err = fault.New(fault.Internal, name, err)
		}
	}
	if err != nil {
		resp = protocol.Failure(id, name, err)
	}

	s.record(r, storage.Entry{
		ID:         id,
		Command:    name,
		Window:     label,
		Status:     resp.Status,
		ErrorKind:  string(resp.Kind),
		Error:      resp.Error,
		StartedAt:  start,
		DurationMS: time.Since(start).Milliseconds(),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusForKind(resp.Kind))
	if err := protocol.EncodeResponse(w, resp); err != nil {
		s.logger.Error("failed to write invoke response", "command", name, "invocation_id", id, "error", err)
	}
}

func (s *Server) record(r *http.Request, e storage.Entry) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Record(r.Context(), e); err != nil {
		s.logger.Warn("failed to journal invocation", "command", e.Command, "invocation_id", e.ID, "error", err)
	}
}

func (s *Server) handleListWindows(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, WindowsResponse{Windows: s.windows.List()})
}

func (s *Server) handleOpenWindow(w http.ResponseWriter, r *http.Request) {
	var req OpenWindowRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInvokeBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	info, err := s.windows.Open(req.Label, req.Title)
	switch {
	case errors.Is(err, window.ErrInvalidLabel):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, window.ErrWindowExists):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusCreated, info)
	}
}

func (s *Server) handleCloseWindow(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if err := s.windows.Close(label); err != nil {
		if errors.Is(err, window.ErrWindowNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "invocation journal is disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	respondJSON(w, http.StatusOK, InvocationsResponse{Invocations: entries})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.dispatcher.Commands()))
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
