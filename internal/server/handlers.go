package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/flowlayout/pkg/buildinfo"
	"github.com/matzehuels/flowlayout/pkg/errors"
	"github.com/matzehuels/flowlayout/pkg/layout"
	"github.com/matzehuels/flowlayout/pkg/observability"
	"github.com/matzehuels/flowlayout/pkg/pipeline"
	"github.com/matzehuels/flowlayout/pkg/workflow"
)

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string         `json:"status"`
	Uptime string         `json:"uptime"`
	Build  buildinfo.Info `json:"build"`
}

// LayoutResponse wraps a pipeline result.
type LayoutResponse struct {
	RequestID string           `json:"request_id"`
	CacheHit  bool             `json:"cache_hit"`
	Result    *pipeline.Result `json:"result"`
}

// ErrorBody is the payload of a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage,omitempty"`
}

// ErrorResponse is the envelope of a failed request.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

// requestBody mirrors [pipeline.Request] but keeps nodes raw so that
// transitions go through the workflow decoder.
type requestBody struct {
	Nodes   json.RawMessage `json:"nodes"`
	Options layout.Options  `json:"options"`
	Refresh bool            `json:"refresh"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Build:  buildinfo.Get(),
	})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.runner.Layout)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.runner.Validate)
}

type runFunc func(context.Context, pipeline.Request) (*pipeline.Result, pipeline.RunInfo, error)

func (s *Server) serve(w http.ResponseWriter, r *http.Request, run runFunc) {
	req, err := s.decodeRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	res, info, err := run(ctx, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	cacheStatus := "miss"
	if info.CacheHit {
		cacheStatus = "hit"
	}
	w.Header().Set("X-Cache", cacheStatus)
	writeJSON(w, r, http.StatusOK, LayoutResponse{
		RequestID: RequestIDFrom(r.Context()),
		CacheHit:  info.CacheHit,
		Result:    res,
	})
}

func (s *Server) decodeRequest(r *http.Request) (pipeline.Request, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.MaxBodyBytes+1))
	if err != nil {
		return pipeline.Request{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body")
	}
	if int64(len(body)) > s.MaxBodyBytes {
		return pipeline.Request{}, errors.New(errors.ErrCodeInvalidInput, "body exceeds %d bytes", s.MaxBodyBytes)
	}

	var rb requestBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return pipeline.Request{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode request")
	}
	if len(rb.Nodes) == 0 {
		return pipeline.Request{}, errors.New(errors.ErrCodeInvalidInput, "nodes is required")
	}
	wf, err := workflow.Decode(bytes.NewReader(rb.Nodes), workflow.FormatJSON)
	if err != nil {
		return pipeline.Request{}, err
	}
	if err := workflow.Validate(wf.Nodes); err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{Nodes: wf.Nodes, Options: rb.Options, Refresh: rb.Refresh}, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err, "request_id", RequestIDFrom(r.Context()))
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "err", err)
	}

	code := string(errors.GetCode(err))
	msg := errors.UserMessage(err)
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		code, msg = string(errors.ErrCodeCanceled), "layout timed out"
	case code == "":
		code, msg = string(errors.ErrCodeInternal), "internal error"
	}
	writeError(w, r, status, code, msg, errors.StageOf(err))
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeDuplicateNode:
		return http.StatusBadRequest
	case errors.ErrCodeInvalidConfig:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case errors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg, stage string) {
	writeJSON(w, r, status, ErrorResponse{
		Error:     ErrorBody{Code: code, Message: msg, Stage: stage},
		RequestID: RequestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if r.URL.Query().Get("pretty") == "true" {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
