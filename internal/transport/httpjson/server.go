// Package httpjson carries the coordinator protocol over HTTP with JSON
// bodies. Each operation has its own route (POST /register, POST /prime,
// GET /get_current_index, POST /ping); GET /health answers 200 while the
// server runs.
//
// Protocol rejections travel as 200 responses with a status field. Non-2xx
// codes mean the call failed: 400 for requests the coordinator could not
// interpret, 503 for canceled calls, 500 for anything else.
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
)

// maxBodyBytes bounds request bodies; a PEM key in base64 is well under 4 KiB.
const maxBodyBytes = 64 << 10

// NewHandler routes every protocol operation to svc.
func NewHandler(svc transport.Service, log *logrus.Entry) http.Handler {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	h := &handler{svc: svc, log: log.WithField("component", "httpjson")}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", h.dispatch)
	return mux
}

// NewServer returns an http.Server for svc listening on addr.
func NewServer(addr string, svc transport.Service, log *logrus.Entry) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(svc, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type handler struct {
	svc transport.Service
	log *logrus.Entry
}

// dispatch resolves the first path segment to an operation. Unknown
// operations are answered with 404.
func (h *handler) dispatch(w http.ResponseWriter, r *http.Request) {
	op, err := protocol.ParseOp(strings.TrimPrefix(r.URL.Path, "/"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	switch op {
	case protocol.OpRegister:
		h.handleRegister(w, r)
	case protocol.OpPrime:
		h.handlePrime(w, r)
	case protocol.OpGetCurrentIndex:
		h.handleCurrentIndex(w, r)
	case protocol.OpPing:
		h.handlePing(w, r)
	}
}

func (h *handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.Register(r.Context(), &req)
	h.respond(w, resp, err)
}

func (h *handler) handlePrime(w http.ResponseWriter, r *http.Request) {
	var req protocol.PrimeRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.SubmitPrime(r.Context(), &req)
	h.respond(w, resp, err)
}

func (h *handler) handleCurrentIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := h.svc.CurrentIndex(r.Context(), &protocol.CurrentIndexRequest{})
	h.respond(w, resp, err)
}

func (h *handler) handlePing(w http.ResponseWriter, r *http.Request) {
	var req protocol.PingRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.svc.Ping(r.Context(), &req)
	h.respond(w, resp, err)
}

// decode reads a POSTed JSON body into v, answering the request itself on failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *handler) respond(w http.ResponseWriter, resp any, err error) {
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.log.WithError(err).Warn("request failed")
		}
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.WithError(err).Warn("write response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, protocol.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
