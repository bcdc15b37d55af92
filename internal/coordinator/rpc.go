package coordinator

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/primeturn/internal/protocol"
	"github.com/dreamware/primeturn/internal/transport"
)

// Handler exposes a Coordinator through transport.Service. It decodes the
// wire payloads, feeds heartbeats to an optional LivenessTracker and logs
// each request.
type Handler struct {
	coord    *Coordinator
	liveness *LivenessTracker
	log      *logrus.Entry
}

var _ transport.Service = (*Handler)(nil)

// NewHandler binds a coordinator and an optional liveness tracker.
func NewHandler(coord *Coordinator, liveness *LivenessTracker) *Handler {
	return &Handler{
		coord:    coord,
		liveness: liveness,
		log:      coord.log.WithField("component", "rpc"),
	}
}

// Register decodes the base64 public key and registers the worker.
func (h *Handler) Register(ctx context.Context, req *protocol.RegisterRequest) (*protocol.RegisterResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not base64: %v", protocol.ErrInvalidRequest, err)
	}
	resp, err := h.coord.Register(req.ClientID, key)
	if err != nil {
		return nil, err
	}
	h.log.WithFields(logrus.Fields{
		"client_id": req.ClientID,
		"order":     resp.Order,
	}).Debug(resp.Message)
	return resp, nil
}

// SubmitPrime forwards a signed prime to the coordinator.
func (h *Handler) SubmitPrime(ctx context.Context, req *protocol.PrimeRequest) (*protocol.PrimeResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ClientID == "" {
		return nil, ErrEmptyClientID
	}
	resp := h.coord.Submit(req.ClientID, req.PrimeNumber, req.Signature)
	if !resp.Accepted() {
		h.log.WithFields(logrus.Fields{
			"client_id": req.ClientID,
			"status":    resp.Status,
		}).Debug(resp.Message)
	}
	return resp, nil
}

// CurrentIndex returns the turn cursor.
func (h *Handler) CurrentIndex(ctx context.Context, _ *protocol.CurrentIndexRequest) (*protocol.CurrentIndexResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &protocol.CurrentIndexResponse{Index: h.coord.CurrentTurn()}, nil
}

// Ping acknowledges a heartbeat.
func (h *Handler) Ping(ctx context.Context, req *protocol.PingRequest) (*protocol.PingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.liveness != nil && req.ClientID != "" {
		h.liveness.RecordPing(req.ClientID)
	}
	h.log.WithField("client_id", req.ClientID).Debug(protocol.PongMessage)
	return &protocol.PingResponse{Message: protocol.PongMessage}, nil
}
