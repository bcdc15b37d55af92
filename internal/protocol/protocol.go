// Package protocol defines the wire contract between workers and the
// coordinator: the enumerated operation set, one typed request/response pair
// per operation, and the status values a submission can resolve to.
//
// The types are plain JSON-tagged structs so every transport can carry them
// without a schema compiler.
package protocol

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks a request that could not be interpreted at all, for
// example a missing client id or a public key that is not valid base64.
// Transports map it to their "bad request" signal.
var ErrInvalidRequest = errors.New("invalid request")

// Op names one coordinator operation.
type Op string

const (
	OpRegister        Op = "register"
	OpPrime           Op = "prime"
	OpGetCurrentIndex Op = "get_current_index"
	OpPing            Op = "ping"
)

// Ops lists every operation in a stable order.
var Ops = []Op{OpRegister, OpPrime, OpGetCurrentIndex, OpPing}

// ParseOp maps a wire name to its Op.
func ParseOp(name string) (Op, error) {
	for _, op := range Ops {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: unknown operation %q", ErrInvalidRequest, name)
}

// Path is the HTTP route for the operation.
func (o Op) Path() string { return "/" + string(o) }

// RegisterRequest announces a worker identity to the coordinator.
type RegisterRequest struct {
	ClientID string `json:"clientId"`
	// PublicKey is the base64 encoding of the worker's PEM public key.
	PublicKey string `json:"publicKey"`
}

// RegisterResponse carries the assigned order.
type RegisterResponse struct {
	Status  RegisterStatus `json:"status"`
	Message string         `json:"message"`
	Order   int            `json:"order"`
}

// PrimeRequest submits one signed prime.
type PrimeRequest struct {
	ClientID    string `json:"clientId"`
	PrimeNumber string `json:"primeNumber"`
	Signature   string `json:"signature"`
}

// PrimeResponse is the coordinator's verdict on a submission. Rejections are
// normal responses, not transport errors.
type PrimeResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	// Expected is the identifier holding the turn, set on StatusWrongTurn.
	Expected string `json:"expected,omitempty"`
	// Code is the numeric error code of a rejection, zero on acceptance.
	Code int `json:"code,omitempty"`
}

// Accepted reports whether the prime entered the ledger.
func (r *PrimeResponse) Accepted() bool { return r != nil && r.Status == StatusAccepted }

// CurrentIndexRequest asks for the turn cursor.
type CurrentIndexRequest struct{}

// CurrentIndexResponse holds the turn cursor.
type CurrentIndexResponse struct {
	Index int `json:"index"`
}

// PingRequest is a worker heartbeat.
type PingRequest struct {
	ClientID string `json:"clientId"`
}

// PingResponse acknowledges a heartbeat with PongMessage.
type PingResponse struct {
	Message string `json:"message"`
}

// PongMessage is the literal liveness acknowledgment.
const PongMessage = "pong"
