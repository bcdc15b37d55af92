package protocol

import "fmt"

// Numeric error codes. They identify a rejection independently of its
// human-readable message.
const (
	CodeRequestValidation  = 10001
	CodeInvalidSignature   = 10002
	CodeDuplicatePrime     = 10003
	CodeClientNotFound     = 10004
	CodeGeneratePrime      = 10005
	CodeVerifySignature    = 10006
	CodeStartSendingPrimes = 10007
	codeNotStarted         = 10008
	codeWrongTurn          = 10009
	codeSessionCompleted   = 10010
)

// Status is the outcome of a prime submission.
type Status string

const (
	StatusAccepted         Status = "accepted"
	StatusNotStarted       Status = "not_started"
	StatusWrongTurn        Status = "wrong_turn"
	StatusClientNotFound   Status = "client_not_found"
	StatusInvalidSignature Status = "invalid_signature"
	StatusDuplicate        Status = "duplicate"
	// StatusCompleted is returned once the session has reached its target.
	StatusCompleted Status = "completed"
)

// Rejection messages.
const (
	MessageNotStarted       = "Processing has not started yet. Please wait."
	MessageInvalidSignature = "Invalid signature, please check your signature"
	MessageDuplicate        = "Duplicate prime number, please check your number"
	MessageClientNotFound   = "Client not found, please check your client id"
	MessageCompleted        = "Session completed, no further submissions accepted"
)

// Code returns the numeric error code for a rejection status, zero for acceptance.
func (s Status) Code() int {
	switch s {
	case StatusInvalidSignature:
		return CodeInvalidSignature
	case StatusDuplicate:
		return CodeDuplicatePrime
	case StatusClientNotFound:
		return CodeClientNotFound
	case StatusNotStarted:
		return codeNotStarted
	case StatusWrongTurn:
		return codeWrongTurn
	case StatusCompleted:
		return codeSessionCompleted
	}
	return 0
}

// Accepted builds the response for a prime that entered the ledger.
func Accepted(prime string) *PrimeResponse {
	return &PrimeResponse{Status: StatusAccepted, Message: "Prime number added: " + prime}
}

// WrongTurn builds the response naming the identifier whose turn it is.
func WrongTurn(expected string) *PrimeResponse {
	return &PrimeResponse{
		Status:   StatusWrongTurn,
		Message:  fmt.Sprintf("Current turn: %s", expected),
		Expected: expected,
		Code:     codeWrongTurn,
	}
}

// Rejected builds the response for any rejection other than WrongTurn.
func Rejected(s Status) *PrimeResponse {
	var msg string
	switch s {
	case StatusNotStarted:
		msg = MessageNotStarted
	case StatusInvalidSignature:
		msg = MessageInvalidSignature
	case StatusDuplicate:
		msg = MessageDuplicate
	case StatusClientNotFound:
		msg = MessageClientNotFound
	case StatusCompleted:
		msg = MessageCompleted
	default:
		msg = string(s)
	}
	return &PrimeResponse{Status: s, Message: msg, Code: s.Code()}
}

// RegisterStatus is the outcome of a registration.
type RegisterStatus string

const (
	StatusRegistered        RegisterStatus = "registered"
	StatusAlreadyRegistered RegisterStatus = "already_registered"
)

// Message returns the human-readable registration message.
func (s RegisterStatus) Message() string {
	if s == StatusAlreadyRegistered {
		return "Client already registered"
	}
	return "Client registered successfully"
}
