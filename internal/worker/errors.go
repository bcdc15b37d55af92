package worker

import (
	"errors"

	"github.com/dreamware/primeturn/internal/protocol"
)

var (
	// ErrGeneratePrime wraps a failure of the candidate prime generator.
	ErrGeneratePrime = errors.New("prime number generation error, please try again")

	// ErrStartSending wraps every error that ends the submission loop.
	ErrStartSending = errors.New("error starting to send prime numbers, please try again")

	// ErrRetriesExhausted wraps the last transport error once a call has used
	// its whole retry budget.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrNotRegistered is returned by SendPrimes before registration succeeded.
	ErrNotRegistered = errors.New("worker is not registered")

	// ErrAlreadySending is returned by SendPrimes while another loop runs.
	ErrAlreadySending = errors.New("worker is already sending primes")

	// ErrAlreadyStarted is returned by a second successful Start.
	ErrAlreadyStarted = errors.New("worker already started")

	// ErrStopped is returned by calls made after Stop.
	ErrStopped = errors.New("worker stopped")
)

// Code returns the numeric error code carried by err, or zero.
func Code(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrStartSending):
		return protocol.CodeStartSendingPrimes
	case errors.Is(err, ErrGeneratePrime):
		return protocol.CodeGeneratePrime
	case errors.Is(err, protocol.ErrInvalidRequest):
		return protocol.CodeRequestValidation
	}
	return 0
}
