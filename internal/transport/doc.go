// Package transport declares the request/response surface that connects
// workers to the coordinator. Concrete transports live in subpackages and
// decode each operation once, at the boundary, into the typed pairs of the
// protocol package.
//
// # Layout
//
//	worker.Worker ──► transport.Client
//	                     │
//	         ┌───────────┴───────────┐
//	         ▼                       ▼
//	   httpjson.Client         grpcjson.Client
//	         │                       │
//	   httpjson.NewHandler     grpcjson.NewServer
//	         └───────────┬───────────┘
//	                     ▼
//	           transport.Service
//	      (coordinator.Handler)
//
// # Errors
//
// Both bindings keep the same error contract. A rejection decided by the
// coordinator, such as a wrong turn or a duplicate, is a normal response.
// A request the coordinator could not interpret fails with an error wrapping
// protocol.ErrInvalidRequest on both sides of the wire. Any other error is a
// transport failure and the caller may retry it. Clients used after Close
// fail with ErrClosed.
package transport
