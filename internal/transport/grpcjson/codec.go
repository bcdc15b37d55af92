// Package grpcjson carries the coordinator protocol over gRPC. Messages are
// the JSON-tagged structs of the protocol package, marshalled by a JSON codec
// that both ends force, so no generated stubs are involved.
package grpcjson

import (
	"encoding/json"
	"fmt"
)

// codecName is advertised as the content subtype: application/grpc+json.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpcjson marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("grpcjson unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }
