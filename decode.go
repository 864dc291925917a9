package rawi

import (
	"encoding/json"
)

// decodeOutcome tags which decode stage produced a value.
type decodeOutcome int

const (
	decodedEnvelope decodeOutcome = iota
	decodedDirect
	decodeFailed
)

func (o decodeOutcome) String() string {
	switch o {
	case decodedEnvelope:
		return "envelope"
	case decodedDirect:
		return "direct"
	default:
		return "failed"
	}
}

// envelope is the wrapper convention used by the upstream content APIs:
// status metadata beside a nested data payload.
type envelope struct {
	Code   int             `json:"code"`
	Status json.RawMessage `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// decodePayload tries the enveloped shape first and the raw shape second. The
// same orchestrator serves upstreams with different envelope conventions, so
// both shapes are legitimate; only a payload matching neither is an error.
func decodePayload[T any](raw []byte) (T, decodeOutcome, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		var out T
		if err := json.Unmarshal(env.Data, &out); err == nil {
			return out, decodedEnvelope, nil
		}
	}

	var out T
	if err := json.Unmarshal(raw, &out); err == nil {
		return out, decodedDirect, nil
	}

	var zero T
	return zero, decodeFailed, &Error{
		Kind:    KindDecoding,
		Message: "payload matches neither the enveloped nor the direct shape",
	}
}
