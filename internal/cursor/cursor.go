// Package cursor encodes and decodes Relay-style connection cursors.
// A cursor is an opaque base64-encoded JSON payload naming the row it
// points at. It carries identity only: the ordering values for seek
// resumption are read back from that row at query time, so a cursor
// stays valid across different sort orders.
package cursor

import (
	"encoding/base64"
	"encoding/json"

	"experiment-graphql/internal/gqlerrors"
)

type payloadV1 struct {
	Version  int    `json:"v"`
	TypeName string `json:"t"`
	ID       int64  `json:"id"`
}

// Encode builds an opaque cursor for a row of the given entity type.
func Encode(typeName string, id int64) string {
	data, err := json.Marshal(payloadV1{Version: 1, TypeName: typeName, ID: id})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a cursor and verifies it points at a row of the expected
// entity type. All failures are caller-input errors: a malformed cursor
// must fail the request before any page query runs.
func Decode(raw, expectedType string) (int64, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return 0, gqlerrors.BadRequestWrap(err, "invalid cursor")
	}
	var payload payloadV1
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, gqlerrors.BadRequest("invalid cursor format")
	}
	if payload.Version != 1 {
		return 0, gqlerrors.BadRequest("invalid cursor format: unsupported version %d", payload.Version)
	}
	if payload.TypeName == "" {
		return 0, gqlerrors.BadRequest("invalid cursor: missing type name")
	}
	if payload.TypeName != expectedType {
		return 0, gqlerrors.BadRequest("invalid cursor: expected %s, got %s", expectedType, payload.TypeName)
	}
	if payload.ID <= 0 {
		return 0, gqlerrors.BadRequest("invalid cursor: bad row id")
	}
	return payload.ID, nil
}
