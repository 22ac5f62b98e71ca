// Package nodeid encodes and decodes Relay-style global node IDs.
// A node ID is a base64-encoded JSON array of [typeName, rowID]; every
// entity in this schema has a single integer primary key.
package nodeid

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"experiment-graphql/internal/gqlerrors"
)

// Encode marshals the type name and row ID into an opaque global ID.
func Encode(typeName string, id int64) string {
	payload := []interface{}{typeName, id}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses an opaque global ID into its type name and row ID.
func Decode(raw string) (string, int64, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid id: %w", err)
	}
	var payload []json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", 0, fmt.Errorf("invalid id: %w", err)
	}
	if len(payload) != 2 {
		return "", 0, errors.New("invalid id: expected [type, id] payload")
	}
	var typeName string
	if err := json.Unmarshal(payload[0], &typeName); err != nil || typeName == "" {
		return "", 0, errors.New("invalid id: missing type name")
	}
	id, err := parseID(payload[1])
	if err != nil {
		return "", 0, err
	}
	return typeName, id, nil
}

// DecodeExpected decodes a global ID and verifies it names the expected
// entity type. Failures are caller-input errors.
func DecodeExpected(raw, expectedType string) (int64, error) {
	typeName, id, err := Decode(raw)
	if err != nil {
		return 0, gqlerrors.BadRequestWrap(err, "invalid %s id", expectedType)
	}
	if typeName != expectedType {
		return 0, gqlerrors.BadRequest("invalid %s id: refers to %s", expectedType, typeName)
	}
	return id, nil
}

func parseID(raw json.RawMessage) (int64, error) {
	// IDs arrive either as JSON numbers or as decimal strings; strings
	// avoid float64 precision loss for large identifiers.
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		id, err := strconv.ParseInt(asString, 10, 64)
		if err != nil {
			return 0, errors.New("invalid id: non-integer value")
		}
		return id, nil
	}
	var asNumber float64
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return 0, errors.New("invalid id: non-integer value")
	}
	if asNumber != math.Trunc(asNumber) {
		return 0, errors.New("invalid id: non-integer value")
	}
	return int64(asNumber), nil
}
