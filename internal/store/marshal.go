package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/ownc/internal/ir"
)

// marshalModes converts a mode sequence to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalModes(modes []ir.AccessMode) (string, error) {
	strs := make([]string, len(modes))
	for i, m := range modes {
		strs[i] = string(m)
	}
	data, err := ir.MarshalCanonical(strs)
	if err != nil {
		return "", fmt.Errorf("marshal modes: %w", err)
	}
	return string(data), nil
}

// unmarshalModes parses a stored mode sequence and rejects unknown modes.
func unmarshalModes(data string) ([]ir.AccessMode, error) {
	if data == "" || data == "[]" {
		return []ir.AccessMode{}, nil
	}
	var strs []string
	if err := json.Unmarshal([]byte(data), &strs); err != nil {
		return nil, fmt.Errorf("unmarshal modes: %w", err)
	}
	modes := make([]ir.AccessMode, len(strs))
	for i, s := range strs {
		m, err := ir.ParseAccessMode(s)
		if err != nil {
			return nil, fmt.Errorf("unmarshal modes: %w", err)
		}
		modes[i] = m
	}
	return modes, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
