package store

import (
	"encoding/json"

	"go.uber.org/zap"
)

// encodeMap never fails for the map[string]any values the domain uses; a nil
// map encodes as an empty object so columns stay NOT NULL.
func encodeMap(m map[string]any) []byte {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func encodeStrings(s []string) []byte {
	if s == nil {
		s = []string{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return []byte("[]")
	}
	return b
}

// decodeMap tolerates corrupted rows: a column that no longer parses decodes
// to an empty map so reads keep working, with a warning for the operator.
func decodeMap(logger *zap.Logger, column string, raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		logger.Warn("malformed json column, substituting empty object",
			zap.String("column", column), zap.Error(err))
		return map[string]any{}
	}
	if m == nil {
		return map[string]any{}
	}
	return m
}

func decodeStrings(logger *zap.Logger, column string, raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var s []string
	if err := json.Unmarshal(raw, &s); err != nil {
		logger.Warn("malformed json column, substituting empty array",
			zap.String("column", column), zap.Error(err))
		return []string{}
	}
	if s == nil {
		return []string{}
	}
	return s
}
