package driven

import "time"

// ConfigStore holds settings under flat dotted keys such as "rag.top_k".
// The typed getters return the zero value for a missing key or one whose
// value does not convert.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetDuration(key string) time.Duration

	// Set stores one value and persists it.
	Set(key string, value any) error

	// SetMany stores every value and persists once.
	SetMany(values map[string]any) error

	// Path names where settings are persisted.
	Path() string
}
