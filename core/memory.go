package core

// Memory is an agent's private key/value scratchpad. It is exclusively owned
// by the agent whose loop received it and carries no synchronization: the
// cooperative scheduler guarantees only one agent body executes between
// suspension points, and nothing outside that loop may touch the map.
type Memory map[string]any

// NewMemory returns an empty memory.
func NewMemory() Memory { return Memory{} }

// Get returns the value and existence flag for a key.
func (m Memory) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Set stores a key/value pair.
func (m Memory) Set(key string, value any) { m[key] = value }

// Delete removes a key if present.
func (m Memory) Delete(key string) { delete(m, key) }

// Int returns the value for key as an int, or zero when absent or of a
// different type. Convenience for the counters agents keep across cycles.
func (m Memory) Int(key string) int {
	if v, ok := m[key].(int); ok {
		return v
	}
	return 0
}

// String returns the value for key as a string, or "" when absent or of a
// different type.
func (m Memory) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Len returns the number of stored keys.
func (m Memory) Len() int { return len(m) }
