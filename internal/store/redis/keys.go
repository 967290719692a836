package redis

const (
	// DefaultNamespace prefixes every key written by the tracker.
	DefaultNamespace = "npds"

	keyCommandLog = ":cmdlog"
	keySavedAt    = ":cmdlog:saved_at"
)

// CommandLogKey returns the key of the list holding the REGUP lines.
func CommandLogKey(namespace string) string {
	return namespace + keyCommandLog
}

// SavedAtKey returns the key holding the time of the last save. Its presence
// tells an empty command log from one that was never written.
func SavedAtKey(namespace string) string {
	return namespace + keySavedAt
}
