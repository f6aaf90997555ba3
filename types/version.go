package types

// Version is the canonical project version.
// The CLI, the recording format and the embedded host scripts share it.
const Version = "0.3.0"

// RecordingVersion is the session recording format version.
// Bumped only when the msgpack record layout changes.
const RecordingVersion = "1"
