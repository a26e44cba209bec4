package ir

// Version constants for the identifier format and the tool.
const (
	// FormatVersion is the version of the canonical request encoding.
	// Changing it changes every identifier.
	FormatVersion = "1"

	// Version is the intercase release version.
	Version = "0.1.0"
)
