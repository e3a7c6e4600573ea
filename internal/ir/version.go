package ir

// Version constants for the tree schema and the compiler core.
const (
	// TreeVersion is the program tree schema version.
	TreeVersion = "1"

	// CompilerVersion is the ownc core version.
	CompilerVersion = "0.1.0"
)
