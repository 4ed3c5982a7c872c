package constants

// Graph core constants
const (
	// MaxContextDepth bounds how far context resolution walks from the
	// target node. Longer chains are truncated silently.
	MaxContextDepth = 20

	// DefaultHistoryLimit is the number of undoable records kept per graph
	DefaultHistoryLimit = 50

	// RootSpacing is the horizontal gap between consecutive root nodes
	RootSpacing = 400.0
)

// Fan layout constants, shared by child placement and composite expansion
const (
	FanBaseRadius     = 200.0
	FanRadiusStep     = 30.0
	FanBaseSpreadDeg  = 60.0
	FanSpreadStepDeg  = 15.0
	FanMaxSpreadDeg   = 180.0
	FanRadiusBaseline = 3 // member count at which the radius starts growing
)

// Chat constants
const (
	// DefaultMindMapTitle names maps created without a title
	DefaultMindMapTitle = "Untitled mind map"

	// DefaultNodeTitle names nodes created without a title
	DefaultNodeTitle = "New node"

	// MaxLLMAttempts is how many times a failed completion is tried
	MaxLLMAttempts = 3

	// ValidationMaxTokens caps the completion sent to check new credentials
	ValidationMaxTokens = 10

	// MarkdownPreviewRunes is the message preview length in markdown exports
	MarkdownPreviewRunes = 100
)
