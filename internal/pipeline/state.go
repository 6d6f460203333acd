package pipeline

// State names the stage a run is currently in. Transitions are linear;
// Aborted is terminal and only reachable from Generating,
// ExtractingScenes, or Assembling.
type State string

const (
	StateReceived         State = "received"
	StateGenerating       State = "generating"
	StateFiltering        State = "filtering"
	StateExtractingScenes State = "extracting_scenes"
	StateIllustrating     State = "illustrating"
	StateAssembling       State = "assembling"
	StateCompleted        State = "completed"
	StateAborted          State = "aborted"
)

// FilterOutcome is the terminal state of the content filtering loop.
type FilterOutcome string

const (
	FilterClean       FilterOutcome = "clean"
	FilterWithWarning FilterOutcome = "filtered_with_warning"
)
