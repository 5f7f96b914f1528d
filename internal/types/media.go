package types

// MediaImage is an optional conditioning image for video generation.
type MediaImage struct {
	Format string // "jpeg" or "png"
	Base64 string
}

// MediaParams carries the parameters of one image or video generation
// request. Zero values mean "unset"; the media formatter applies the
// per-family defaults.
type MediaParams struct {
	Model          string
	Prompt         string
	NegativePrompt string
	AspectRatio    string // Stability, e.g. "1:1"
	Size           string // "WxH" for Titan / Nova Canvas
	OutputFormat   string
	Quality        string // "standard" or "premium"
	Style          string
	CfgScale       float64
	Seed           int
	NumberOfImages int
	Images         []MediaImage
	S3OutputPath   string // video output bucket
}

// Video job status values, exactly as reported by the backend.
const (
	StatusCompleted  = "Completed"
	StatusInProgress = "InProgress"
	StatusFailed     = "Failed"
)

// S3Output locates the artifacts of a completed video job.
type S3Output struct {
	ManifestPath string
	VideoPath    string
}

// VideoStatus is the normalized state of an asynchronous video job, keyed by
// its invocation handle. Terminal at Completed or Failed.
type VideoStatus struct {
	InvocationArn  string
	Status         string
	S3Output       S3Output
	Error          string
	CompletionTime string
	RequestTime    string
}
