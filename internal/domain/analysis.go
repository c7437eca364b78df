package domain

// AnalysisResponse is the opaque reply of the external analysis service.
// Payload keeps the raw response body so that variable lookups do not
// depend on the upstream schema beyond the fields they probe.
type AnalysisResponse struct {
	ConversationID string
	MessageID      string
	Answer         string
	CreatedAt      int64
	Payload        []byte
}

// Variable is one extracted analysis variable. Found distinguishes
// "looked up and found null" (Found=true, Value=nil) from absent
// (Found=false). Source names the lookup location that yielded the value.
type Variable struct {
	Name   string
	Value  any
	Found  bool
	Source string
}

// AnalysisResult is the caller-facing outcome of one analysis run.
type AnalysisResult struct {
	ProcessingID   ProcessingID
	ConversationID string
	MessageID      string
	Answer         string
	CreatedAt      int64
	Variables      map[string]Variable
}
