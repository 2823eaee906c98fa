package queue

// AssessmentJob asks a worker to run the pipeline for one pending assessment.
type AssessmentJob struct {
	AssessmentID int64
	SessionID    int64
	TraceID      *string
	Attempt      int
}
