package hermes

const (
	SubjectResolveRequest = "arbiter.resolve.request"
	SubjectSweepCompleted = "arbiter.sweep.completed"

	StreamName   = "ARBITER_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectOverlapDetected(subjectID string) string {
	return "arbiter.overlap." + subjectID + ".detected"
}

func SubjectDecisionRecorded(subjectID string) string {
	return "arbiter.decision." + subjectID + ".recorded"
}
