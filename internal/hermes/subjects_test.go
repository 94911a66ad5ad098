package hermes

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSubjects(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SubjectOverlapDetected("acme"), "arbiter.overlap.acme.detected"},
		{SubjectDecisionRecorded("acme"), "arbiter.decision.acme.recorded"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, tt.got)
		}
	}
	if !strings.HasPrefix(SubjectSweepCompleted, "arbiter.sweep.") {
		t.Errorf("sweep subject %s is outside the stream", SubjectSweepCompleted)
	}
	if _, err := time.ParseDuration(StreamMaxAge); err != nil {
		t.Errorf("invalid stream max age: %v", err)
	}
}

func TestResolveRequestEventOptionalFields(t *testing.T) {
	var evt ResolveRequestEvent
	if err := json.Unmarshal([]byte(`{}`), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.Strategy != "" || evt.Source != "" {
		t.Errorf("expected empty event, got %+v", evt)
	}

	data, err := json.Marshal(ResolveRequestEvent{Strategy: "BEST_FIT"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"strategy":"BEST_FIT"}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}
