package events

import (
	"encoding/json"
	"testing"
)

// The payload field names are a contract with downstream consumers.
func TestUserEvent_WireShape(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(UserEvent{EventType: TypeUserCreated, UserID: 5, Email: "a@b.c"})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"EventType":"UserCreated","UserId":5,"Email":"a@b.c"}`
	if string(b) != want {
		t.Fatalf("payload mismatch:\n got %s\nwant %s", b, want)
	}
}

func TestUserEvent_EmailOmittedWhenEmpty(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(UserEvent{EventType: TypeUserDeleted, UserID: 5})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"EventType":"UserDeleted","UserId":5}`
	if string(b) != want {
		t.Fatalf("payload mismatch:\n got %s\nwant %s", b, want)
	}
}
