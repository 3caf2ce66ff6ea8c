package sub

import (
	"testing"

	"relayd.dev/pkg/filter"
)

func TestAddRespectsMax(t *testing.T) {
	r := New(1)
	if _, err := r.Add("a", filter.S{filter.New()}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := r.Add("b", filter.S{filter.New()}); err == nil {
		t.Fatal("expected second add to exceed the limit")
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	r := New(10)
	if _, err := r.Add("a", filter.S{filter.New()}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := r.Add("a", filter.S{filter.New()}); err == nil {
		t.Fatal("expected re-adding the same id to fail with ErrDuplicate")
	}
	// freed after Remove, matching the CLOSE-then-REQ round trip (spec.md §8).
	if err := r.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Add("a", filter.S{filter.New()}); err != nil {
		t.Fatalf("re-add after remove should succeed, got %v", err)
	}
}

func TestRemoveUnknown(t *testing.T) {
	r := New(10)
	if err := r.Remove("nope"); err == nil {
		t.Fatal("expected removing an unregistered id to fail")
	}
}

func TestSnapshotOnlyReturnsLive(t *testing.T) {
	r := New(10)
	r.Add("a", filter.S{filter.New()})
	matchAll := func(filter.S) bool { return true }
	if got := r.Snapshot(matchAll); len(got) != 0 {
		t.Fatalf("expected no live subs before MarkLive, got %d", len(got))
	}
	r.MarkLive("a")
	if got := r.Snapshot(matchAll); len(got) != 1 {
		t.Fatalf("expected 1 live sub after MarkLive, got %d", len(got))
	}
}

func TestSnapshotFiltersByMatch(t *testing.T) {
	r := New(10)
	r.Add("a", filter.S{filter.New()})
	r.MarkLive("a")
	noMatch := func(filter.S) bool { return false }
	if got := r.Snapshot(noMatch); len(got) != 0 {
		t.Fatalf("expected matcher to exclude all, got %d", len(got))
	}
}

func TestRemoveAndRemoveAll(t *testing.T) {
	r := New(10)
	r.Add("a", filter.S{filter.New()})
	r.Add("b", filter.S{filter.New()})
	r.Remove("a")
	if r.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", r.Len())
	}
	r.RemoveAll()
	if r.Len() != 0 {
		t.Fatalf("expected 0 remaining after RemoveAll, got %d", r.Len())
	}
}
