package directory

import (
	"errors"
	"testing"
)

func TestPendingRegistryDedupesConcurrentRequests(t *testing.T) {
	reg := NewPendingRegistry()

	p1, existed := reg.Start(RequestExplore, NodeID(7))
	if existed {
		t.Fatalf("first Start should not report existed")
	}
	if p1.ID == "" {
		t.Fatalf("expected a non-empty correlation ID")
	}

	p2, existed := reg.Start(RequestExplore, NodeID(7))
	if !existed {
		t.Fatalf("second Start for the same (type, node) should report existed")
	}
	if p2 != p1 {
		t.Fatalf("expected the same handle to be returned, got distinct requests with IDs %q and %q", p1.ID, p2.ID)
	}

	reg.Finish(p1, "ok", nil)
	select {
	case <-p1.Done:
	default:
		t.Fatalf("Finish should close Done")
	}
	if p1.Result != "ok" {
		t.Fatalf("unexpected result: %v", p1.Result)
	}

	p3, existed := reg.Start(RequestExplore, NodeID(7))
	if existed {
		t.Fatalf("after Finish, a new Start for the same (type, node) should not dedup against the finished request")
	}
	if p3.ID == p1.ID {
		t.Fatalf("expected a fresh correlation ID after the previous request finished")
	}
}

func TestPendingRegistryCancel(t *testing.T) {
	reg := NewPendingRegistry()
	p, _ := reg.Start(RequestRemove, NodeID(1))

	cancelErr := errors.New("canceled")
	reg.Cancel(p, cancelErr)

	select {
	case <-p.Done:
	default:
		t.Fatalf("Cancel should close Done")
	}
	if p.Err != cancelErr {
		t.Fatalf("unexpected err: %v", p.Err)
	}

	if got := reg.List(RequestRemove, NodeID(1)); got != nil {
		t.Fatalf("expected no pending requests after Cancel, got %v", got)
	}
}
