package xmlframe

import "testing"

func TestFramerYieldsCompleteNodes(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte(`<stream:stream><message to="a">hi</message>`))

	node, err := f.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if node != nil {
		t.Fatalf("expected incomplete node to yield nil, got %+v", node)
	}

	f.Feed([]byte(`</message><presence/>`))
	node, err = f.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if node == nil || node.Root.Name.Local != "message" {
		t.Fatalf("expected message node, got %+v", node)
	}

	node, err = f.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if node == nil || node.Root.Name.Local != "presence" {
		t.Fatalf("expected presence node, got %+v", node)
	}

	node, err = f.Next()
	if err != nil || node != nil {
		t.Fatalf("expected no more nodes, got %+v, err=%v", node, err)
	}
}

func TestFramerRejectsMalformedInput(t *testing.T) {
	f := NewFramer()
	f.Feed([]byte(`<stream:stream><message>`))
	f.Feed([]byte(`</presence>`))

	if _, err := f.Next(); err == nil {
		t.Fatalf("expected malformed-input error")
	}
}
