package token

import "testing"

func TestChildFiresAloneLeavesParentLive(t *testing.T) {
	root := New()
	child := root.Child()

	child.Fire()

	if !child.Fired() {
		t.Fatalf("child should be fired")
	}
	if root.Fired() {
		t.Fatalf("firing a child must not fire its parent")
	}
}

func TestParentFiresAllDescendants(t *testing.T) {
	root := New()
	child := root.Child()
	grandchild := child.Child()

	root.Fire()

	if !child.Fired() {
		t.Fatalf("firing parent should fire child")
	}
	if !grandchild.Fired() {
		t.Fatalf("firing parent should fire grandchild")
	}
}

func TestFireIsIdempotent(t *testing.T) {
	root := New()
	root.Fire()
	root.Fire() // must not panic or otherwise misbehave

	if !root.Fired() {
		t.Fatalf("token should remain fired")
	}
}

func TestDoneChannelClosesOnFire(t *testing.T) {
	root := New()
	select {
	case <-root.Done():
		t.Fatalf("done channel should not be closed yet")
	default:
	}

	root.Fire()

	select {
	case <-root.Done():
	default:
		t.Fatalf("done channel should be closed after Fire")
	}
}
