package adopted

import (
	"testing"

	"github.com/infinoted/libinfinity/internal/buffer"
	"github.com/infinoted/libinfinity/internal/chunk"
	"github.com/infinoted/libinfinity/internal/operation"
	"github.com/infinoted/libinfinity/internal/user"
)

func TestExecuteAdvancesVectorOnlyWhenBufferAffected(t *testing.T) {
	buf := buffer.New()
	alg := New(buf, user.NewTable())

	_, _, err := alg.Execute(1, &operation.Insert{Pos: 0, Content: chunk.New(1, "hi")})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if alg.Vector().Get(1) != 1 {
		t.Fatalf("expected vector bump after buffer-affecting op")
	}

	_, _, err = alg.Execute(1, &operation.Move{Caret: 2})
	if err != nil {
		t.Fatalf("execute move: %v", err)
	}
	if alg.Vector().Get(1) != 1 {
		t.Fatalf("move must not bump vector")
	}
}

func TestReceiveRejectsOutOfSequence(t *testing.T) {
	buf := buffer.New()
	alg := New(buf, user.NewTable())

	badVector := alg.Vector()
	badVector.Add(2, 5)
	_, err := alg.Receive(2, badVector, &operation.Insert{Pos: 0, Content: chunk.New(2, "x")})
	if err == nil {
		t.Fatalf("expected out-of-sequence error")
	}
}

func TestConcurrentExecuteAndReceiveConverge(t *testing.T) {
	local := buffer.New()
	remote := buffer.New()
	localAlg := New(local, user.NewTable())
	remoteAlg := New(remote, user.NewTable())

	base := &operation.Insert{Pos: 0, Content: chunk.New(0, "abcdefghij")}
	if _, _, err := localAlg.Execute(0, base.Copy()); err != nil {
		t.Fatalf("seed local: %v", err)
	}
	if _, _, err := remoteAlg.Execute(0, base.Copy()); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	v0 := localAlg.Vector()

	localExec, localSent, err := localAlg.Execute(1, &operation.Insert{Pos: 4, Content: chunk.New(1, "XY")})
	if err != nil {
		t.Fatalf("local execute: %v", err)
	}
	_ = localSent

	remoteExec, remoteSent, err := remoteAlg.Execute(2, &operation.Delete{Pos: 2, Len: 4})
	if err != nil {
		t.Fatalf("remote execute: %v", err)
	}
	_ = remoteSent

	if _, err := localAlg.Receive(2, v0, remoteExec); err != nil {
		t.Fatalf("local receive remote: %v", err)
	}
	if _, err := remoteAlg.Receive(1, v0, localExec); err != nil {
		t.Fatalf("remote receive local: %v", err)
	}

	if local.Content().String() != remote.Content().String() {
		t.Fatalf("diverged: %q != %q", local.Content().String(), remote.Content().String())
	}
}
