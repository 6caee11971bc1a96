package errs

import (
	"errors"
	"io/fs"
	"testing"
)

func TestError_IsKindAndCause(t *testing.T) {
	err := E(ErrIO, "index", "/tmp/a.txt", fs.ErrPermission)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected ErrIO in chain: %v", err)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected fs.ErrPermission in chain: %v", err)
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("unexpected ErrInvalidArgument in chain")
	}
	want := `index "/tmp/a.txt": io failure: permission denied`
	if got := err.Error(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestInvariant_Panics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(*Error)
		if !ok {
			t.Fatalf("expected *Error panic, got %T", r)
		}
		if !errors.Is(err, ErrInvariant) {
			t.Fatalf("expected ErrInvariant, got %v", err)
		}
	}()
	Invariant("insert", "duplicate first rune %q", 'a')
}
