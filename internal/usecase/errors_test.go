package usecase

import (
	"errors"
	"testing"
)

func TestWrapOp(t *testing.T) {
	if got := wrapOp(ErrJournal, "append", nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}

	tests := []struct {
		name  string
		class error
		op    string
		want  string
	}{
		{"backend", ErrBackend, "subscribe", "backend error: subscribe: boom"},
		{"journal", ErrJournal, "list recent", "journal error: list recent: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapOp(tt.class, tt.op, errors.New("boom"))
			if !errors.Is(got, tt.class) {
				t.Fatalf("errors.Is(%v, %v) = false", got, tt.class)
			}
			if got.Error() != tt.want {
				t.Fatalf("message = %q, want %q", got.Error(), tt.want)
			}
		})
	}
}
