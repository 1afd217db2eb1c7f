package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestHasCode(t *testing.T) {
	base := stderrors.New("connection refused")

	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{
			name: "Direct app error",
			err:  New(ErrCodePolicyRejection, "user is banned"),
			code: ErrCodePolicyRejection,
			want: true,
		},
		{
			name: "Wrapped by fmt",
			err:  fmt.Errorf("join: %w", Wrap(base, ErrCodeCollaboratorFailure, "store unavailable")),
			code: ErrCodeCollaboratorFailure,
			want: true,
		},
		{
			name: "Different code",
			err:  New(ErrCodeNoActiveSession, "not chatting"),
			code: ErrCodePolicyRejection,
			want: false,
		},
		{
			name: "Plain error",
			err:  base,
			code: ErrCodeInternalError,
			want: false,
		},
		{
			name: "Nil error",
			err:  nil,
			code: "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientMessage(t *testing.T) {
	if got := ClientMessage(New(ErrCodeNoActiveSession, "you are not in a chat")); got != "you are not in a chat" {
		t.Errorf("ClientMessage() = %q", got)
	}
	if got := ClientMessage(stderrors.New("pq: deadlock detected")); got != "internal error" {
		t.Errorf("ClientMessage() leaked internal error text: %q", got)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	base := stderrors.New("timeout")
	err := Wrap(base, ErrCodeCollaboratorFailure, "moderation failed")
	if !stderrors.Is(err, base) {
		t.Error("expected wrapped error to match base with errors.Is")
	}
}
