package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("time %q out of range", "24:00"), http.StatusBadRequest},
		{"not found", NotFound("token not found"), http.StatusNotFound},
		{"conflict", Conflict("token exists"), http.StatusConflict},
		{"unauthorized", Unauthorized("bad admin key"), http.StatusForbidden},
		{"transient", Transient(errors.New("i/o timeout"), "neis meal"), http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.err); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMarksSurviveWrapping(t *testing.T) {
	base := NotFound("no meal for %s", "2025-03-10")
	wrapped := fmt.Errorf("resolve: %w", base)
	if !IsNotFound(wrapped) {
		t.Fatalf("expected wrapped error to keep NotFound mark")
	}
	if IsTransient(wrapped) {
		t.Fatalf("NotFound must not be classified as transient")
	}

	tok := InvalidToken(errors.New("UNREGISTERED"))
	if !IsInvalidToken(fmt.Errorf("send: %w", tok)) {
		t.Fatalf("expected invalid token mark")
	}
}

func TestMessageMasksInternal(t *testing.T) {
	if got := Message(errors.New("pebble: closed")); got != MsgUnknown {
		t.Fatalf("Message() = %q", got)
	}
	if got := Message(Validation("keywords must not be empty")); got != "keywords must not be empty" {
		t.Fatalf("Message() = %q", got)
	}
	if got := Message(Transient(errors.New("i/o timeout"), "neis meal")); got != MsgUpstreamDown {
		t.Fatalf("Message() = %q", got)
	}
	if Transient(nil, "x") != nil || InvalidToken(nil) != nil {
		t.Fatalf("nil causes must stay nil")
	}
}
