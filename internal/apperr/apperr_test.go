package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("title is required"), http.StatusBadRequest},
		{Auth("sign in"), http.StatusUnauthorized},
		{Forbidden("admins only"), http.StatusForbidden},
		{NotFound("ticket not found"), http.StatusNotFound},
		{Conflict("cannot remove the last admin"), http.StatusConflict},
		{Upload(errors.New("disk"), "promote failed"), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", Conflict("dup")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFromStatusRoundTrip(t *testing.T) {
	for _, kind := range []error{ErrValidation, ErrAuth, ErrForbidden, ErrNotFound, ErrConflict} {
		code := Status(&Error{Kind: kind})
		if got := FromStatus(code); got != kind {
			t.Errorf("FromStatus(%d) = %v, want %v", code, got, kind)
		}
	}
	if got := FromStatus(http.StatusServiceUnavailable); got != ErrTransport {
		t.Errorf("FromStatus(503) = %v, want ErrTransport", got)
	}
}

func TestMessageHidesUnkindedErrors(t *testing.T) {
	if got := Message(errors.New("pq: relation does not exist")); got != "internal error" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message(Upload(errors.New("io"), "could not store image")); got != "could not store image" {
		t.Errorf("Message() = %q", got)
	}
	err := Upload(errors.New("io"), "could not store image")
	if !errors.Is(err, ErrUpload) {
		t.Error("expected ErrUpload kind")
	}
}
