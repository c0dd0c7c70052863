package validation

import (
	"errors"
	"strings"
	"testing"

	"featureboard/internal/apperr"
)

type ticketIn struct {
	Title       string `json:"title" validate:"notblank,max=10"`
	Description string `json:"description" validate:"max=20"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      ticketIn
		wantErr string
	}{
		{"valid", ticketIn{Title: "Dark mode"}, ""},
		{"blank title", ticketIn{Title: "   "}, "title is required"},
		{"long title", ticketIn{Title: strings.Repeat("x", 11)}, "title must be at most 10 characters"},
		{"bad email", ticketIn{Title: "ok", Email: "nope"}, "email must be a valid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v", err)
				}
				return
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("Struct() error = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Struct() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFieldsListsEveryFailure(t *testing.T) {
	fields := Fields(&ticketIn{Description: strings.Repeat("x", 21)})
	if len(fields) != 2 {
		t.Fatalf("Fields() = %+v, want 2 failures", fields)
	}
	if fields[0].Field != "title" || fields[1].Field != "description" {
		t.Errorf("fields = %+v", fields)
	}
}
