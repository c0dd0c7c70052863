package models

import "testing"

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Queued", true},
		{"InProgress", true},
		{" Completed ", true},
		{"Done", false},
		{"queued", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, ok := ParseStatus(tt.in); ok != tt.want {
			t.Errorf("ParseStatus(%q) ok = %v, want %v", tt.in, ok, tt.want)
		}
	}
}

func TestAuthorLabelFallback(t *testing.T) {
	tests := []struct {
		display, name, email, want string
	}{
		{"Ana", "Ana Smith", "ana@example.com", "Ana"},
		{"", "Ana Smith", "ana@example.com", "Ana Smith"},
		{" ", "", "ana@example.com", "ana@example.com"},
		{"", "", "", "Anonymous"},
	}
	for _, tt := range tests {
		if got := AuthorLabel(tt.display, tt.name, tt.email); got != tt.want {
			t.Errorf("AuthorLabel(%q,%q,%q) = %q, want %q", tt.display, tt.name, tt.email, got, tt.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Ticket{ID: "t1", Images: []Image{{ID: "i1"}}, Comments: []Comment{{ID: "c1"}}}
	c := orig.Clone()
	c.Images[0].ID = "changed"
	c.Comments = append(c.Comments, Comment{ID: "c2"})
	if orig.Images[0].ID != "i1" || len(orig.Comments) != 1 {
		t.Fatalf("clone shares state with original: %+v", orig)
	}
}
