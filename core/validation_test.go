package core

import (
	"errors"
	"testing"
)

func TestValidateEntry(t *testing.T) {
	tests := []struct {
		name    string
		entry   *Entry
		wantErr error
	}{
		{
			name:    "valid entry",
			entry:   &Entry{ID: "a", Text: "hello", Vector: []float32{1, 2, 3}},
			wantErr: nil,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "empty id",
			entry:   &Entry{Text: "hello", Vector: []float32{1, 2, 3}},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "empty text",
			entry:   &Entry{ID: "a", Vector: []float32{1, 2, 3}},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "short vector",
			entry:   &Entry{ID: "a", Text: "hello", Vector: []float32{1, 2}},
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "missing vector",
			entry:   &Entry{ID: "a", Text: "hello"},
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntry(tt.entry, 3)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEntry() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEntry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSource(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		wantErr error
	}{
		{name: "url", source: NewSource("https://example.com", ""), wantErr: nil},
		{name: "text", source: TextSource("hello"), wantErr: nil},
		{name: "qna", source: QnASource("why?", "because"), wantErr: nil},
		{name: "empty identifier", source: NewSource("  ", KindWebPage), wantErr: ErrEmptyContent},
		{name: "qna without answer", source: QnASource("why?", ""), wantErr: ErrInvalidSource},
		{name: "unknown kind", source: NewSource("x", Kind("notion")), wantErr: ErrUnsupportedSourceKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSource(tt.source)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSource() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSource() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScope(t *testing.T) {
	t.Run("validate", func(t *testing.T) {
		if err := (Scope{}).Validate(); !errors.Is(err, ErrMissingScope) {
			t.Errorf("empty scope error = %v, want ErrMissingScope", err)
		}
		if err := (Scope{"user": ""}).Validate(); !errors.Is(err, ErrMissingScope) {
			t.Errorf("empty value error = %v, want ErrMissingScope", err)
		}
		if err := (Scope{"user": "1"}).Validate(); err != nil {
			t.Errorf("valid scope error = %v", err)
		}
	})

	t.Run("matches", func(t *testing.T) {
		meta := Metadata{"user": "1", "file": "10", "url": "local"}
		if !(Scope{"user": "1"}).Matches(meta) {
			t.Errorf("subset scope should match")
		}
		if !(Scope{"user": "1", "file": "10"}).Matches(meta) {
			t.Errorf("exact scope should match")
		}
		if (Scope{"user": "2"}).Matches(meta) {
			t.Errorf("different value should not match")
		}
		if (Scope{"agent": "1"}).Matches(meta) {
			t.Errorf("missing key should not match")
		}
	})

	t.Run("with does not modify receiver", func(t *testing.T) {
		s := Scope{"user": "1"}
		w := s.With("file", "10")
		if len(s) != 1 || w["file"] != "10" || w["user"] != "1" {
			t.Errorf("With() = %v, receiver = %v", w, s)
		}
	})

	t.Run("parse", func(t *testing.T) {
		s, err := ParseScope([]string{"user=1", " file = 10 "})
		if err != nil {
			t.Fatalf("ParseScope() error = %v", err)
		}
		if s["user"] != "1" || s["file"] != "10" {
			t.Errorf("ParseScope() = %v", s)
		}
		if s.String() != "file=10,user=1" {
			t.Errorf("String() = %q", s.String())
		}
		if _, err := ParseScope([]string{"bad"}); err == nil {
			t.Errorf("ParseScope() accepted a pair without '='")
		}
	})
}

func TestBatchItemError(t *testing.T) {
	cause := errors.New("404 not found")
	err := NewBatchItemError("https://example.com/x", cause)

	if !errors.Is(err, ErrBatchItem) {
		t.Errorf("BatchItemError should match ErrBatchItem")
	}
	if !errors.Is(err, cause) {
		t.Errorf("BatchItemError should match its cause")
	}
}
