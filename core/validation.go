// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateSource validates a Source before it is resolved.
//
// Validation rules:
//   - Q&A pairs need a non-empty question and answer
//   - every other source needs a non-empty identifier
//   - a non-empty Kind must be a supported kind
func ValidateSource(source Source) error {
	if source.Kind != "" && !source.Kind.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidSource, ErrUnsupportedSourceKind, source.Kind)
	}

	if source.Kind == KindQnAPair {
		if strings.TrimSpace(source.Question) == "" || strings.TrimSpace(source.Answer) == "" {
			return fmt.Errorf("%w: question and answer are required", ErrInvalidSource)
		}
		return nil
	}

	if strings.TrimSpace(source.Identifier) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSource, ErrEmptyContent)
	}
	return nil
}

// ValidateEntry validates an Entry before it is written to a store.
//
// Validation rules:
//   - ID and Text must not be empty
//   - Vector length must equal dimension
//
// NOT validated:
//   - Metadata (scope keys are checked by the caller against its own scope)
func ValidateEntry(entry *Entry, dimension int) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if entry.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidEntry)
	}

	if entry.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyContent)
	}

	if len(entry.Vector) != dimension {
		return fmt.Errorf("%w: %w: entry %s has %d, want %d",
			ErrInvalidEntry, ErrDimensionMismatch, entry.ID, len(entry.Vector), dimension)
	}

	return nil
}

// ValidateScopedMetadata checks that metadata carries every key of the scope
// with the scope's value.
func ValidateScopedMetadata(meta Metadata, scope Scope) error {
	if !scope.Matches(meta) {
		return fmt.Errorf("%w: metadata does not satisfy scope %s", ErrInvalidEntry, scope)
	}
	return nil
}
