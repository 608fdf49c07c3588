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
	"errors"
	"fmt"
)

// Pipeline errors
var (
	// ErrUnsupportedSourceKind indicates no loader/chunker matches a source and no override was given.
	ErrUnsupportedSourceKind = errors.New("unsupported source kind")

	// ErrLoad indicates a single source could not be fetched or read.
	ErrLoad = errors.New("load failed")

	// ErrBatchItem marks a failure of one item inside a fan-out batch.
	ErrBatchItem = errors.New("batch item failed")

	// ErrConfiguration indicates missing or invalid configuration, including dimension mismatches.
	ErrConfiguration = errors.New("configuration error")

	// ErrDependencyUnavailable indicates an optional backend integration is not available.
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrEmbedding indicates an embedding backend failed.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStoreConnection indicates the vector store could not be reached.
	ErrStoreConnection = errors.New("store connection failed")

	// ErrStoreWrite indicates a vector store write was rejected.
	ErrStoreWrite = errors.New("store write failed")

	// ErrStoreQuery indicates a vector store read was rejected.
	ErrStoreQuery = errors.New("store query failed")
)

// Domain validation errors
var (
	// ErrMissingScope indicates an operation was attempted without a scope filter.
	ErrMissingScope = errors.New("scope filter required")

	// ErrDimensionMismatch indicates a vector length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyContent indicates the content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidEntry indicates an Entry failed validation.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrInvalidSource indicates a Source failed validation.
	ErrInvalidSource = errors.New("invalid source")
)

// BatchItemError records the failure of one item of a batch load.
// It matches both ErrBatchItem and the underlying cause with errors.Is.
type BatchItemError struct {
	Item string
	Err  error
}

// NewBatchItemError creates a BatchItemError.
func NewBatchItemError(item string, err error) *BatchItemError {
	return &BatchItemError{Item: item, Err: err}
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBatchItem, e.Item, e.Err)
}

func (e *BatchItemError) Unwrap() []error {
	return []error{ErrBatchItem, e.Err}
}
