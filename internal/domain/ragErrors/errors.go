// Package ragErrors holds the error taxonomy shared by the pipeline and its front ends.
package ragErrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig     Kind = "CONFIG"
	KindIngest     Kind = "INGEST"
	KindEmbedding  Kind = "EMBEDDING"
	KindGeneration Kind = "GENERATION"
	KindIndex      Kind = "INDEX"
)

var (
	ErrMissingCredential = errors.New("api key is not set")
	ErrDocumentNotFound  = errors.New("source document not found")
	ErrNotBuilt          = errors.New("index is not built")
	ErrAlreadyBuilt      = errors.New("index is already built")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrMetricMismatch    = errors.New("similarity metric mismatch")
	ErrModelMismatch     = errors.New("embedding model mismatch")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrEmptyAnswer       = errors.New("model returned an empty answer")
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	// keep the innermost classification
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op string, err error) error     { return newError(KindConfig, op, err) }
func Ingest(op string, err error) error     { return newError(KindIngest, op, err) }
func Embedding(op string, err error) error  { return newError(KindEmbedding, op, err) }
func Generation(op string, err error) error { return newError(KindGeneration, op, err) }
func Index(op string, err error) error      { return newError(KindIndex, op, err) }

// KindOf returns the classification of err, or "" when it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsConfig(err error) bool     { return KindOf(err) == KindConfig }
func IsIngest(err error) bool     { return KindOf(err) == KindIngest }
func IsEmbedding(err error) bool  { return KindOf(err) == KindEmbedding }
func IsGeneration(err error) bool { return KindOf(err) == KindGeneration }
func IsIndex(err error) bool      { return KindOf(err) == KindIndex }
