package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCorpusNotFound signals that no card corpus exists on disk yet.
	ErrCorpusNotFound = errors.New("card corpus not found")
	// ErrCardNotFound signals a missing card.
	ErrCardNotFound = errors.New("card not found")
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrTransient signals a retryable upstream failure (429/500/503/network/timeout).
	ErrTransient = errors.New("transient upstream error")
	// ErrAnalysisUnavailable signals a missing AI credential at startup.
	ErrAnalysisUnavailable = errors.New("commander analysis unavailable")
	// ErrIngestAborted signals that the ingestion run exceeded its error budget.
	ErrIngestAborted = errors.New("ingestion aborted")
)

// StatusError wraps a non-retryable upstream HTTP status.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d for %s", e.Status, e.URL)
}

// IntegrityError records one card that failed the validation pass.
// Collected and reported, never fatal to the pass itself.
type IntegrityError struct {
	CardID string
	Name   string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("card %s (%s): %s", e.Name, e.CardID, e.Reason)
}
