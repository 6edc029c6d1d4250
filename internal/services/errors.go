package services

import "fmt"

// ValidationError rejects a request before any money moves.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// FundingError marks a funding flow that failed partway through. Stage names
// the step that failed so handlers and logs can tell a pre-payment failure
// from a post-payment one.
type FundingError struct {
	Stage string
	Err   error
}

func (e *FundingError) Error() string {
	return fmt.Sprintf("funding %s failed: %v", e.Stage, e.Err)
}

func (e *FundingError) Unwrap() error { return e.Err }
