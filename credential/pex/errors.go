package pex

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDefinition is returned when a definition cannot be compiled.
	ErrMalformedDefinition = errors.New("malformed presentation definition")
	// ErrUnsatisfied matches every UnsatisfiedRequirementError.
	ErrUnsatisfied = errors.New("presentation definition not satisfied")
	// ErrMalformedSubmission is returned when a presentation submission cannot be evaluated.
	ErrMalformedSubmission = errors.New("malformed presentation submission")
)

// UnsatisfiedRequirementError names the requirement that the candidate
// credentials could not satisfy.
type UnsatisfiedRequirementError struct {
	DefinitionID string
	// Requirement is the name of the failing top-level requirement, or its
	// position when it has no name.
	Requirement string
	// Group is the group of the innermost failing requirement, if any.
	Group  string
	Reason string
}

func (e *UnsatisfiedRequirementError) Error() string {
	msg := fmt.Sprintf("presentation definition %q not satisfied", e.DefinitionID)

	if e.Requirement != "" {
		msg += fmt.Sprintf(": requirement %s", e.Requirement)
	}

	if e.Group != "" {
		msg += fmt.Sprintf(" (group %s)", e.Group)
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	return msg
}

func (e *UnsatisfiedRequirementError) Is(target error) bool {
	return target == ErrUnsatisfied
}

// MalformedCredentialError records a candidate that could not be decoded.
// Such candidates are skipped, never fatal.
type MalformedCredentialError struct {
	Index int
	Err   error
}

func (e *MalformedCredentialError) Error() string {
	return fmt.Sprintf("credential %d is malformed: %v", e.Index, e.Err)
}

func (e *MalformedCredentialError) Unwrap() error {
	return e.Err
}
