package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a node or contribution does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidExpansionTarget is returned when expansion is requested for a
	// node that is not a base (level 1) node.
	ErrInvalidExpansionTarget = errors.New("invalid expansion target")

	// ErrBadRequest is the class of caller errors. The more specific errors
	// below wrap it so callers can test for the class with errors.Is.
	ErrBadRequest = errors.New("bad request")

	ErrUnknownFamily       = fmt.Errorf("%w: unknown context family", ErrBadRequest)
	ErrInvalidNode         = fmt.Errorf("%w: invalid node", ErrBadRequest)
	ErrInvalidContribution = fmt.Errorf("%w: invalid contribution", ErrBadRequest)
	ErrInvalidContext      = fmt.Errorf("%w: invalid context", ErrBadRequest)

	// ErrInvariantViolation reports divergence between the node table, the
	// context index and the stats counters.
	ErrInvariantViolation = errors.New("invariant violation")
)
