package errctx

import (
	"fmt"

	"github.com/evalgo-org/couchkit/pkg/docid"
)

// ErrorMapInfo carries the server-supplied error-map detail for a response,
// when the server returned one (teacher equivalent: CouchDBError.ErrorType).
type ErrorMapInfo struct {
	Code    uint16
	Name    string
	Desc    string
	Attrs   []string
}

// Context is the structured payload attached to every Error returned from
// the dispatcher, the compound-operation fan-out, and the range-scan
// orchestrator. Fields mirror what a caller needs to retry, log, or render
// the failure without re-deriving it from the wire response.
type Context struct {
	OperationID string
	Category    Category
	Code        Code

	LastDispatchedTo   string
	LastDispatchedFrom string
	RetryAttempts      int
	RetryReasons       []string

	ID     docid.ID
	Opaque uint32

	StatusCode        *uint16
	ErrorMapInfo      *ErrorMapInfo
	CAS               *uint64
	ExtendedErrorInfo *string

	// Sub-document extensions; zero-valued for whole-document operations.
	FirstErrorPath  string
	FirstErrorIndex int
	Deleted         bool
}

// Error wraps a Context and satisfies the error interface. Its Error()
// string is deliberately short — callers inspect Ctx for detail rather than
// parse the message.
type Error struct {
	Ctx Context
}

func (e *Error) Error() string {
	if e.Ctx.ID.Key != "" {
		return fmt.Sprintf("%s: %s (id=%s, op=%s)", e.Ctx.Category, e.Ctx.Code, e.Ctx.ID, e.Ctx.OperationID)
	}
	return fmt.Sprintf("%s: %s (op=%s)", e.Ctx.Category, e.Ctx.Code, e.Ctx.OperationID)
}

// New builds an Error for code, deriving its Category automatically.
func New(code Code, id docid.ID, operationID string) *Error {
	return &Error{Ctx: Context{
		OperationID: operationID,
		Category:    CategoryOf(code),
		Code:        code,
		ID:          id,
	}}
}

// WithRetry appends one retry attempt and its reason, returning e for
// chaining at each dispatch loop iteration.
func (e *Error) WithRetry(dispatchedTo, reason string) *Error {
	e.Ctx.RetryAttempts++
	e.Ctx.RetryReasons = append(e.Ctx.RetryReasons, reason)
	e.Ctx.LastDispatchedTo = dispatchedTo
	return e
}

// Is reports whether err is an *Error carrying code. Plays the role the
// teacher's CouchDBError.IsConflict/IsNotFound/IsUnauthorized helpers play,
// generalized to the full taxonomy.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Ctx.Code == code
}

func (e *Error) IsNotFound() bool {
	return e.Ctx.Code == CodeDocumentNotFound || e.Ctx.Code == CodeBucketNotFound ||
		e.Ctx.Code == CodeScopeNotFound || e.Ctx.Code == CodeCollectionNotFound ||
		e.Ctx.Code == CodePathNotFound || e.Ctx.Code == CodeIndexNotFound
}

func (e *Error) IsCASMismatch() bool {
	return e.Ctx.Code == CodeCasMismatch
}

func (e *Error) IsDocumentExists() bool {
	return e.Ctx.Code == CodeDocumentExists
}

func (e *Error) IsTemporary() bool {
	switch e.Ctx.Code {
	case CodeTemporaryFailure, CodeServiceUnavailable, CodeDocumentLocked,
		CodeDurabilityWriteInProg, CodeDurabilityRecommitProg, CodeResolveFailure:
		return true
	default:
		return false
	}
}

func (e *Error) IsTimeout() bool {
	return e.Ctx.Code == CodeAmbiguousTimeout || e.Ctx.Code == CodeUnambiguousTimeout
}

func (e *Error) IsAmbiguous() bool {
	return e.Ctx.Code == CodeAmbiguousTimeout || e.Ctx.Code == CodeDurabilityAmbiguous
}

// IsSubdocDeletedSuccess reports the S6-style edge case: a sub-document
// any-replica lookup that resolves against a tombstoned document carrying
// only extended attributes is a success, not CodeDocumentNotFound.
func (e *Error) IsSubdocDeletedSuccess() bool {
	return e.Ctx.Deleted && e.Ctx.Code == CodeSuccess
}
