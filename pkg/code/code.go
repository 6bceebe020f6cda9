/*
Package code is the coordinator's error taxonomy: a small set of
sentinel errors that any package can wrap its own errors around with
fmt.Errorf("...: %w", err), plus CodeOf to recover the taxonomy string
the event router and HTTP handlers surface to a client. Internal
packages may also keep their own local sentinels that wrap none of
these: task.ErrNotFound is one, and pkg/router checks it directly with
errors.Is instead of through CodeOf.
*/
package code

import "errors"

// Sentinel errors covering the outcomes spec §7 classifies.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrCreateFailed  = errors.New("create failed")
	ErrUpdateFailed  = errors.New("update failed")
	ErrMoveFailed    = errors.New("move failed")
	ErrDeleteFailed  = errors.New("delete failed")
	ErrConnectFailed = errors.New("connect failed")
)

// String codes carried in an ERROR envelope's "code" field.
const (
	ValidationError = "VALIDATION_ERROR"
	NotFound        = "NOT_FOUND"
	CreateFailed    = "CREATE_FAILED"
	UpdateFailed    = "UPDATE_FAILED"
	MoveFailed      = "MOVE_FAILED"
	DeleteFailed    = "DELETE_FAILED"
	ConnectFailed   = "CONNECT_FAILED"
)

// CodeOf maps err to its taxonomy string by walking its wrap chain
// against the sentinels above. An error that wraps none of them is
// treated as a validation error, the safest default for an unexpected
// internal failure surfaced to a client.
func CodeOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrCreateFailed):
		return CreateFailed
	case errors.Is(err, ErrUpdateFailed):
		return UpdateFailed
	case errors.Is(err, ErrMoveFailed):
		return MoveFailed
	case errors.Is(err, ErrDeleteFailed):
		return DeleteFailed
	case errors.Is(err, ErrConnectFailed):
		return ConnectFailed
	default:
		return ValidationError
	}
}
