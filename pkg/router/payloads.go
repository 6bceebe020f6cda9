package router

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/collabboard/coordinator/pkg/code"
	"github.com/collabboard/coordinator/pkg/types"
)

// Error codes surfaced to a connection in an ERROR envelope, re-exported
// from pkg/code for callers that only know the router's own vocabulary.
const (
	CodeValidationError = code.ValidationError
	CodeNotFound        = code.NotFound
	CodeCreateFailed    = code.CreateFailed
	CodeUpdateFailed    = code.UpdateFailed
	CodeMoveFailed      = code.MoveFailed
	CodeDeleteFailed    = code.DeleteFailed
	CodeConnectFailed   = code.ConnectFailed
)

const (
	maxTitleLen       = 500
	maxDescriptionLen = 5000
	maxReplaySize     = 500
)

// validationError is a private helper error, always surfaced as
// CodeValidationError and never broadcast.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return code.ErrValidation }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// decodePayload re-marshals an already-decoded JSON value (typically a
// map[string]any produced by decoding an Envelope) into a typed struct.
// This keeps Envelope.Payload transport-agnostic (any) while letting
// each handler work with a concrete type.
func decodePayload(raw any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return invalid("malformed payload: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return invalid("malformed payload: %v", err)
	}
	return nil
}

// createPayload is the validated TASK_CREATE payload.
type createPayload struct {
	ID           string         `json:"id"`
	ColumnID     types.ColumnID `json:"columnId"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	CreatorName  string         `json:"creatorName"`
	CreatorColor string         `json:"creatorColor"`
}

func parseCreate(raw any) (createPayload, error) {
	var p createPayload
	if err := decodePayload(raw, &p); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, invalid("id is required")
	}
	if !types.ValidColumn(p.ColumnID) {
		return p, invalid("columnId %q is not a board column", p.ColumnID)
	}
	if err := validateTitle(p.Title); err != nil {
		return p, err
	}
	if err := validateDescription(p.Description); err != nil {
		return p, err
	}
	return p, nil
}

// updatePayload is the validated TASK_UPDATE payload. Title and
// Description are nil when the client did not send that field.
type updatePayload struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Version     int     `json:"version"`
}

func parseUpdate(raw any) (updatePayload, error) {
	var p updatePayload
	if err := decodePayload(raw, &p); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, invalid("id is required")
	}
	if p.Title == nil && p.Description == nil {
		return p, invalid("at least one of title/description is required")
	}
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return p, err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return p, err
		}
	}
	if p.Version <= 0 {
		return p, invalid("version must be a positive integer")
	}
	return p, nil
}

// movePayload is the validated TASK_MOVE payload.
type movePayload struct {
	ID       string         `json:"id"`
	ColumnID types.ColumnID `json:"columnId"`
	Order    float64        `json:"order"`
	Version  int            `json:"version"`
}

func parseMove(raw any) (movePayload, error) {
	var p movePayload
	if err := decodePayload(raw, &p); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, invalid("id is required")
	}
	if !types.ValidColumn(p.ColumnID) {
		return p, invalid("columnId %q is not a board column", p.ColumnID)
	}
	if err := validateOrder(p.Order); err != nil {
		return p, err
	}
	if p.Version <= 0 {
		return p, invalid("version must be a positive integer")
	}
	return p, nil
}

// deletePayload is the validated TASK_DELETE payload.
type deletePayload struct {
	ID string `json:"id"`
}

func parseDelete(raw any) (deletePayload, error) {
	var p deletePayload
	if err := decodePayload(raw, &p); err != nil {
		return p, err
	}
	if p.ID == "" {
		return p, invalid("id is required")
	}
	return p, nil
}

// presencePayload is the validated PRESENCE_UPDATE payload.
type presencePayload struct {
	Status types.PresenceStatus `json:"status"`
	TaskID string               `json:"taskId"`
}

func parsePresence(raw any) (presencePayload, error) {
	var p presencePayload
	if err := decodePayload(raw, &p); err != nil {
		return p, err
	}
	if p.Status != types.PresenceEditing && p.Status != types.PresenceIdle {
		return p, invalid("status %q is not editing|idle", p.Status)
	}
	return p, nil
}

// replayEntry is one operation in a REPLAY_OPS payload.
type replayEntry struct {
	Type            string         `json:"type"`
	Payload         map[string]any `json:"payload"`
	ClientTimestamp int64          `json:"clientTimestamp"`
}

func parseReplay(raw any) ([]replayEntry, error) {
	var entries []replayEntry
	if err := decodePayload(raw, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 || len(entries) > maxReplaySize {
		return nil, invalid("replay size must be between 1 and %d", maxReplaySize)
	}
	for _, e := range entries {
		if e.ClientTimestamp <= 0 {
			return nil, invalid("clientTimestamp must be a positive integer")
		}
	}
	return entries, nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < 1 || n > maxTitleLen {
		return invalid("title length must be between 1 and %d", maxTitleLen)
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > maxDescriptionLen {
		return invalid("description length must be at most %d", maxDescriptionLen)
	}
	return nil
}

func validateOrder(o float64) error {
	if math.IsNaN(o) || math.IsInf(o, 0) {
		return invalid("order must be finite")
	}
	return nil
}
