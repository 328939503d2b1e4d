package api

import (
	"encoding/json"

	appErrors "github.com/classhub/classhub-go/pkg/errors"
)

// Envelope is the common response contract used by the newer backend
// endpoints: {"data": ..., "success": ..., "message": ...}. Older endpoints
// answer with the bare DTO; callers pick the shape per endpoint.
type Envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
}

// Decode unwraps the envelope into out, surfacing the server message when
// the envelope reports failure.
func (e Envelope) Decode(out interface{}) error {
	if !e.Success {
		return appErrors.Clone(appErrors.ErrValidation, e.Message)
	}
	if out == nil || len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "decode envelope data")
	}
	return nil
}
