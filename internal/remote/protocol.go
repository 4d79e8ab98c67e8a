// Package remote exposes an interpreter over WebSocket. Each request
// becomes a call or eval queued on the interpreter's owning goroutine, and
// responses are written as their results resolve, so one connection may
// have many requests in flight.
package remote

import (
	"errors"

	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
)

// MaxMessageBytes caps a single request frame.
const MaxMessageBytes = 1 << 20

// Operations.
const (
	OpCall = "call"
	OpEval = "eval"
)

// Eval modes on the wire.
const (
	ModeDirect = "direct"
	ModeGlobal = "global"
)

// Request is one client message.
type Request struct {
	ID     string        `json:"id"`
	Op     string        `json:"op"`
	Args   []codec.Value `json:"args,omitempty"`
	Script string        `json:"script,omitempty"`
	Mode   string        `json:"mode,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     string       `json:"id"`
	Result *codec.Value `json:"result,omitempty"`
	Error  *ErrorBody   `json:"error,omitempty"`
}

// ErrorBody describes a failed request. Kind is the bridge error kind
// name, or "error" for failures outside the bridge.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorBody(err error) *ErrorBody {
	var e *core.Error
	if errors.As(err, &e) {
		return &ErrorBody{Kind: e.Kind.String(), Message: err.Error()}
	}
	return &ErrorBody{Kind: "error", Message: err.Error()}
}

// asError turns an ErrorBody back into an error. Bridge kinds come back as
// *core.Error.
func (b *ErrorBody) asError(op string) error {
	for k := core.KindConversion; k <= core.KindCapability; k++ {
		if k.String() == b.Kind {
			return &core.Error{Kind: k, Op: op, Msg: b.Message}
		}
	}
	return errors.New(b.Message)
}
