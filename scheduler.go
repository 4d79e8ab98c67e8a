package jsbridge

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

type procedure int

const (
	procCall procedure = iota
	procEval
	procLoadWindow
)

func (p procedure) String() string {
	switch p {
	case procCall:
		return "call"
	case procEval:
		return "eval"
	default:
		return "loadwindow"
	}
}

// queuedCall is work handed from a foreign goroutine to the owner. Its
// payload is converted on the producer, so only engine work remains.
type queuedCall struct {
	id     uuid.UUID
	proc   procedure
	args   []codec.Value
	script string
	mode   EvalMode
	result *Pending

	consumed atomic.Bool
}

// schedule appends qc to the owner's queue and wakes its loop.
func (in *Interp) schedule(qc *queuedCall) error {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	qc.id = id
	ev := eventloop.Event{
		ID:   id.String(),
		Mask: core.WindowEvents | core.FileEvents,
		Run:  func() error { return in.runQueued(qc) },
		Drop: func(err error) {
			if qc.result != nil {
				qc.result.complete(nil, err)
			}
		},
	}
	if !in.el.Enqueue(ev) {
		return core.Wrap(core.KindUsage, qc.proc.String(), core.ErrClosed)
	}
	in.log.Debug("queued call", "id", ev.ID, "proc", qc.proc.String())
	return nil
}

// runQueued executes qc on the owner. Without a result slot, a failure is
// returned to the loop, which raises it as a background error.
func (in *Interp) runQueued(qc *queuedCall) error {
	if !qc.consumed.CompareAndSwap(false, true) {
		in.log.Warn("queued call delivered twice", "id", qc.id.String())
		return nil
	}
	in.log.Debug("running queued call", "id", qc.id.String(), "proc", qc.proc.String())

	var (
		v   any
		err error
	)
	switch qc.proc {
	case procCall:
		v, err = in.callValues(qc.args)
	case procEval:
		v, err = in.evalScript(qc.script, qc.mode)
	case procLoadWindow:
		err = in.loadWindow()
	}
	if qc.result != nil {
		qc.result.complete(v, err)
		return nil
	}
	return err
}
