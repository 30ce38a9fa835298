package protocol

import (
	"fmt"
	"io"
)

// Emitter is the protocol-writing side of the engine seam: the only
// way internal/engine talks to the outside world once a solver is
// running as a forked worker. internal/protocol.Encoder is the only
// implementation; internal/engine depends on this interface, not on
// Encoder directly, so a test engine can assert on calls instead of
// parsing bytes.
type Emitter interface {
	Ready() error
	Solving() error
	Finished() error
	Partial() error
	ProblemStart(index int) error
	ProblemEnd(index int) error
	SolutionStart() error
	SolutionEnd() error
	Text(body string) error
	Time(seconds float64) error
	Heartbeat(seconds int) error
	Progress(m, k int, positions uint64) error
	Combo(label string) error
	Debug(text string) error
	Error(text string) error
}

// Encoder writes @@ records, one per line, flushed immediately. It is
// the only writer of a worker's pipe, so it never buffers a record
// past the call that produced it.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w. w should be unbuffered or self-flushing; a
// worker hands it the write end of the pipe to the coordinator
// directly.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) writeLine(s string) error {
	_, err := io.WriteString(e.w, s+"\n")
	return err
}

func (e *Encoder) Ready() error        { return e.writeLine("@@READY") }
func (e *Encoder) Solving() error      { return e.writeLine("@@SOLVING") }
func (e *Encoder) Finished() error     { return e.writeLine("@@FINISHED") }
func (e *Encoder) Partial() error      { return e.writeLine("@@PARTIAL") }
func (e *Encoder) SolutionStart() error { return e.writeLine("@@SOLUTION_START") }
func (e *Encoder) SolutionEnd() error   { return e.writeLine("@@SOLUTION_END") }

func (e *Encoder) ProblemStart(index int) error {
	return e.writeLine(fmt.Sprintf("@@PROBLEM_START:%d", index))
}

func (e *Encoder) ProblemEnd(index int) error {
	return e.writeLine(fmt.Sprintf("@@PROBLEM_END:%d", index))
}

func (e *Encoder) Text(body string) error {
	return e.writeLine("@@TEXT:" + body)
}

func (e *Encoder) Time(seconds float64) error {
	return e.writeLine(fmt.Sprintf("@@TIME:%f", seconds))
}

func (e *Encoder) Heartbeat(seconds int) error {
	return e.writeLine(fmt.Sprintf("@@HEARTBEAT:%d", seconds))
}

func (e *Encoder) Progress(m, k int, positions uint64) error {
	return e.writeLine(fmt.Sprintf("@@PROGRESS:%d+%d:%d", m, k, positions))
}

func (e *Encoder) Combo(label string) error {
	if len(label) > MaxLabelLen {
		label = label[:MaxLabelLen]
	}
	return e.writeLine("@@COMBO:" + label)
}

func (e *Encoder) Debug(text string) error {
	return e.writeLine("@@DEBUG:" + text)
}

func (e *Encoder) Error(text string) error {
	return e.writeLine("@@ERROR:" + text)
}
