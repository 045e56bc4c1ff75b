package model

import (
	"bytes"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type Status string

const (
	StatusOK       Status = "Ok"
	StatusViolated Status = "Violated"
	StatusError    Status = "Error"
)

// Identity names an invariant check.
type Identity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TraceEntry is one named intermediate value of a computation.
type TraceEntry struct {
	Name  string
	Value string
}

// Trace is an insertion-ordered set of named values. It encodes as a JSON
// object whose keys keep their insertion order.
type Trace []TraceEntry

func (t Trace) Get(name string) (string, bool) {
	for _, e := range t {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

func (t Trace) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, string](orderedmap.WithCapacity[string, string](len(t)))
	for _, e := range t {
		om.Set(e.Name, e.Value)
	}
	return om.MarshalJSON()
}

func (t *Trace) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}
	om := orderedmap.New[string, string]()
	if err := om.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	out := make(Trace, 0, om.Len())
	for p := om.Oldest(); p != nil; p = p.Next() {
		out = append(out, TraceEntry{Name: p.Key, Value: p.Value})
	}
	*t = out
	return nil
}

// Computation is the explainability payload of a Result.
type Computation struct {
	Inputs  Trace  `json:"inputs"`
	Formula string `json:"formula"`
	Result  string `json:"result"`
}

func NewComputation(formula string) Computation {
	return Computation{Inputs: Trace{}, Formula: formula}
}

// With appends a named value. Values are rendered with fmt.Sprint.
func (c Computation) With(name string, value any) Computation {
	inputs := make(Trace, len(c.Inputs), len(c.Inputs)+1)
	copy(inputs, c.Inputs)
	c.Inputs = append(inputs, TraceEntry{Name: name, Value: fmt.Sprint(value)})
	return c
}

func (c Computation) WithResult(result string) Computation {
	c.Result = result
	return c
}

// Result is the immutable outcome of one check evaluation.
type Result struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Status          Status      `json:"status"`
	EvaluatedAt     time.Time   `json:"evaluated_at"`
	Computation     Computation `json:"computation"`
	ViolationReason *string     `json:"violation_reason"`
	Advisory        bool        `json:"advisory,omitempty"`
	Severity        string      `json:"severity,omitempty"`
}

func OKResult(id Identity, c Computation, at time.Time) Result {
	return Result{
		ID:          id.ID,
		Name:        id.Name,
		Description: id.Description,
		Status:      StatusOK,
		EvaluatedAt: at,
		Computation: c,
	}
}

func ViolatedResult(id Identity, c Computation, reason string, at time.Time) Result {
	r := OKResult(id, c, at)
	r.Status = StatusViolated
	r.ViolationReason = &reason
	return r
}

// ErrorResult carries msg as both the computation result and the reason.
func ErrorResult(id Identity, msg string, at time.Time) Result {
	return Result{
		ID:              id.ID,
		Name:            id.Name,
		Description:     id.Description,
		Status:          StatusError,
		EvaluatedAt:     at,
		Computation:     Computation{Inputs: Trace{}, Result: "Error: " + msg},
		ViolationReason: &msg,
	}
}

func (r Result) Reason() string {
	if r.ViolationReason == nil {
		return ""
	}
	return *r.ViolationReason
}
