package invariant

import (
	"sui-invariant-monitor/internal/model"
)

// PendingEvaluation is the computation result shown for advisory entries.
const PendingEvaluation = "Pending evaluation"

// Advisory is a registry entry that carries descriptive text only, typically
// an LLM suggestion. It has no comparison logic: evaluating it yields an Ok
// result flagged advisory with the formula echoed and a pending placeholder.
// Registering an executable check under the same id replaces it.
type Advisory struct {
	ID          string
	Name        string
	Description string
	Formula     string
	Severity    string
	Source      string
}

func (a *Advisory) Identity() model.Identity {
	return model.Identity{ID: a.ID, Name: a.Name, Description: a.Description}
}

func (a *Advisory) Evaluate(_ model.Snapshot, _ *model.Snapshot) model.Result {
	comp := model.NewComputation(a.Formula)
	if a.Source != "" {
		comp = comp.With("source", a.Source)
	}
	r := model.OKResult(a.Identity(), comp.WithResult(PendingEvaluation), now())
	r.Advisory = true
	r.Severity = a.Severity
	return r
}
