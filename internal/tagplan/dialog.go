package tagplan

import (
	"fmt"
	"sort"

	"kc-steward.io/steward/internal/domain"
)

// CheckState is the tri-state of a tag checkbox in the tag dialog.
type CheckState string

const (
	Checked       CheckState = "checked"
	Unchecked     CheckState = "unchecked"
	Indeterminate CheckState = "indeterminate"
)

// Dialog models the tag dialog for one or more selected clusters.
//
// A tag carried by every selected cluster starts checked, by none unchecked, and by
// some indeterminate. Indeterminate tags the operator never touched are left alone
// on every cluster; everything else in the universe is under the dialog's control.
type Dialog struct {
	clusters []ClusterTags
	universe domain.TagSet
	state    map[string]CheckState
	touched  map[string]bool
}

// NewDialog computes the initial state of every tag in universe.
func NewDialog(universe []string, clusters []ClusterTags) *Dialog {
	d := &Dialog{
		clusters: clusters,
		universe: domain.NewTagSet(universe...),
		state:    make(map[string]CheckState, len(universe)),
		touched:  make(map[string]bool),
	}
	for id := range d.universe {
		carriers := 0
		for _, c := range clusters {
			if c.Current.Has(id) {
				carriers++
			}
		}
		switch {
		case carriers == 0:
			d.state[id] = Unchecked
		case carriers == len(clusters):
			d.state[id] = Checked
		default:
			d.state[id] = Indeterminate
		}
	}
	return d
}

// State returns the current checkbox state of a tag.
func (d *Dialog) State(tagID string) CheckState {
	return d.state[tagID]
}

// States returns a copy of every checkbox state.
func (d *Dialog) States() map[string]CheckState {
	out := make(map[string]CheckState, len(d.state))
	for id, s := range d.state {
		out[id] = s
	}
	return out
}

// Set records an explicit operator choice for a tag.
func (d *Dialog) Set(tagID string, checked bool) error {
	if !d.universe.Has(tagID) {
		return fmt.Errorf("tag %q is not part of this dialog", tagID)
	}
	d.touched[tagID] = true
	if checked {
		d.state[tagID] = Checked
	} else {
		d.state[tagID] = Unchecked
	}
	return nil
}

// UnknownTagsError lists, sorted, the tags of a selection that are outside the
// dialog's universe.
type UnknownTagsError struct {
	IDs []string
}

func (e *UnknownTagsError) Error() string {
	return fmt.Sprintf("tags %q are not part of this dialog", e.IDs)
}

// Apply records a whole selection at once. Unknown tags reject the whole
// selection and leave the dialog unchanged.
func (d *Dialog) Apply(selection map[string]bool) error {
	var unknown []string
	for id := range selection {
		if !d.universe.Has(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &UnknownTagsError{IDs: unknown}
	}
	for id, checked := range selection {
		_ = d.Set(id, checked)
	}
	return nil
}

// Plan returns the batched operations implied by the current dialog state.
func (d *Dialog) Plan() domain.TagOperationPlan {
	target := domain.TagSet{}
	managed := domain.TagSet{}
	for id, s := range d.state {
		switch s {
		case Checked:
			target[id] = struct{}{}
			managed[id] = struct{}{}
		case Unchecked:
			managed[id] = struct{}{}
		}
	}
	return Plan(target, d.clusters, managed)
}
