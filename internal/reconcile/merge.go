// Package reconcile merges submission records fetched from the LMS into the
// local store.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/me/oblig/internal/store"
	"github.com/me/oblig/pkg/model"
)

// Entry is the outcome of a merge for one submission id. For UNCHANGED,
// REJECTED and REMOVED entries Submission is the persisted record; for NEW
// and MODIFIED it is the record as written.
type Entry struct {
	Submission *model.Submission
	Result     model.UpdateResult
}

// Result maps every submission id touched or known for the exercise to its
// outcome.
type Result struct {
	Entries map[int64]Entry
}

// Count returns the number of entries with the given outcome.
func (r *Result) Count(res model.UpdateResult) int {
	n := 0
	for _, e := range r.Entries {
		if e.Result == res {
			n++
		}
	}
	return n
}

// IDs returns the submission ids in ascending order.
func (r *Result) IDs() []int64 {
	ids := make([]int64, 0, len(r.Entries))
	for id := range r.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Engine reconciles incoming LMS submissions with persisted ones.
type Engine struct {
	store  store.Store
	logger *slog.Logger
}

// NewEngine creates an Engine backed by st.
func NewEngine(st store.Store, logger *slog.Logger) *Engine {
	return &Engine{store: st, logger: logger.With("component", "reconcile")}
}

// Merge reconciles incoming with the submissions persisted for exerciseID in
// a single transaction. A state regression is rejected unless it is a
// resubmission after failing, or force is set.
func (e *Engine) Merge(ctx context.Context, exerciseID int64, incoming []*model.Submission, force bool) (*Result, error) {
	var result *Result
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = e.merge(ctx, tx, exerciseID, incoming, force)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("merge complete",
		"exercise_id", exerciseID,
		"new", result.Count(model.UpdateNew),
		"modified", result.Count(model.UpdateModified),
		"rejected", result.Count(model.UpdateRejected),
		"removed", result.Count(model.UpdateRemoved),
		"unchanged", result.Count(model.UpdateUnchanged),
	)
	return result, nil
}

func (e *Engine) merge(ctx context.Context, tx store.Tx, exerciseID int64, incoming []*model.Submission, force bool) (*Result, error) {
	ex, err := tx.GetExercise(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("load exercise %d: %w", exerciseID, err)
	}
	if ex == nil {
		return nil, fmt.Errorf("exercise %d: %w", exerciseID, model.ErrNotFound)
	}

	existing, err := tx.ListSubmissions(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	persisted := make(map[int64]*model.Submission, len(existing))
	for _, s := range existing {
		persisted[s.ID] = s
	}

	batch, err := e.normalize(ctx, tx, ex, incoming)
	if err != nil {
		return nil, err
	}

	retired, dropped := placeholdersToRetire(persisted, batch)
	result := &Result{Entries: make(map[int64]Entry)}

	for _, sub := range batch {
		if dropped[sub.ID] {
			continue
		}
		old := persisted[sub.ID]
		switch {
		case old == nil:
			if err := checkOwner(ctx, tx, sub); err != nil {
				return nil, err
			}
			if err := tx.InsertSubmission(ctx, sub); err != nil {
				return nil, fmt.Errorf("insert submission %d: %w", sub.ID, err)
			}
			e.record(result, sub, model.UpdateNew, "", sub.State)

		case old.Equal(sub):
			result.Entries[sub.ID] = Entry{Submission: old, Result: model.UpdateUnchanged}

		case sub.State.Less(old.State) && !model.IsResubmission(old.State, sub.State) && !force:
			e.record(result, old, model.UpdateRejected, old.State, sub.State)

		default:
			if err := tx.UpdateSubmission(ctx, sub); err != nil {
				return nil, fmt.Errorf("update submission %d: %w", sub.ID, err)
			}
			e.record(result, sub, model.UpdateModified, old.State, sub.State)
		}
	}

	ids := make([]int64, 0, len(retired))
	for id := range retired {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := tx.DeleteSubmission(ctx, id); err != nil {
			return nil, fmt.Errorf("delete placeholder %d: %w", id, err)
		}
		p := retired[id]
		e.record(result, p, model.UpdateRemoved, p.State, "")
	}

	for id, old := range persisted {
		if _, ok := result.Entries[id]; !ok {
			result.Entries[id] = Entry{Submission: old, Result: model.UpdateUnchanged}
		}
	}
	return result, nil
}

func (e *Engine) record(r *Result, sub *model.Submission, res model.UpdateResult, from, to model.SubmissionState) {
	r.Entries[sub.ID] = Entry{Submission: sub, Result: res}
	e.logger.Info("submission reconciled",
		"submission_id", sub.ID, "result", res, "from", from, "to", to)
}

// normalize copies the incoming records, binds them to the exercise,
// resolves group membership and drops duplicate ids (the last one wins).
func (e *Engine) normalize(ctx context.Context, tx store.Tx, ex *model.Exercise, incoming []*model.Submission) ([]*model.Submission, error) {
	pos := make(map[int64]int, len(incoming))
	batch := make([]*model.Submission, 0, len(incoming))
	for _, in := range incoming {
		if !in.State.Valid() {
			return nil, fmt.Errorf("submission %d: %w", in.ID, &model.InvalidStateError{Name: string(in.State)})
		}
		sub := in.Clone()
		sub.ExerciseID = ex.ID
		if err := expandGroup(ctx, tx, ex, sub); err != nil {
			return nil, fmt.Errorf("resolve group of submission %d: %w", sub.ID, err)
		}
		if i, dup := pos[sub.ID]; dup {
			e.logger.Warn("duplicate submission in batch", "submission_id", sub.ID)
			batch[i] = sub
			continue
		}
		pos[sub.ID] = len(batch)
		batch = append(batch, sub)
	}
	return batch, nil
}

// expandGroup fills in the group of a single-student submission from the
// exercise's group category, and replaces the contributors of a group
// submission with the group's members when they are known.
func expandGroup(ctx context.Context, tx store.Tx, ex *model.Exercise, sub *model.Submission) error {
	lookedUp := false
	if sub.GroupID == nil && ex.SubmissionCategoryID != nil && len(sub.Contributions) == 1 {
		g, err := tx.GroupOf(ctx, sub.Contributions[0], *ex.SubmissionCategoryID)
		if err != nil {
			return err
		}
		if g == nil {
			return nil
		}
		id := g.ID
		sub.GroupID = &id
		sub.GroupName = g.Name
		lookedUp = true
	}
	if sub.GroupID == nil || (!lookedUp && len(sub.Contributions) > 0) {
		return nil
	}
	members, err := tx.GroupMembers(ctx, *sub.GroupID)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		sub.Contributions = members
	}
	return nil
}

// checkOwner fails when the id of a new submission is already stored for
// another exercise. Submission ids are assigned by the LMS and are unique
// across exercises.
func checkOwner(ctx context.Context, tx store.Tx, sub *model.Submission) error {
	other, err := tx.GetSubmission(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("look up submission %d: %w", sub.ID, err)
	}
	if other != nil && other.ExerciseID != sub.ExerciseID {
		return fmt.Errorf("submission %d belongs to exercise %d, not %d: %w",
			sub.ID, other.ExerciseID, sub.ExerciseID, model.ErrSubmissionConflict)
	}
	return nil
}

// placeholdersToRetire finds the placeholders whose only student contributes
// to another, real submission of the batch. Placeholders are taken from the
// store and from the batch itself; a batch record overrides the stored one.
// retired holds the stored placeholders to delete, dropped the ids of all
// retired placeholders, which must not be written.
func placeholdersToRetire(persisted map[int64]*model.Submission, batch []*model.Submission) (retired map[int64]*model.Submission, dropped map[int64]bool) {
	candidates := make(map[int64]*model.Submission)
	for id, p := range persisted {
		if p.IsPlaceholder() {
			candidates[id] = p
		}
	}
	for _, sub := range batch {
		if sub.IsPlaceholder() {
			candidates[sub.ID] = sub
		} else {
			delete(candidates, sub.ID)
		}
	}
	byStudent := make(map[int64][]int64)
	for id, p := range candidates {
		byStudent[p.Contributions[0]] = append(byStudent[p.Contributions[0]], id)
	}

	retired = make(map[int64]*model.Submission)
	dropped = make(map[int64]bool)
	for _, sub := range batch {
		if sub.IsPlaceholder() {
			continue
		}
		for _, student := range sub.Contributions {
			for _, id := range byStudent[student] {
				if id == sub.ID {
					continue
				}
				dropped[id] = true
				if old, ok := persisted[id]; ok {
					retired[id] = old
				}
			}
		}
	}
	return retired, dropped
}
