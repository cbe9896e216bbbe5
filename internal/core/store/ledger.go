package store

import "github.com/neilberkman/devlog/internal/core/models"

// Ledger primitives. Each returns a fresh slice and leaves its input
// untouched, so a failed bounds check never changes state.

func inRange(i, n int) bool {
	return i >= 0 && i < n
}

func appendAction(actions []models.Action, a models.Action) []models.Action {
	out := make([]models.Action, len(actions), len(actions)+1)
	copy(out, actions)
	return append(out, a)
}

// removeAt requires inRange(i, len(actions))
func removeAt(actions []models.Action, i int) ([]models.Action, models.Action) {
	removed := actions[i]
	out := make([]models.Action, 0, len(actions)-1)
	out = append(out, actions[:i]...)
	out = append(out, actions[i+1:]...)
	return out, removed
}

// insertAt requires 0 <= i <= len(actions)
func insertAt(actions []models.Action, i int, a models.Action) []models.Action {
	out := make([]models.Action, 0, len(actions)+1)
	out = append(out, actions[:i]...)
	out = append(out, a)
	out = append(out, actions[i:]...)
	return out
}

// reorderActions moves the action at oldIndex so it ends up at newIndex.
// Both indices must be valid for the pre-mutation list.
func reorderActions(actions []models.Action, oldIndex, newIndex int) []models.Action {
	rest, a := removeAt(actions, oldIndex)
	return insertAt(rest, newIndex, a)
}

// sameSessionTarget converts a destination index expressed against the list
// before removal into the index to insert at after removal.
func sameSessionTarget(sourceIndex, destIndex int) int {
	if destIndex > sourceIndex {
		return destIndex - 1
	}
	return destIndex
}
