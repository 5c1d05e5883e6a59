package catalog

// transitionTable lists every permitted status edge. Failure and skip edges
// from non-terminal states are added in init so the table here only spells out
// the forward pipeline flow plus the retry re-entry edges out of failed.
var transitionTable = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusFingerprinting: {},
	},
	StatusFingerprinting: {
		StatusMetadataLookup: {},
	},
	StatusMetadataLookup: {
		StatusMLScoring: {},
	},
	StatusMLScoring: {
		StatusReviewNeeded: {},
		StatusOrganizing:   {},
	},
	StatusReviewNeeded: {
		StatusOrganizing: {},
	},
	StatusOrganizing: {
		StatusCompleted: {},
	},
	// Retry policy re-enters the stage that failed.
	StatusFailed: {
		StatusPending:        {},
		StatusFingerprinting: {},
		StatusMetadataLookup: {},
		StatusMLScoring:      {},
		StatusOrganizing:     {},
	},
}

func init() {
	for status := range allStatuses {
		if status.IsTerminal() {
			continue
		}
		edges, ok := transitionTable[status]
		if !ok {
			edges = map[Status]struct{}{}
			transitionTable[status] = edges
		}
		edges[StatusFailed] = struct{}{}
		edges[StatusSkipped] = struct{}{}
	}
}

// CanTransition reports whether the status change from one state to another is
// permitted by the state machine.
func CanTransition(from, to Status) bool {
	edges, ok := transitionTable[from]
	if !ok {
		return false
	}
	_, ok = edges[to]
	return ok
}
