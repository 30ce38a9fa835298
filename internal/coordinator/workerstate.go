package coordinator

// workerState is the coordinator-side worker record.
// Constructed before a worker is spawned, mutated on every dispatched
// record, released once its pipe hits EOF and Wait returns.
type workerState struct {
	finished          bool
	lastDepth         int // m·100+k, -1 until the first PROGRESS record
	currentComboLabel string
}

func newWorkerState() *workerState {
	return &workerState{lastDepth: -1}
}
