package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// taskFIFO is the pending list of a Queue. It is not safe for concurrent use;
// the owning Queue serializes access.
type taskFIFO struct {
	tasks []Task
}

func newTaskFIFO() taskFIFO {
	return taskFIFO{tasks: make([]Task, 0, defaultQueueCap)}
}

func (f *taskFIFO) push(t Task) {
	f.tasks = append(f.tasks, t)
}

func (f *taskFIFO) pop() (Task, bool) {
	if len(f.tasks) == 0 {
		return Task{}, false
	}

	t := f.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	f.tasks[0] = Task{}
	f.tasks = f.tasks[1:]
	f.maybeCompact()

	return t, true
}

func (f *taskFIFO) len() int {
	return len(f.tasks)
}

func (f *taskFIFO) maybeCompact() {
	n := len(f.tasks)
	c := cap(f.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		f.tasks = make([]Task, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]Task, n, newCap)
	copy(newSlice, f.tasks)
	f.tasks = newSlice
}
