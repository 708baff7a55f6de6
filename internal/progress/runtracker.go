package progress

import (
	"fmt"

	syncpkg "github.com/greeddj/msync/internal/sync"
)

// RunTracker drives a Writer's trackers from a sync.Run's lifecycle
// callbacks, one tracker per surviving folder, the same per-item
// tracker shape cmd/commands/sync.go's teacher predecessor used for
// its per-plan copy chunks.
type RunTracker struct {
	quiet    bool
	pw       *Writer
	trackers map[string]*Tracker
}

// NewRunTracker returns a sync.ProgressHook backed by a go-pretty
// progress.Writer. quiet suppresses rendering the same way
// stdout.New's quiet flag does elsewhere in the CLI.
func NewRunTracker(quiet bool) *RunTracker {
	return &RunTracker{quiet: quiet}
}

func (r *RunTracker) FoldersFound(folders []string) {
	if len(folders) == 0 {
		return
	}
	r.pw = NewWriter(len(folders), r.quiet)
	r.trackers = make(map[string]*Tracker, len(folders))
	for _, f := range folders {
		t := NewTracker(fmt.Sprintf("Waiting: %s", f), 1)
		r.pw.AppendTracker(t)
		r.trackers[f] = t
	}
	r.pw.Start()
}

func (r *RunTracker) FolderStarted(folder string) {
	if t, ok := r.trackers[folder]; ok {
		t.UpdateMessage(fmt.Sprintf("Reconciling: %s", folder))
	}
}

func (r *RunTracker) FolderDone(folder string, summary syncpkg.Summary) {
	t, ok := r.trackers[folder]
	if !ok {
		return
	}
	t.UpdateMessage(fmt.Sprintf("%s: %d applied, %d skipped, %d errored",
		folder, summary.Applied, summary.Skipped, summary.Errored))
	t.Increment(1)
	if summary.HasErrors() {
		t.MarkAsErrored()
	} else {
		t.MarkAsDone()
	}
}

// Stop stops and clears the underlying writer, if a run ever produced
// any surviving folders to track.
func (r *RunTracker) Stop() {
	if r.pw == nil {
		return
	}
	r.pw.StopAndClear(len(r.trackers))
}
