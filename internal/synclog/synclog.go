// Package synclog adapts the reconciliation core's hunk results into
// structured log lines (spec.md §7's "every hunk is logged" ambient
// requirement), using zerolog the way the rest of the module's ambient
// stack is specified in SPEC_FULL.md §4.J — the teacher logs with
// plain fmt.Errorf-wrapped strings through its progress/stdout
// packages, which is fine for a human-watched one-shot CLI run but
// gives an unattended sync daemon nothing to grep or ship to a log
// collector, so this package fills that gap.
package synclog

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	syncpkg "github.com/greeddj/msync/internal/sync"
)

// fingerprintLogLen is how many hex characters of a fingerprint are
// logged — enough to disambiguate in a run's log without printing the
// full 64-character SHA-256 digest on every line.
const fingerprintLogLen = 12

// Run is a logger bound to one sync run: every hunk it logs carries
// the same run_id so a run's lines can be grepped out of a shared log
// file.
type Run struct {
	logger zerolog.Logger
}

// NewRun creates a Run logger writing to w (os.Stderr if nil) for one
// account, tagging every line with a fresh run_id.
func NewRun(w io.Writer, account string) *Run {
	if w == nil {
		w = os.Stderr
	}
	logger := zerolog.New(w).With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Str("account", account).
		Logger()
	return &Run{logger: logger}
}

// LogHunk implements sync.Logger.
func (r *Run) LogHunk(res syncpkg.HunkResult) {
	h := res.Hunk
	fp := h.InternalID
	if h.Envelope.MessageID != "" || h.Envelope.Subject != "" {
		fp = syncpkg.Fingerprint(h.Folder, h.Envelope)
	}
	if len(fp) > fingerprintLogLen {
		fp = fp[:fingerprintLogLen]
	}

	event := r.eventFor(res.Outcome)
	event = event.
		Str("folder", h.Folder).
		Str("hunk", h.Kind.String()).
		Str("fingerprint", fp).
		Str("internal_id", h.InternalID)

	if h.Kind.String() == "copy-email" {
		event = event.Str("source", h.Source.String()).Str("target", h.Target.String())
	} else {
		event = event.Str("role", h.Role.String())
	}

	if res.Err != nil {
		event = event.Err(res.Err)
	}
	event.Msg(outcomeMsg(res.Outcome))
}

func (r *Run) eventFor(outcome syncpkg.Outcome) *zerolog.Event {
	switch outcome {
	case syncpkg.OutcomeApplied:
		return r.logger.Info()
	case syncpkg.OutcomeSkipped:
		return r.logger.Warn()
	default:
		return r.logger.Error()
	}
}

func outcomeMsg(outcome syncpkg.Outcome) string {
	switch outcome {
	case syncpkg.OutcomeApplied:
		return "hunk applied"
	case syncpkg.OutcomeSkipped:
		return "hunk skipped"
	default:
		return "hunk errored"
	}
}

// Summary logs a run's final tally.
func (r *Run) Summary(account string, summary syncpkg.Summary) {
	r.logger.Info().
		Int("applied", summary.Applied).
		Int("skipped", summary.Skipped).
		Int("errored", summary.Errored).
		Msg("run complete")
}
