package batch

import "log/slog"

// FromOpenAIStatus maps an OpenAI batch status onto the four job states.
// Unknown values are treated as still running so the poller keeps asking.
func FromOpenAIStatus(remote string) Status {
	switch remote {
	case "validating":
		return StatusPending
	case "in_progress", "finalizing", "cancelling":
		return StatusInProgress
	case "completed":
		return StatusComplete
	case "failed", "expired", "cancelled":
		return StatusFailed
	default:
		slog.Warn("unknown batch status, treating as in progress", "status", remote)
		return StatusInProgress
	}
}
