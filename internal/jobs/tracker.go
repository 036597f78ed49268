package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/divinepic/faceindex/internal/imagestore"
	"github.com/divinepic/faceindex/internal/naming"
	"github.com/divinepic/faceindex/internal/paramstore"
)

// Tracker answers job status queries. Status lookups never fail outright: a
// job nobody has heard of reports "unknown", and a completed job whose results
// artifact cannot be fetched still reports "completed" with the fetch failure
// noted alongside.
type Tracker struct {
	images imagestore.Store
	params paramstore.Store
	logger *slog.Logger
}

// NewTracker wires a Tracker.
func NewTracker(images imagestore.Store, params paramstore.Store) *Tracker {
	return &Tracker{images: images, params: params, logger: slog.Default()}
}

// Status reports the current state of one job. For completed jobs it also
// fetches and embeds the results artifact.
func (t *Tracker) Status(ctx context.Context, jobID string) JobInfo {
	info := JobInfo{JobID: jobID, Status: StatusUnknown}

	status, found, err := t.params.GetStatus(ctx, jobID)
	if err != nil {
		t.logger.Error("status lookup failed", "job_id", jobID, "error", err)
		return info
	}
	if !found {
		return info
	}
	info.Status = status

	// A missing or unreadable instance ref is tolerated, but the failure is
	// still logged like the other lookups here.
	ref, found, err := t.params.GetInstance(ctx, jobID)
	switch {
	case err != nil:
		t.logger.Error("instance lookup failed", "job_id", jobID, "error", err)
	case found:
		info.InstanceRef = ref
	}

	if status != StatusCompleted {
		return info
	}

	resultsKey := naming.ResultsKey(jobID)
	info.ResultsURL = t.images.PublicURL(resultsKey)

	raw, err := t.images.Get(ctx, resultsKey)
	if err != nil {
		t.logger.Error("results fetch failed", "job_id", jobID, "key", resultsKey, "error", err)
		info.ResultsError = "results artifact unavailable"
		return info
	}

	var results []PerImageResult
	if err := json.Unmarshal(raw, &results); err != nil {
		t.logger.Error("results artifact malformed", "job_id", jobID, "key", resultsKey, "error", err)
		info.ResultsError = "results artifact malformed"
		return info
	}
	info.Results = results

	return info
}

// ListRecent returns up to limit jobs, newest first. Job ids embed their
// creation epoch, so lexicographic-by-timestamp ordering falls out of the id
// itself. Individual status lookups fail independently.
func (t *Tracker) ListRecent(ctx context.Context, limit int) ([]JobInfo, error) {
	ids, err := t.params.ListJobIDs(ctx)
	if err != nil {
		return nil, err
	}

	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	infos := make([]JobInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, t.Status(ctx, id))
	}
	return infos, nil
}
