package logs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"runlog/internal/archive"
	"runlog/internal/logging"
)

// Source resolves run records from the remote API first and the local
// archive second.
type Source struct {
	API        *Client
	ArchiveDir string
}

// FetchRun returns runID's records from the first reachable backend,
// ordered by timestamp.
func (s Source) FetchRun(ctx context.Context, runID string) ([]logging.Record, error) {
	records, apiErr := s.API.FetchRun(ctx, runID)
	if apiErr == nil {
		sortRecords(records)
		return records, nil
	}
	if !IsAPIUnavailable(apiErr) {
		return nil, apiErr
	}

	if strings.TrimSpace(s.ArchiveDir) == "" {
		return nil, apiErr
	}
	store, err := archive.OpenReadOnly(s.ArchiveDir)
	if err != nil {
		return nil, fmt.Errorf("open archive after API failure (%v): %w", apiErr, err)
	}
	defer store.Close()

	records, err = store.FetchRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

func sortRecords(records []logging.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}
