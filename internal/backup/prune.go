package backup

import (
	"fmt"
)

// DefaultKeepCount is the default number of backups to retain when pruning.
const DefaultKeepCount = 10

// PruneResult describes what a prune removed.
type PruneResult struct {
	Deleted []Record
	Kept    int
}

// Prune removes old backups, keeping only the most recent N. The update
// pipeline never prunes on its own; this is an explicit operator action.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	records, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}

	if len(records) <= keep {
		result.Kept = len(records)
		return result, nil
	}

	toDelete := records[keep:]
	result.Kept = keep

	for _, rec := range toDelete {
		if err := m.Delete(rec.ID); err != nil {
			return nil, fmt.Errorf("failed to delete backup %s: %w", rec.ID, err)
		}
		result.Deleted = append(result.Deleted, rec)
	}

	return result, nil
}
