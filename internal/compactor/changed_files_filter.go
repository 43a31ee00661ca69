package compactor

import "github.com/beaverdb/tsdb-core/pkg/types"

// CheckChangedFiles compares a branch's saved catalog file-state
// (captured before classification) against the current state observed
// just before commit. Divergence is logged but never aborts the
// commit; a future decision may choose to abort instead.
func CheckChangedFiles(partition types.PartitionID, saved, current []types.ParquetFile) {
	savedIDs := idSet(saved)
	currentIDs := idSet(current)

	if len(savedIDs) != len(currentIDs) {
		log.Warn("compactor: file set changed during branch execution", "partition", partition, "saved", len(savedIDs), "current", len(currentIDs))
		return
	}
	for id := range savedIDs {
		if _, ok := currentIDs[id]; !ok {
			log.Warn("compactor: file set changed during branch execution", "partition", partition, "missing_file", id)
			return
		}
	}
}

func idSet(files []types.ParquetFile) map[types.ParquetFileID]struct{} {
	set := make(map[types.ParquetFileID]struct{}, len(files))
	for _, f := range files {
		set[f.ID] = struct{}{}
	}
	return set
}
