package filter

import (
	"fmt"

	"github.com/beaverdb/tsdb-core/pkg/types"
)

// CheckPossibleProgress checks whether a round can still make progress
// when the classifier produced no split-or-compact action (an empty
// "files to make progress on" set): progress is possible as long as
// nothing in the kept set is stuck. A kept file is stuck when it already exceeds
// maxParquetBytes and spans a single nanosecond of time (min_time ==
// max_time) — it is too big to keep but cannot be split either.
//
// Grounded on original_source/compactor/src/components/
// post_classification_partition_filter/possible_progress.rs's
// PossibleProgressFilter: same empty-check-then-scan-kept-files shape,
// same OutOfMemory error naming partition/limit/timestamp.
func CheckPossibleProgress(partition types.PartitionID, actionEmpty bool, kept []types.ParquetFile, maxParquetBytes int64) error {
	if !actionEmpty {
		return nil
	}

	for _, f := range kept {
		if f.SizeBytes > maxParquetBytes && f.MinTime == f.MaxTime {
			return types.NewError(
				types.ErrOutOfMemory,
				fmt.Sprintf(
					"partition %d has overlapped files that exceed max compact size limit %d, and cannot be split because they cover a single ns of time %d",
					partition, maxParquetBytes, f.MinTime,
				),
				nil,
			).WithPartition(partition)
		}
	}

	return nil
}
