package compactor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/beaverdb/tsdb-core/internal/catalog"
	"github.com/beaverdb/tsdb-core/internal/compactor/classify"
	"github.com/beaverdb/tsdb-core/internal/compactor/filter"
	"github.com/beaverdb/tsdb-core/internal/compactor/plan"
	"github.com/beaverdb/tsdb-core/internal/compactor/scratchpad"
	"github.com/beaverdb/tsdb-core/internal/gossip"
	"github.com/beaverdb/tsdb-core/internal/objectstore"
	"github.com/beaverdb/tsdb-core/internal/parquetio"
	"github.com/beaverdb/tsdb-core/pkg/types"
)

var log = slog.Default()

// chunkMultiplier is a plans-per-permit chunk factor. The driver does
// not reference it: a branch's action runs as a single group, not in
// chunks of chunkMultiplier × permits.
const chunkMultiplier = 4

// Config bounds one Driver's behavior, all caller-supplied rather than
// reached through a package-level singleton.
type Config struct {
	// BranchFileCap is the branch size limit (≤200 files by default).
	BranchFileCap int
	// MaxParquetBytes is the desired max output file size; it drives
	// both the classifier's upgrade-vs-keep decision and the post-
	// classification unsplittable-giant-file check.
	MaxParquetBytes int64
	// Permits is the DataFusion concurrency semaphore's total weight;
	// one plan execution starts at 1 permit and doubles on OOM up to
	// this total.
	Permits int64
	// BytesPerPermit is how many input bytes one permit is assumed to
	// cover; a plan whose total input size exceeds permits ×
	// BytesPerPermit fails with OutOfMemory and is retried at double
	// the permits.
	BytesPerPermit int64
	// RoundTimeout bounds one partition's full run, enforced by
	// RunWithProgressTimeout.
	RoundTimeout time.Duration
	// PartitionWorkers bounds how many partitions Run processes
	// concurrently off the input channel.
	PartitionWorkers int
}

// Driver runs the per-partition compaction pipeline: fetch files, plan
// rounds, execute branches, commit, broadcast.
//
// Grounded structurally on internal/controller/controller.go (the
// "coordinator with N concurrent loops, graceful shutdown" shape),
// adapted from dispatch/result/timeout/snapshot loops over jobs into
// round/branch/plan execution over partitions.
type Driver struct {
	catalog   catalog.Catalog
	store     objectstore.Store
	scratch   *scratchpad.Scratchpad
	committer *Committer
	planner   plan.Planner
	filters   *filter.Pipeline
	hub       *gossip.Hub

	cfg Config
	sem *semaphore.Weighted
}

// NewDriver wires a Driver from its collaborators.
func NewDriver(cat catalog.Catalog, store objectstore.Store, scratch *scratchpad.Scratchpad, committer *Committer, planner plan.Planner, filters *filter.Pipeline, hub *gossip.Hub, cfg Config) *Driver {
	return &Driver{
		catalog:   cat,
		store:     store,
		scratch:   scratch,
		committer: committer,
		planner:   planner,
		filters:   filters,
		hub:       hub,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(cfg.Permits),
	}
}

// Run pulls partitions off the channel until it closes or ctx is
// cancelled, compacting up to cfg.PartitionWorkers concurrently.
func (d *Driver) Run(ctx context.Context, partitions <-chan types.PartitionID) error {
	workers := d.cfg.PartitionWorkers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case partition, ok := <-partitions:
					if !ok {
						return
					}
					d.compactPartition(ctx, partition)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// compactPartition runs every round for one partition, wrapped in the
// timeout-with-progress-checking policy.
func (d *Driver) compactPartition(ctx context.Context, partition types.PartitionID) {
	outcome, err := RunWithProgressTimeout(ctx, d.cfg.RoundTimeout, func(ctx context.Context, progress chan<- struct{}) error {
		return d.runRounds(ctx, partition, progress)
	})

	switch outcome {
	case OutcomeTimeout:
		if serr := d.catalog.SkipCompaction(ctx, partition, "timeout: no progress"); serr != nil {
			log.Error("compactor: failed to skip-list partition", "partition", partition, "error", serr)
		}
	case OutcomeSoftRetry:
		log.Info("compactor: partition timed out but made progress, retrying next cycle", "partition", partition)
	case OutcomeDone:
		if err != nil {
			log.Error("compactor: partition round aborted", "partition", partition, "error", err)
			if serr := d.catalog.SkipCompaction(ctx, partition, err.Error()); serr != nil {
				log.Error("compactor: failed to skip-list partition", "partition", partition, "error", serr)
			}
		}
	}
}

// runRounds implements §4.5 steps 1-2: fetch, filter, then loop rounds
// until the planner reports done or a round makes no progress at all.
func (d *Driver) runRounds(ctx context.Context, partition types.PartitionID, progress chan<- struct{}) error {
	files, err := d.catalog.FetchFiles(ctx, partition)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	if d.filters != nil {
		ok, err := d.filters.Run(ctx, partition)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	for {
		ranges := SplitRanges(files, d.cfg.BranchFileCap)
		if len(ranges) == 0 {
			return nil
		}
		round := d.planner.Plan(ranges)
		if round.Done() {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		var nextFiles []types.ParquetFile
		var committed bool

		for _, r := range round.Ranges {
			r := r
			g.Go(func() error {
				out, didCommit, err := d.runRange(gctx, partition, r, progress)
				if err != nil {
					return err
				}
				mu.Lock()
				nextFiles = append(nextFiles, out...)
				committed = committed || didCommit
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if !committed {
			// No branch in any range made progress; a round never
			// consumes its own output, so looping further would just
			// re-derive the same ranges forever.
			return nil
		}
		files = nextFiles
	}
}

// runRange executes every branch of r concurrently and returns the
// union of their surviving/produced files (the range's
// files_for_later).
func (d *Driver) runRange(ctx context.Context, partition types.PartitionID, r plan.Range, progress chan<- struct{}) ([]types.ParquetFile, bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var out []types.ParquetFile
	var committed bool

	for _, branch := range r.Branches {
		branch := branch
		g.Go(func() error {
			files, didCommit, err := d.runBranch(gctx, partition, branch, progress)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, files...)
			committed = committed || didCommit
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return out, committed, nil
}

// runBranch implements §4.5.1: classify, stage, execute, upload,
// commit, broadcast, signal progress, clean — in that order, with the
// scratchpad guaranteed to be cleaned on every exit path.
func (d *Driver) runBranch(ctx context.Context, partition types.PartitionID, branch plan.Branch, progress chan<- struct{}) ([]types.ParquetFile, bool, error) {
	saved := branch.Files

	classification := classify.Classify(branch.Op, branch.Files, d.cfg.MaxParquetBytes)
	actionEmpty := classification.Action.Empty()

	if err := filter.CheckPossibleProgress(partition, actionEmpty, classification.Keep, d.cfg.MaxParquetBytes); err != nil {
		return nil, false, err
	}
	if actionEmpty {
		pending := levelChanges(classification.Upgrade, classification.TargetLevel)
		if len(pending) == 0 {
			// Nothing to do this round; the branch's files carry forward
			// unchanged so the round can re-evaluate them later. This also
			// covers an Upgrade set whose files already sit at
			// TargetLevel, which is not actual progress and must not be
			// re-committed forever.
			return append([]types.ParquetFile{}, branch.Files...), false, nil
		}
		// No rewrite needed, but an isolated oversized file at the start
		// level still needs its catalog level bumped so it stops being
		// reconsidered at the old level every round.
		return d.commitUpgradeOnly(ctx, partition, classification, pending, progress)
	}

	sp, err := d.scratch.Acquire(partition)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if cerr := sp.Clean(); cerr != nil {
			log.Warn("compactor: scratchpad clean failed", "partition", partition, "error", cerr)
		}
	}()

	merged, err := d.downloadAndMerge(ctx, partition, sp, classification.Action.Files)
	if err != nil {
		return nil, false, err
	}

	outputs, err := d.executeAction(ctx, classification.Action, merged)
	if err != nil {
		return nil, false, err
	}

	namespace, table := branch.Files[0].Namespace, branch.Files[0].Table

	creates := make([]catalog.CreateFileParams, 0, len(outputs))
	for i, ob := range outputs {
		objID, size, err := d.uploadBatch(ctx, sp, i, namespace, table, partition, ob)
		if err != nil {
			return nil, false, err
		}
		stats, _ := ob.TimestampStats()
		creates = append(creates, catalog.CreateFileParams{
			Namespace:       namespace,
			Table:           table,
			Partition:       partition,
			ObjectStoreID:   objID,
			MinTime:         stats.Min,
			MaxTime:         stats.Max,
			RowCount:        int64(ob.Rows()),
			SizeBytes:       size,
			CompactionLevel: classification.TargetLevel,
		})
	}

	if current, ferr := d.catalog.FetchFiles(ctx, partition); ferr == nil {
		CheckChangedFiles(partition, saved, current)
	}

	deleteIDs := fileIDs(classification.Action.Files)
	upgradeIDs := fileIDs(classification.Upgrade)
	newIDs, err := d.committer.Commit(ctx, partition, deleteIDs, upgradeIDs, classification.TargetLevel, creates)
	if err != nil {
		return nil, false, err
	}

	if d.hub != nil {
		d.hub.Broadcast(ctx, gossip.CompactionEvent{
			NewFiles:            newIDs,
			DeletedFileIDs:      deleteIDs,
			UpgradedTargetLevel: classification.TargetLevel,
		})
	}

	select {
	case progress <- struct{}{}:
	default:
	}

	result := append([]types.ParquetFile{}, classification.Keep...)
	for _, f := range classification.Upgrade {
		f.CompactionLevel = classification.TargetLevel
		result = append(result, f)
	}
	for i, id := range newIDs {
		c := creates[i]
		result = append(result, types.ParquetFile{
			ID:              id,
			Namespace:       branch.Files[0].Namespace,
			Table:           branch.Files[0].Table,
			Partition:       partition,
			ObjectStoreID:   c.ObjectStoreID,
			MinTime:         c.MinTime,
			MaxTime:         c.MaxTime,
			RowCount:        c.RowCount,
			SizeBytes:       c.SizeBytes,
			CompactionLevel: c.CompactionLevel,
		})
	}
	return result, true, nil
}

// commitUpgradeOnly handles the branch where classification produced no
// split-or-compact action but a non-empty Upgrade set: an isolated
// oversized file at the start level that cannot be merged with
// anything else and cannot be split, so the only catalog change is
// bumping its level. There is nothing to download, merge or upload —
// just the level-only commit, broadcast and progress signal.
func (d *Driver) commitUpgradeOnly(ctx context.Context, partition types.PartitionID, classification classify.Classification, pending []types.ParquetFile, progress chan<- struct{}) ([]types.ParquetFile, bool, error) {
	upgradeIDs := fileIDs(pending)
	if _, err := d.committer.Commit(ctx, partition, nil, upgradeIDs, classification.TargetLevel, nil); err != nil {
		return nil, false, err
	}

	if d.hub != nil {
		d.hub.Broadcast(ctx, gossip.CompactionEvent{
			UpdatedFileIDs:      upgradeIDs,
			UpgradedTargetLevel: classification.TargetLevel,
		})
	}

	select {
	case progress <- struct{}{}:
	default:
	}

	result := append([]types.ParquetFile{}, classification.Keep...)
	for _, f := range classification.Upgrade {
		f.CompactionLevel = classification.TargetLevel
		result = append(result, f)
	}
	return result, true, nil
}

// downloadAndMerge stages inputs in the scratchpad and merges them into
// one in-memory batch, oldest-first by min time.
func (d *Driver) downloadAndMerge(ctx context.Context, partition types.PartitionID, sp *scratchpad.Handle, inputs []types.ParquetFile) (types.ColumnBatch, error) {
	var merged types.ColumnBatch
	for i, f := range inputs {
		r, err := d.store.Get(ctx, objectstore.Path(f.Namespace, f.Table, f.Partition, f.ObjectStoreID))
		if err != nil {
			return types.ColumnBatch{}, types.NewError(types.ErrObjectStore, "download compaction input", err).WithPartition(partition).WithFile(f.ID)
		}

		name := fmt.Sprintf("input-%d.parquet", i)
		path, err := sp.Stage(ctx, name, r)
		r.Close()
		if err != nil {
			return types.ColumnBatch{}, err
		}

		data, err := readFile(path)
		if err != nil {
			return types.ColumnBatch{}, err
		}
		batch, err := parquetio.ReadBatch(data)
		if err != nil {
			return types.ColumnBatch{}, types.NewError(types.ErrCorruption, "read compaction input", err).WithPartition(partition).WithFile(f.ID)
		}
		merged = merged.Append(batch)
	}
	return merged, nil
}

// executeAction runs classification.Action's compact-or-split under the
// permit semaphore, self-tuning on OutOfMemory up to the semaphore's
// total weight.
func (d *Driver) executeAction(ctx context.Context, action *classify.Action, input types.ColumnBatch) ([]types.ColumnBatch, error) {
	permits := int64(1)
	for {
		if err := d.sem.Acquire(ctx, permits); err != nil {
			return nil, err
		}

		outputs, err := d.runPlan(action, input, permits)
		d.sem.Release(permits)

		if err == nil {
			return outputs, nil
		}
		if types.KindOf(err) != types.ErrOutOfMemory {
			return nil, err
		}
		if permits >= d.cfg.Permits {
			return nil, err
		}
		permits *= 2
		if permits > d.cfg.Permits {
			permits = d.cfg.Permits
		}
	}
}

// runPlan is the actual (in-process) compaction work: merge to one
// output for a Compact action, or split by time boundary for a Split
// action. It fails with OutOfMemory if the input is too large for the
// permits currently held — the self-tune trigger executeAction reacts
// to.
func (d *Driver) runPlan(action *classify.Action, input types.ColumnBatch, permits int64) ([]types.ColumnBatch, error) {
	var total int64
	for _, f := range action.Files {
		total += f.SizeBytes
	}
	if d.cfg.BytesPerPermit > 0 && total > permits*d.cfg.BytesPerPermit {
		return nil, types.NewError(types.ErrOutOfMemory, "plan exceeds permit budget", nil)
	}

	if action.Kind == classify.ActionSplit {
		return input.SplitAt(action.SplitPoints), nil
	}
	return []types.ColumnBatch{input}, nil
}

// uploadBatch encodes batch to Parquet, stages it in the scratchpad
// under a newly assigned output id, then uploads it to object storage,
// returning the assigned object id and byte size.
func (d *Driver) uploadBatch(ctx context.Context, sp *scratchpad.Handle, index int, namespace types.NamespaceID, table types.TableID, partition types.PartitionID, batch types.ColumnBatch) (types.ObjectStoreID, int64, error) {
	data, err := parquetio.WriteBatch(batch)
	if err != nil {
		return "", 0, types.NewError(types.ErrCorruption, "encode compaction output", err).WithPartition(partition)
	}

	if _, err := sp.Stage(ctx, fmt.Sprintf("output-%d.parquet", index), bytes.NewReader(data)); err != nil {
		return "", 0, err
	}

	objID := types.ObjectStoreID(uuid.NewString())
	path := objectstore.Path(namespace, table, partition, objID)

	if err := d.store.Put(ctx, path, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", 0, types.NewError(types.ErrObjectStore, "upload compaction output", err).WithPartition(partition)
	}
	return objID, int64(len(data)), nil
}

func fileIDs(files []types.ParquetFile) []types.ParquetFileID {
	ids := make([]types.ParquetFileID, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}

// levelChanges filters files down to those not already at target, so a
// branch whose Upgrade set already sits at its target level (no actual
// catalog change left to make) is never re-committed as if it were
// progress.
func levelChanges(files []types.ParquetFile, target types.CompactionLevel) []types.ParquetFile {
	var out []types.ParquetFile
	for _, f := range files {
		if f.CompactionLevel != target {
			out = append(out, f)
		}
	}
	return out
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
