package buddy

import (
	"context"

	"github.com/powtwo/buddysim/memsim"
	"github.com/powtwo/buddysim/memsim/metadata"
	"golang.org/x/exp/slog"
)

// Allocator simulates a single region of memory managed with the buddy system. Allocation
// requests are rounded up to the next power of two and carved out of the smallest free block
// that can hold them, splitting larger blocks in half as necessary. Freed blocks merge back
// together with their buddy (the other half of the same split) whenever that buddy is free.
//
// Allocator is not safe for concurrent use from multiple goroutines.
type Allocator struct {
	logger   *slog.Logger
	metadata metadata.BlockMetadata
}

// New creates a new Allocator
//
// logger - Diagnostic output from the allocator will be written to this logger
//
// totalMemory - The size of the simulated region. It must be a power of two: an error
// wrapping memsim.PowerOfTwoError is returned when it is not.
func New(logger *slog.Logger, totalMemory int) (*Allocator, error) {
	err := memsim.CheckPow2(totalMemory, "totalMemory")
	if err != nil {
		return nil, err
	}

	allocator := &Allocator{
		logger:   logger,
		metadata: metadata.NewBuddyBlockMetadata(),
	}
	allocator.metadata.Init(totalMemory)

	return allocator, nil
}

// TotalMemory returns the size of the simulated region
func (a *Allocator) TotalMemory() int {
	return a.metadata.Size()
}

// Allocate reserves a block large enough for a request of the provided size and returns the
// address of the reserved block. The block that is reserved may be larger than the request:
// the size actually reserved can be retrieved with AllocatedSize.
//
// An error wrapping memsim.RequestTooLargeError is returned when the request exceeds the
// region size, and an error wrapping memsim.NoSuitableBlockError is returned when no free
// block large enough to hold the request remains.
func (a *Allocator) Allocate(size int) (int, error) {
	address, err := a.metadata.Allocate(size)
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocation failed",
			slog.Int("size", size),
			slog.Any("error", err))
		return 0, err
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "allocated block",
		slog.Int("size", size),
		slog.Int("address", address))

	return address, nil
}

// Free releases the block reserved for an allocation of the provided size at the provided
// address and merges it with its buddies as far as possible.
//
// An error wrapping memsim.InvalidFreeError is returned when the address and size do not
// match a live allocation, and the region is left unchanged in that case.
func (a *Allocator) Free(address, size int) error {
	err := a.metadata.Free(address, size)
	if err != nil {
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "free failed",
			slog.Int("address", address),
			slog.Int("size", size),
			slog.Any("error", err))
		return err
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "freed block",
		slog.Int("address", address),
		slog.Int("size", size))

	return nil
}

// AllocatedSize returns the size of the block reserved for the live allocation at the
// provided address. It returns an error if no live allocation exists at that address.
func (a *Allocator) AllocatedSize(address int) (int, error) {
	return a.metadata.AllocatedSize(address)
}

// IsEmpty returns true when the region has no live allocations
func (a *Allocator) IsEmpty() bool {
	return a.metadata.IsEmpty()
}

// Validate performs internal consistency checks on the region. When the allocator is
// functioning correctly it should not be possible for this method to return an error.
func (a *Allocator) Validate() error {
	return a.metadata.Validate()
}

// CalculateStatistics populates stats with basic usage numbers for the region
func (a *Allocator) CalculateStatistics(stats *memsim.Statistics) {
	stats.Clear()
	a.metadata.AddStatistics(stats)
}

// CalculateDetailedStatistics populates stats with complete usage numbers for the region,
// including free block counts and size extremes. It walks every block and so is slower
// than CalculateStatistics.
func (a *Allocator) CalculateDetailedStatistics(stats *memsim.DetailedStatistics) {
	stats.Clear()
	a.metadata.AddDetailedStatistics(stats)
}

// DebugLogAllAllocations writes a log line at error level for each allocation that is
// still live. It is intended to surface leaked allocations at the end of a simulation.
func (a *Allocator) DebugLogAllAllocations() {
	a.metadata.DebugLogAllAllocations(a.logger, func(log *slog.Logger, address int, size int) {
		log.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
			slog.Int("address", address),
			slog.Int("size", size),
		)
	})
}
