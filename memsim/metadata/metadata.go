package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/powtwo/buddysim/memsim"
	"golang.org/x/exp/slog"
)

// BlockMetadata represents a single large region of memory within some system. It manages
// blocks within the region, allowing allocations to be requested and freed, as well as
// enumerated and queried.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. It gives the implementation an opportunity
	// to ensure that metadata structures are prepared for allocations, as well as allows the consumer
	// to inform the implementation of the size of the region of memory it will be managing, via
	// the size parameter. The size must be a power of two.
	Init(size int)
	// Size retrieves the size that the region was initialized with
	Size() int

	// Validate performs internal consistency checks on the metadata. These checks may be expensive, depending
	// on the implementation. When the implementation is functioning correctly, it should not be possible
	// for this method to return an error, but this may assist in diagnosing issues with the implementation.
	Validate() error
	// AllocationCount returns the number of allocations currently live in the implementation. This number
	// should generally be the number of successful allocations minus the number of successful frees.
	AllocationCount() int
	// FreeBlockCount returns the number of unique free blocks in the region. Implementations that merge
	// neighboring free blocks should count the merged block as a single free block.
	FreeBlockCount() int
	// SumFreeSize returns the total amount of free memory in the region.
	SumFreeSize() int

	// IsEmpty will return true if this region has no live allocations
	IsEmpty() bool

	// Allocate reserves a block of memory for a request of the provided size and returns the
	// address of the reserved block. The implementation may reserve a block larger than the
	// request, but never smaller.
	//
	// The implementation must return an error if the request cannot be satisfied: because the
	// request exceeds the size of the region, or because no free block large enough to hold it
	// remains.
	Allocate(size int) (int, error)
	// Free releases the block previously reserved for an allocation of the provided size at the
	// provided address, causing it to become free memory once again.
	//
	// The implementation must return an error if the address and size do not match a live
	// allocation within this region. In that case the region must be left unchanged.
	Free(address, size int) error
	// AllocatedSize accepts an address that maps to a live allocation within the region and
	// returns the size of the block reserved for that allocation.
	//
	// The implementation must return an error if the provided address does not map to a live
	// allocation within this region.
	AllocatedSize(address int) (int, error)

	// VisitAllBlocks will call the provided callback once for each allocated and free block in
	// the region, in ascending address order. Depending on implementation, this can be slow and
	// should generally not be done except for diagnostic purposes.
	VisitAllBlocks(handleBlock func(address int, size int, free bool) error) error
	// DebugLogAllAllocations calls logFunc once for each live allocation in the region, in
	// ascending address order. It is intended for reporting allocations that are still live
	// when a region is being torn down.
	DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, address int, size int))

	// AddDetailedStatistics sums this region's allocation statistics into the statistics currently
	// present in the provided memsim.DetailedStatistics object.
	AddDetailedStatistics(stats *memsim.DetailedStatistics)
	// AddStatistics sums this region's allocation statistics into the statistics currently present
	// in the provided memsim.Statistics object.
	AddStatistics(stats *memsim.Statistics)

	// Clear instantly frees all allocations, returning the region to a single free block spanning
	// its full size.
	Clear()
	// BlockJsonData populates a json object with information about this region
	BlockJsonData(json jwriter.ObjectState)
}

// BlockMetadataBase is a simple struct that provides a few shared utilities for BlockMetadata
// implementations in the memsim module.
type BlockMetadataBase struct {
	size int
}

// NewBlockMetadata creates a new BlockMetadataBase. The region size begins at 0 and is
// assigned when the owning implementation's Init method runs.
func NewBlockMetadata() BlockMetadataBase {
	return BlockMetadataBase{
		size: 0,
	}
}

// Init prepares this structure for allocations and sizes the region based on the parameter size.
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the region
func (m *BlockMetadataBase) Size() int { return m.size }

// PrintDetailedMapHeader populates a json object with summary information about this region
func (m *BlockMetadataBase) PrintDetailedMapHeader(json jwriter.ObjectState, freeSize, allocationCount, freeBlockCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("FreeBytes").Int(freeSize)
	json.Name("Allocations").Int(allocationCount)
	json.Name("FreeBlocks").Int(freeBlockCount)
}
