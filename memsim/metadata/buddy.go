package metadata

import (
	"fmt"
	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/powtwo/buddysim/memsim"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
	"math/bits"
)

type buddyBlock struct {
	address int
	size    int
	free    bool
}

// BuddyBlockMetadata is a BlockMetadata implementation that manages its region with the
// buddy system: every block is a power of two in size and aligned to its own size, requests
// are rounded up to the next power of two, and freed blocks merge with their buddy (the
// neighbor produced by the same split) as long as that buddy is free.
type BuddyBlockMetadata struct {
	BlockMetadataBase

	allocCount      int
	blocksFreeCount int
	blocksFreeSize  int
	isFreeBitmap    uint64
	orderCount      int

	freeLists   [][]int
	allocations *swiss.Map[int, int]
}

var _ BlockMetadata = &BuddyBlockMetadata{}

func NewBuddyBlockMetadata() *BuddyBlockMetadata {
	return &BuddyBlockMetadata{
		BlockMetadataBase: NewBlockMetadata(),
	}
}

// Init prepares this structure for allocations and establishes a single free block spanning
// the entire region. The size must be a power of two, and Init panics when it is not.
func (m *BuddyBlockMetadata) Init(size int) {
	err := memsim.CheckPow2(size, "size")
	if err != nil {
		panic(fmt.Sprintf("invalid metadata size: %+v", err))
	}

	m.BlockMetadataBase.Init(size)
	m.orderCount = memsim.SizeOrder(size) + 1
	m.freeLists = make([][]int, m.orderCount)
	m.allocations = swiss.NewMap[int, int](42)

	m.insertFreeBlock(0, size)
}

func (m *BuddyBlockMetadata) Validate() error {
	if m.SumFreeSize() > m.Size() {
		return errors.New("invalid metadata free size")
	}

	// Check integrity of free lists
	for order := 0; order < m.orderCount; order++ {
		bucket := m.freeLists[order]
		hasBit := m.isFreeBitmap&(uint64(1)<<order) != 0

		if hasBit != (len(bucket) > 0) {
			return errors.Errorf("free list index %d does not agree with the free bitmap", order)
		}

		for i, address := range bucket {
			if i > 0 && bucket[i-1] >= address {
				return errors.Errorf("free list index %d is not sorted by ascending address", order)
			}

			_, buddyFree := slices.BinarySearch(bucket, address^(1<<order))
			if buddyFree {
				return errors.Errorf("the free block at address %d and its buddy are both free but were not merged", address)
			}
		}
	}

	var allocCount, freeCount, freeSize int
	nextAddress := 0

	for _, block := range m.collectBlocks() {
		if block.address != nextAddress {
			return errors.Errorf("the block at address %d does not begin where the previous block ended, at address %d", block.address, nextAddress)
		}

		if block.size < 1 || block.size&(block.size-1) != 0 {
			return errors.Errorf("the block at address %d has size %d, which is not a power of two", block.address, block.size)
		}

		if memsim.AlignDown(block.address, uint(block.size)) != block.address {
			return errors.Errorf("the block at address %d is not aligned to its size %d", block.address, block.size)
		}

		nextAddress = block.address + block.size

		if block.free {
			freeCount++
			freeSize += block.size
		} else {
			allocCount++
		}
	}

	if nextAddress != m.size {
		return errors.Errorf("the full size of the metadata is %d, but the blocks only added up to %d", m.size, nextAddress)
	}

	if freeSize != m.SumFreeSize() {
		return errors.Errorf("the free size of the metadata is %d, but the free blocks only added up to %d", m.SumFreeSize(), freeSize)
	}

	if allocCount != m.allocCount {
		return errors.Errorf("the allocation count of the metadata is %d, but the taken blocks only added up to %d", m.allocCount, allocCount)
	}

	if freeCount != m.blocksFreeCount {
		return errors.Errorf("the free block count of the metadata is %d, but there were only %d free blocks", m.blocksFreeCount, freeCount)
	}

	return nil
}

func (m *BuddyBlockMetadata) AllocationCount() int {
	return m.allocCount
}

func (m *BuddyBlockMetadata) FreeBlockCount() int {
	return m.blocksFreeCount
}

func (m *BuddyBlockMetadata) SumFreeSize() int {
	return m.blocksFreeSize
}

func (m *BuddyBlockMetadata) IsEmpty() bool {
	return m.allocCount == 0
}

func (m *BuddyBlockMetadata) Allocate(size int) (int, error) {
	if size < 1 {
		return 0, errors.Errorf("Invalid allocation size: %d", size)
	}
	if size > m.Size() {
		return 0, cerrors.Wrapf(memsim.RequestTooLargeError, "allocation size is %d, region size is %d", size, m.Size())
	}

	memsim.DebugValidate(m)

	rounded := memsim.NextPow2(size)
	targetOrder := memsim.SizeOrder(rounded)

	// Check this order and higher ones for available blocks
	freeMap := m.isFreeBitmap >> targetOrder
	if freeMap == 0 {
		return 0, cerrors.Wrapf(memsim.NoSuitableBlockError, "rounded allocation size is %d", rounded)
	}

	order := targetOrder + bits.TrailingZeros64(freeMap)
	address := m.popLowestFreeBlock(order)

	// Split until the block fits the rounded request, keeping the upper half free
	for order > targetOrder {
		order--
		m.insertFreeBlock(address+(1<<order), 1<<order)
	}

	m.allocations.Put(address, rounded)
	m.allocCount++

	return address, nil
}

func (m *BuddyBlockMetadata) Free(address, size int) error {
	if size < 1 {
		return errors.Errorf("Invalid free size: %d", size)
	}
	if size > m.Size() {
		return cerrors.Wrapf(memsim.RequestTooLargeError, "free size is %d, region size is %d", size, m.Size())
	}

	memsim.DebugValidate(m)

	rounded := memsim.NextPow2(size)
	allocatedSize, ok := m.allocations.Get(address)
	if !ok || allocatedSize != rounded {
		return cerrors.Wrapf(memsim.InvalidFreeError, "no allocated block of size %d at address %d", rounded, address)
	}

	m.allocations.Delete(address)
	m.allocCount--

	// Merge with the buddy while it is free, keeping the lower address
	for rounded < m.Size() {
		buddy := address ^ rounded
		if !m.removeFreeBlock(buddy, rounded) {
			break
		}

		if buddy < address {
			address = buddy
		}
		rounded *= 2
	}

	m.insertFreeBlock(address, rounded)

	return nil
}

func (m *BuddyBlockMetadata) AllocatedSize(address int) (int, error) {
	size, ok := m.allocations.Get(address)
	if !ok {
		return 0, errors.Errorf("no allocated block exists at address %d", address)
	}

	return size, nil
}

func (m *BuddyBlockMetadata) popLowestFreeBlock(order int) int {
	bucket := m.freeLists[order]
	if len(bucket) == 0 {
		panic(fmt.Sprintf("free list index %d was listed as having free blocks, but no blocks were in the free list", order))
	}

	address := bucket[0]
	m.freeLists[order] = slices.Delete(bucket, 0, 1)
	if len(m.freeLists[order]) == 0 {
		m.isFreeBitmap &= ^(uint64(1) << order)
	}

	m.blocksFreeCount--
	m.blocksFreeSize -= 1 << order

	return address
}

func (m *BuddyBlockMetadata) removeFreeBlock(address, size int) bool {
	order := memsim.SizeOrder(size)
	bucket := m.freeLists[order]

	index, present := slices.BinarySearch(bucket, address)
	if !present {
		return false
	}

	m.freeLists[order] = slices.Delete(bucket, index, index+1)
	if len(m.freeLists[order]) == 0 {
		m.isFreeBitmap &= ^(uint64(1) << order)
	}

	m.blocksFreeCount--
	m.blocksFreeSize -= size

	return true
}

func (m *BuddyBlockMetadata) insertFreeBlock(address, size int) {
	order := memsim.SizeOrder(size)
	if order >= m.orderCount {
		panic("invalid free list index found for block")
	}

	bucket := m.freeLists[order]
	index, present := slices.BinarySearch(bucket, address)
	if present {
		panic("block is already free")
	}

	m.freeLists[order] = slices.Insert(bucket, index, address)
	m.isFreeBitmap |= uint64(1) << order
	m.blocksFreeCount++
	m.blocksFreeSize += size
}

func (m *BuddyBlockMetadata) collectBlocks() []buddyBlock {
	blocks := make([]buddyBlock, 0, m.allocCount+m.blocksFreeCount)

	m.allocations.Iter(func(address int, size int) (stop bool) {
		blocks = append(blocks, buddyBlock{address: address, size: size})
		return false
	})

	for order := 0; order < m.orderCount; order++ {
		for _, address := range m.freeLists[order] {
			blocks = append(blocks, buddyBlock{address: address, size: 1 << order, free: true})
		}
	}

	slices.SortFunc(blocks, func(a, b buddyBlock) bool {
		return a.address < b.address
	})

	return blocks
}

func (m *BuddyBlockMetadata) VisitAllBlocks(handleBlock func(address int, size int, free bool) error) error {
	for _, block := range m.collectBlocks() {
		err := handleBlock(block.address, block.size, block.free)
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *BuddyBlockMetadata) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, address int, size int)) {
	for _, block := range m.collectBlocks() {
		if !block.free {
			logFunc(logger, block.address, block.size)
		}
	}
}

func (m *BuddyBlockMetadata) AddDetailedStatistics(stats *memsim.DetailedStatistics) {
	stats.BlockCount++
	stats.BlockBytes += m.size

	m.allocations.Iter(func(address int, size int) (stop bool) {
		stats.AddAllocation(size)
		return false
	})

	for order := 0; order < m.orderCount; order++ {
		for range m.freeLists[order] {
			stats.AddFreeBlock(1 << order)
		}
	}
}

func (m *BuddyBlockMetadata) AddStatistics(stats *memsim.Statistics) {
	stats.BlockCount++
	stats.AllocationCount += m.allocCount
	stats.BlockBytes += m.size
	stats.AllocationBytes += m.size - m.SumFreeSize()
}

func (m *BuddyBlockMetadata) Clear() {
	m.allocCount = 0
	m.blocksFreeCount = 0
	m.blocksFreeSize = 0
	m.isFreeBitmap = 0
	m.freeLists = make([][]int, m.orderCount)
	m.allocations = swiss.NewMap[int, int](42)

	m.insertFreeBlock(0, m.size)
}

func (m *BuddyBlockMetadata) BlockJsonData(json jwriter.ObjectState) {
	var stats memsim.DetailedStatistics
	stats.Clear()
	m.AddDetailedStatistics(&stats)

	m.PrintDetailedMapHeader(json, stats.BlockBytes-stats.AllocationBytes, stats.AllocationCount, stats.FreeBlockCount)
}
