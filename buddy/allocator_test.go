package buddy_test

import (
	"math"
	"os"
	"testing"

	"github.com/powtwo/buddysim/buddy"
	"github.com/powtwo/buddysim/memsim"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestAllocatorRequiresPowerOfTwo(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	_, err := buddy.New(logger, 1000)
	require.ErrorIs(t, err, memsim.PowerOfTwoError)

	_, err = buddy.New(logger, 0)
	require.ErrorIs(t, err, memsim.PowerOfTwoError)

	_, err = buddy.New(logger, -1024)
	require.ErrorIs(t, err, memsim.PowerOfTwoError)

	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)
	require.Equal(t, 1024, allocator.TotalMemory())
	require.True(t, allocator.IsEmpty())
}

func TestAllocatorAllocateFree(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)

	address, err := allocator.Allocate(200)
	require.NoError(t, err)
	require.Equal(t, 0, address)

	size, err := allocator.AllocatedSize(address)
	require.NoError(t, err)
	require.Equal(t, 256, size)

	require.False(t, allocator.IsEmpty())

	var stats memsim.Statistics
	allocator.CalculateStatistics(&stats)

	require.Equal(t, memsim.Statistics{
		BlockCount:      1,
		BlockBytes:      1024,
		AllocationCount: 1,
		AllocationBytes: 256,
	}, stats)

	err = allocator.Validate()
	require.NoError(t, err)

	err = allocator.Free(address, 200)
	require.NoError(t, err)

	require.True(t, allocator.IsEmpty())

	allocator.CalculateStatistics(&stats)

	require.Equal(t, memsim.Statistics{
		BlockCount:      1,
		BlockBytes:      1024,
		AllocationCount: 0,
		AllocationBytes: 0,
	}, stats)
}

func TestAllocatorSnapshot(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)

	require.Equal(t, buddy.Snapshot{
		TotalMemory: 1024,
		Free: []buddy.FreeBucket{
			{Size: 1024, Addresses: []int{0}},
		},
	}, allocator.Snapshot())

	_, err = allocator.Allocate(200)
	require.NoError(t, err)

	_, err = allocator.Allocate(100)
	require.NoError(t, err)

	snapshot := allocator.Snapshot()

	require.Equal(t, buddy.Snapshot{
		TotalMemory: 1024,
		Allocated: []buddy.AllocatedBlock{
			{Address: 0, Size: 256},
			{Address: 256, Size: 128},
		},
		Free: []buddy.FreeBucket{
			{Size: 128, Addresses: []int{384}},
			{Size: 512, Addresses: []int{512}},
		},
	}, snapshot)

	require.Equal(t, 384, snapshot.AllocatedMemory())
	require.Equal(t, 640, snapshot.FreeMemory())
}

func TestAllocatorBuildStateString(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)

	_, err = allocator.Allocate(200)
	require.NoError(t, err)

	_, err = allocator.Allocate(100)
	require.NoError(t, err)

	stateString, err := allocator.BuildStateString()
	require.NoError(t, err)

	require.JSONEq(t, `{
		"TotalBytes": 1024,
		"FreeBytes": 640,
		"Allocations": 2,
		"FreeBlocks": 2,
		"Blocks": [
			{"Address": 0, "Size": 256, "Allocated": true},
			{"Address": 256, "Size": 128, "Allocated": true},
			{"Address": 384, "Size": 128, "Allocated": false},
			{"Address": 512, "Size": 512, "Allocated": false}
		],
		"FreeLists": {
			"128": [384],
			"512": [512]
		}
	}`, stateString)
}

func TestAllocatorDetailedStatistics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)

	_, err = allocator.Allocate(200)
	require.NoError(t, err)

	_, err = allocator.Allocate(100)
	require.NoError(t, err)

	var stats memsim.DetailedStatistics
	allocator.CalculateDetailedStatistics(&stats)

	require.Equal(t, memsim.DetailedStatistics{
		Statistics: memsim.Statistics{
			BlockCount:      1,
			BlockBytes:      1024,
			AllocationCount: 2,
			AllocationBytes: 384,
		},
		FreeBlockCount:    2,
		AllocationSizeMin: 128,
		AllocationSizeMax: 256,
		FreeBlockSizeMin:  128,
		FreeBlockSizeMax:  512,
	}, stats)

	err = allocator.Free(0, 200)
	require.NoError(t, err)

	err = allocator.Free(256, 100)
	require.NoError(t, err)

	allocator.CalculateDetailedStatistics(&stats)

	require.Equal(t, memsim.DetailedStatistics{
		Statistics: memsim.Statistics{
			BlockCount:      1,
			BlockBytes:      1024,
			AllocationCount: 0,
			AllocationBytes: 0,
		},
		FreeBlockCount:    1,
		AllocationSizeMin: math.MaxInt,
		AllocationSizeMax: 0,
		FreeBlockSizeMin:  1024,
		FreeBlockSizeMax:  1024,
	}, stats)
}

func TestAllocatorErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)

	_, err = allocator.Allocate(1025)
	require.ErrorIs(t, err, memsim.RequestTooLargeError)

	address, err := allocator.Allocate(1024)
	require.NoError(t, err)
	require.Equal(t, 0, address)

	_, err = allocator.Allocate(1)
	require.ErrorIs(t, err, memsim.NoSuitableBlockError)

	err = allocator.Free(0, 512)
	require.ErrorIs(t, err, memsim.InvalidFreeError)

	err = allocator.Free(512, 1024)
	require.ErrorIs(t, err, memsim.InvalidFreeError)

	err = allocator.Free(0, 1024)
	require.NoError(t, err)

	require.True(t, allocator.IsEmpty())
}

func TestAllocatorFragmentation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)

	address1, err := allocator.Allocate(512)
	require.NoError(t, err)
	require.Equal(t, 0, address1)

	address2, err := allocator.Allocate(512)
	require.NoError(t, err)
	require.Equal(t, 512, address2)

	err = allocator.Free(0, 512)
	require.NoError(t, err)

	// Half the region is free, but a full-region request cannot be merged out of it
	// while the other half is still allocated
	_, err = allocator.Allocate(1024)
	require.ErrorIs(t, err, memsim.NoSuitableBlockError)

	err = allocator.Free(512, 512)
	require.NoError(t, err)

	address3, err := allocator.Allocate(1024)
	require.NoError(t, err)
	require.Equal(t, 0, address3)
}
