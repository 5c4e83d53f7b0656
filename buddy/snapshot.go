package buddy

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// AllocatedBlock describes a single live allocation within a Snapshot.
type AllocatedBlock struct {
	Address int
	Size    int
}

// FreeBucket collects the addresses of every free block of a single size within a Snapshot.
type FreeBucket struct {
	Size      int
	Addresses []int
}

// Snapshot is a point-in-time description of every block in a simulated region. Allocated
// blocks are ordered by ascending address, and free buckets are ordered by ascending size
// with the addresses inside each bucket ascending as well.
type Snapshot struct {
	TotalMemory int
	Allocated   []AllocatedBlock
	Free        []FreeBucket
}

// AllocatedMemory returns the total size of all live allocations in the snapshot
func (s Snapshot) AllocatedMemory() int {
	total := 0
	for _, block := range s.Allocated {
		total += block.Size
	}

	return total
}

// FreeMemory returns the total size of all free blocks in the snapshot
func (s Snapshot) FreeMemory() int {
	total := 0
	for _, bucket := range s.Free {
		total += bucket.Size * len(bucket.Addresses)
	}

	return total
}

// Snapshot captures the current contents of the region
func (a *Allocator) Snapshot() Snapshot {
	snapshot := Snapshot{
		TotalMemory: a.metadata.Size(),
	}

	freeAddresses := map[int][]int{}

	_ = a.metadata.VisitAllBlocks(func(address int, size int, free bool) error {
		if free {
			freeAddresses[size] = append(freeAddresses[size], address)
			return nil
		}

		snapshot.Allocated = append(snapshot.Allocated, AllocatedBlock{Address: address, Size: size})
		return nil
	})

	sizes := maps.Keys(freeAddresses)
	slices.Sort(sizes)

	for _, size := range sizes {
		snapshot.Free = append(snapshot.Free, FreeBucket{Size: size, Addresses: freeAddresses[size]})
	}

	return snapshot
}

// PrintDetailedMap writes a json description of the region and every block in it to the
// provided writer
func (a *Allocator) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	a.metadata.BlockJsonData(objState)

	a.printDetailedMapBlocks(objState)
	a.printDetailedMapFreeLists(objState)
}

func (a *Allocator) printDetailedMapBlocks(json jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = a.metadata.VisitAllBlocks(func(address int, size int, free bool) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Address").Int(address)
		obj.Name("Size").Int(size)
		obj.Name("Allocated").Bool(!free)

		return nil
	})
}

func (a *Allocator) printDetailedMapFreeLists(json jwriter.ObjectState) {
	listState := json.Name("FreeLists").Object()
	defer listState.End()

	for _, bucket := range a.Snapshot().Free {
		bucketState := listState.Name(strconv.Itoa(bucket.Size)).Array()
		for _, address := range bucket.Addresses {
			bucketState.Int(address)
		}
		bucketState.End()
	}
}

// BuildStateString returns PrintDetailedMap output as a json string
func (a *Allocator) BuildStateString() (string, error) {
	writer := jwriter.NewWriter()
	a.PrintDetailedMap(&writer)

	if writer.Error() != nil {
		return "", writer.Error()
	}

	return string(writer.Bytes()), nil
}
