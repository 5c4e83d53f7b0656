package main

import (
	"fmt"
	"github.com/powtwo/buddysim/buddy"
	"io"
)

// breakdownSizes are the block sizes reported by the blocks-by-size display.
var breakdownSizes = []int{512, 256, 128}

// printStateText writes the memory state summary: the totals, then one line per free
// block from the largest size down, then one line per allocated block in address order.
func printStateText(out io.Writer, snapshot buddy.Snapshot) {
	fmt.Fprintf(out, "Total Memory: %dKB\n", snapshot.TotalMemory)
	fmt.Fprintf(out, "Allocated Memory: %dKB\n", snapshot.AllocatedMemory())
	fmt.Fprintf(out, "Free Memory: %dKB\n", snapshot.FreeMemory())
	fmt.Fprintln(out, "Free Blocks:")

	for i := len(snapshot.Free) - 1; i >= 0; i-- {
		bucket := snapshot.Free[i]
		for range bucket.Addresses {
			fmt.Fprintf(out, "Block Size: %dKB, Allocated: false\n", bucket.Size)
		}
	}

	for _, block := range snapshot.Allocated {
		fmt.Fprintf(out, "Block Size: %dKB, Allocated: true\n", block.Size)
	}
}

// printBlocksBySize writes the allocated and free addresses of every block matching one
// of the fixed breakdown sizes, allocated blocks first within each size.
func printBlocksBySize(out io.Writer, snapshot buddy.Snapshot) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Blocks by Size:")

	for _, size := range breakdownSizes {
		fmt.Fprintf(out, "Block Size: %dKB\n", size)

		for _, block := range snapshot.Allocated {
			if block.Size == size {
				fmt.Fprintf(out, "  Address: %dKB, Allocated: True\n", block.Address)
			}
		}

		for _, bucket := range snapshot.Free {
			if bucket.Size != size {
				continue
			}

			for _, address := range bucket.Addresses {
				fmt.Fprintf(out, "  Address: %dKB, Allocated: False\n", address)
			}
		}
	}
}
