package main

import (
	"bytes"
	"github.com/powtwo/buddysim/buddy"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
	"io"
	"strings"
	"testing"
)

const menuText = `
Choose an option:
1. Allocate Memory
2. Free Memory
3. Print Memory State
4. Display Blocks by Size
5. Exit
Enter your choice: `

func runMenuScript(t *testing.T, jsonOut bool, script string) string {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard))
	allocator, err := buddy.New(logger, 1024)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	m := &menu{
		in:        strings.NewReader(script),
		out:       out,
		allocator: allocator,
		jsonOut:   jsonOut,
	}

	require.NoError(t, m.run())

	return out.String()
}

func TestMenuExit(t *testing.T) {
	output := runMenuScript(t, false, "5\n")

	require.Equal(t, menuText+"Exiting...\n", output)
}

func TestMenuAllocateAndFree(t *testing.T) {
	output := runMenuScript(t, false, "1\n200\n2\n0\n200\n5\n")

	expected := menuText +
		"Enter memory size to allocate (in KB): " +
		"Allocated block of size: 256KB at address 0KB.\n" +
		menuText +
		"Enter memory address to free: " +
		"Enter memory size to free (in KB): " +
		"Freed 200KB from address 0KB.\n" +
		menuText +
		"Exiting...\n"
	require.Equal(t, expected, output)
}

func TestMenuPrintState(t *testing.T) {
	output := runMenuScript(t, false, "1\n200\n3\n5\n")

	state := `
Total Memory: 1024KB
Allocated Memory: 256KB
Free Memory: 768KB
Free Blocks:
Block Size: 512KB, Allocated: false
Block Size: 256KB, Allocated: false
Block Size: 256KB, Allocated: true
`
	expected := menuText +
		"Enter memory size to allocate (in KB): " +
		"Allocated block of size: 256KB at address 0KB.\n" +
		menuText +
		state +
		menuText +
		"Exiting...\n"
	require.Equal(t, expected, output)
}

func TestMenuPrintStateJSON(t *testing.T) {
	output := runMenuScript(t, true, "3\n5\n")

	state := `{"TotalBytes":1024,"FreeBytes":1024,"Allocations":0,"FreeBlocks":1,` +
		`"Blocks":[{"Address":0,"Size":1024,"Allocated":false}],"FreeLists":{"1024":[0]}}`
	expected := menuText +
		state + "\n" +
		menuText +
		"Exiting...\n"
	require.Equal(t, expected, output)
}

func TestMenuBlocksBySize(t *testing.T) {
	output := runMenuScript(t, false, "1\n200\n4\n5\n")

	blocks := `
Blocks by Size:
Block Size: 512KB
  Address: 512KB, Allocated: False
Block Size: 256KB
  Address: 0KB, Allocated: True
  Address: 256KB, Allocated: False
Block Size: 128KB
`
	expected := menuText +
		"Enter memory size to allocate (in KB): " +
		"Allocated block of size: 256KB at address 0KB.\n" +
		menuText +
		blocks +
		menuText +
		"Exiting...\n"
	require.Equal(t, expected, output)
}

func TestMenuInvalidChoice(t *testing.T) {
	output := runMenuScript(t, false, "9\nabc\n5\n")

	expected := menuText +
		"Invalid choice. Please enter a number between 1 and 5.\n" +
		menuText +
		"Invalid input. Please enter a number.\n" +
		menuText +
		"Exiting...\n"
	require.Equal(t, expected, output)
}

func TestMenuNonNumericAtPrompts(t *testing.T) {
	output := runMenuScript(t, false, "1\nabc\n2\nxyz\n5\n")

	expected := menuText +
		"Enter memory size to allocate (in KB): " +
		"Invalid input. Please enter a number.\n" +
		menuText +
		"Enter memory address to free: " +
		"Invalid input. Please enter a number.\n" +
		menuText +
		"Exiting...\n"
	require.Equal(t, expected, output)
}

func TestMenuReportsAllocatorErrors(t *testing.T) {
	output := runMenuScript(t, false, "1\n2000\n2\n0\n100\n5\n")

	expected := menuText +
		"Enter memory size to allocate (in KB): " +
		"Error: allocation size is 2000, region size is 1024: requested size exceeds total memory\n" +
		menuText +
		"Enter memory address to free: " +
		"Enter memory size to free (in KB): " +
		"Error: no allocated block of size 128 at address 0: invalid free operation, address and size do not match\n" +
		menuText +
		"Exiting...\n"
	require.Equal(t, expected, output)
}

func TestMenuEndsAtInputEOF(t *testing.T) {
	output := runMenuScript(t, false, "1\n300\n")

	expected := menuText +
		"Enter memory size to allocate (in KB): " +
		"Allocated block of size: 512KB at address 0KB.\n" +
		menuText
	require.Equal(t, expected, output)
}

func TestMenuEndsAtEOFMidPrompt(t *testing.T) {
	output := runMenuScript(t, false, "2\n0\n")

	expected := menuText +
		"Enter memory address to free: " +
		"Enter memory size to free (in KB): "
	require.Equal(t, expected, output)
}
