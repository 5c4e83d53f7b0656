package main

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/powtwo/buddysim/buddy"
	"github.com/powtwo/buddysim/memsim"
	"io"
	"strconv"
	"strings"
)

// menu drives a single allocator through the interactive command loop, reading choices
// from in and writing all simulator output to out.
type menu struct {
	in        io.Reader
	out       io.Writer
	allocator *buddy.Allocator
	jsonOut   bool
}

// run executes the command loop until the user exits or the input is exhausted.
// Allocator failures are reported to the user and do not end the loop.
func (m *menu) run() error {
	scanner := bufio.NewScanner(m.in)

	for {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "Choose an option:")
		fmt.Fprintln(m.out, "1. Allocate Memory")
		fmt.Fprintln(m.out, "2. Free Memory")
		fmt.Fprintln(m.out, "3. Print Memory State")
		fmt.Fprintln(m.out, "4. Display Blocks by Size")
		fmt.Fprintln(m.out, "5. Exit")

		choice, err := m.promptInt(scanner, "Enter your choice: ")
		if err == nil {
			switch choice {
			case 1:
				err = m.allocate(scanner)
			case 2:
				err = m.free(scanner)
			case 3:
				err = m.showState()
			case 4:
				m.showBlocksBySize()
			case 5:
				fmt.Fprintln(m.out, "Exiting...")
				return nil
			default:
				fmt.Fprintln(m.out, "Invalid choice. Please enter a number between 1 and 5.")
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			var numErr *strconv.NumError
			if errors.As(err, &numErr) {
				fmt.Fprintln(m.out, "Invalid input. Please enter a number.")
				continue
			}

			return err
		}
	}
}

// promptInt writes a prompt and parses the next input line as an integer. It returns
// io.EOF when the input is exhausted.
func (m *menu) promptInt(scanner *bufio.Scanner, prompt string) (int, error) {
	fmt.Fprint(m.out, prompt)

	if !scanner.Scan() {
		err := scanner.Err()
		if err != nil {
			return 0, err
		}

		return 0, io.EOF
	}

	return strconv.Atoi(strings.TrimSpace(scanner.Text()))
}

func (m *menu) allocate(scanner *bufio.Scanner) error {
	size, err := m.promptInt(scanner, "Enter memory size to allocate (in KB): ")
	if err != nil {
		return err
	}

	address, err := m.allocator.Allocate(size)
	if err != nil {
		fmt.Fprintf(m.out, "Error: %s\n", err)
		return nil
	}

	fmt.Fprintf(m.out, "Allocated block of size: %dKB at address %dKB.\n", memsim.NextPow2(size), address)

	return nil
}

func (m *menu) free(scanner *bufio.Scanner) error {
	address, err := m.promptInt(scanner, "Enter memory address to free: ")
	if err != nil {
		return err
	}

	size, err := m.promptInt(scanner, "Enter memory size to free (in KB): ")
	if err != nil {
		return err
	}

	err = m.allocator.Free(address, size)
	if err != nil {
		fmt.Fprintf(m.out, "Error: %s\n", err)
		return nil
	}

	fmt.Fprintf(m.out, "Freed %dKB from address %dKB.\n", size, address)

	return nil
}

func (m *menu) showState() error {
	if m.jsonOut {
		state, err := m.allocator.BuildStateString()
		if err != nil {
			return err
		}

		fmt.Fprintln(m.out, state)

		return nil
	}

	fmt.Fprintln(m.out)
	printStateText(m.out, m.allocator.Snapshot())

	return nil
}

func (m *menu) showBlocksBySize() {
	printBlocksBySize(m.out, m.allocator.Snapshot())
}
