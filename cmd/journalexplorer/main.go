// journalexplorer is an interactive terminal browser for transaction
// journal fragment files. It decodes the records of a fragment offline and
// lets an operator page through them, inspect the resource names of each
// record and copy gtrids for cross-referencing with application logs.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: journalexplorer <fragment-file>")
		os.Exit(2)
	}

	m, err := newModel(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
