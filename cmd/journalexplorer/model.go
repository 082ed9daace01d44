package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/ilyalabun/btm/journal"
	"github.com/ilyalabun/btm/status"
)

// entry is one decoded record row, or a corruption marker standing in for
// an undecodable record.
type entry struct {
	index     int
	record    *journal.Record
	corrupted string
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Copy   key.Binding
	Toggle key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous record")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next record")),
	Copy:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy gtrid")),
	Toggle: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "toggle detail")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type model struct {
	filename string
	entries  []entry

	cursor     int
	showDetail bool
	detail     viewport.Model
	width      int
	height     int
	statusMsg  string
}

func newModel(filename string) (*model, error) {
	entries, err := loadEntries(filename)
	if err != nil {
		return nil, err
	}
	return &model{
		filename:   filename,
		entries:    entries,
		showDetail: true,
		detail:     viewport.New(0, 0),
	}, nil
}

func loadEntries(filename string) ([]entry, error) {
	it, err := journal.ReadFragment(filename, false)
	if err != nil {
		return nil, err
	}

	var entries []entry
	for index := 0; ; index++ {
		rec, err := it.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			entries = append(entries, entry{index: index, corrupted: err.Error()})
			if !errors.Is(err, journal.ErrCorruptedRecord) {
				// unreadable remainder; stop here
				return entries, nil
			}
			continue
		}
		entries = append(entries, entry{index: index, record: rec})
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail.Width = msg.Width
		m.detail.Height = detailHeight
		m.refreshDetail()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.refreshDetail()
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
				m.refreshDetail()
			}
		case key.Matches(msg, keys.Toggle):
			m.showDetail = !m.showDetail
		case key.Matches(msg, keys.Copy):
			m.copyGtrid()
		}
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *model) copyGtrid() {
	if len(m.entries) == 0 {
		return
	}
	e := m.entries[m.cursor]
	if e.record == nil {
		m.statusMsg = "corrupted record has no gtrid"
		return
	}
	if err := clipboard.WriteAll(e.record.Gtrid.String()); err != nil {
		m.statusMsg = "clipboard unavailable: " + err.Error()
		return
	}
	m.statusMsg = "gtrid copied to clipboard"
}

func (m *model) refreshDetail() {
	if len(m.entries) == 0 {
		m.detail.SetContent("journal is empty")
		return
	}
	e := m.entries[m.cursor]
	if e.record == nil {
		m.detail.SetContent(corruptedStyle.Render("corrupted: " + e.corrupted))
		return
	}

	rec := e.record
	var b strings.Builder
	fmt.Fprintf(&b, "status:    %s\n", status.Name(rec.Status))
	fmt.Fprintf(&b, "gtrid:     %s\n", rec.Gtrid)
	fmt.Fprintf(&b, "time:      %s\n", time.UnixMilli(rec.Time).UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "sequence:  %d\n", rec.SequenceNumber)
	fmt.Fprintf(&b, "crc32:     %#08x\n", rec.CRC32)
	fmt.Fprintf(&b, "names:     %s\n", strings.Join(rec.UniqueNames, ", "))
	m.detail.SetContent(b.String())
}
