package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/units"
)

// errSelectionCancelled reports that the operator backed out of the disk
// picker. Callers treat it as a clean no-op.
var errSelectionCancelled = errors.New("disk selection cancelled")

type diskItem struct {
	disk diskutil.Disk
}

func (i diskItem) Title() string {
	return fmt.Sprintf("%s  %s", i.disk.Device, i.disk.Name)
}

func (i diskItem) Description() string {
	return fmt.Sprintf("%s, %s, %s", units.FormatSize(i.disk.SizeBytes), i.disk.BusProtocol, i.disk.Scheme)
}

func (i diskItem) FilterValue() string {
	return i.disk.Device + " " + i.disk.Name
}

type pickerTheme struct {
	Title lipgloss.Style
	Help  lipgloss.Style
	Frame lipgloss.Style
}

func defaultPickerTheme() pickerTheme {
	return pickerTheme{
		Title: lipgloss.NewStyle().Bold(true),
		Help:  lipgloss.NewStyle().Faint(true),
		Frame: lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")),
	}
}

type pickerModel struct {
	theme  pickerTheme
	list   list.Model
	choice *diskutil.Disk
}

func newPickerModel(disks []diskutil.Disk) pickerModel {
	items := make([]list.Item, 0, len(disks))
	for _, d := range disks {
		items = append(items, diskItem{disk: d})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select the disk to erase"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	return pickerModel{theme: defaultPickerTheme(), list: l}
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "enter":
			if it, ok := m.list.SelectedItem().(diskItem); ok {
				d := it.disk
				m.choice = &d
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	header := m.theme.Title.Render("External Disks") + "\n"
	help := m.theme.Help.Render("↑/↓ navigate • enter select • / search • q cancel")
	return m.theme.Frame.Render(header + "\n" + m.list.View() + "\n" + help)
}

// pickDiskInteractive runs the full-screen picker and returns the chosen
// disk, or errSelectionCancelled when the operator quits.
func pickDiskInteractive(disks []diskutil.Disk) (diskutil.Disk, error) {
	p := tea.NewProgram(newPickerModel(disks), tea.WithAltScreen())
	out, err := p.Run()
	if err != nil {
		return diskutil.Disk{}, fmt.Errorf("failed to run disk picker: %w", err)
	}
	final, ok := out.(pickerModel)
	if !ok || final.choice == nil {
		return diskutil.Disk{}, errSelectionCancelled
	}
	return *final.choice, nil
}

// pickDiskNumbered presents a numbered list and re-prompts until the input
// parses to a listed disk. End of input aborts the selection.
func pickDiskNumbered(in io.Reader, disks []diskutil.Disk) (diskutil.Disk, error) {
	items := make([]string, 0, len(disks))
	for _, d := range disks {
		items = append(items, fmt.Sprintf("%s  %s (%s)", d.Device, d.Name, units.FormatSize(d.SizeBytes)))
	}
	PrintNumberedList(items, 1)

	reader := bufio.NewReader(in)
	for {
		fmt.Printf("Select a disk [1-%d]: ", len(disks))
		line, err := reader.ReadString('\n')
		if err != nil {
			return diskutil.Disk{}, errSelectionCancelled
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(disks) {
			PrintWarning(fmt.Sprintf("Invalid selection %q", strings.TrimSpace(line)))
			continue
		}
		return disks[n-1], nil
	}
}

// pickDisk selects a disk from the candidates: the picker on a terminal, the
// numbered prompt otherwise or when the picker is disabled.
func pickDisk(in io.Reader, disks []diskutil.Disk, noInput bool) (diskutil.Disk, error) {
	if !noInput && isatty.IsTerminal(os.Stdin.Fd()) {
		return pickDiskInteractive(disks)
	}
	return pickDiskNumbered(in, disks)
}
