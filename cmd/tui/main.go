package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"protpred/internal/results"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	surfaceColor   = lipgloss.Color("#1F2937") // Dark gray
	textColor      = lipgloss.Color("#F3F4F6") // Light gray
	mutedColor     = lipgloss.Color("#9CA3AF") // Muted gray
	borderColor    = lipgloss.Color("#374151") // Border gray
)

var (
	containerStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(surfaceColor).
			Padding(0, 1)

	sequenceStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(lipgloss.Color("#111827")).
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	positiveStyle = lipgloss.NewStyle().Foreground(secondaryColor).Bold(true)
	negativeStyle = lipgloss.NewStyle().Foreground(mutedColor)
	labelStyle    = lipgloss.NewStyle().Foreground(mutedColor)
)

// threshold splits positive from negative calls when colouring probabilities.
const threshold = 0.5

// table is one prediction file, usually one model's output for a set.
type table struct {
	name string
	path string
	rows []results.Row
	byID map[string]results.Row
}

func newTable(path string, rows []results.Row) table {
	t := table{name: tableName(path), path: path, rows: rows, byID: make(map[string]results.Row, len(rows))}
	for _, r := range rows {
		t.byID[r.ID] = r
	}
	// highest probability first, file order among equals
	sort.SliceStable(t.rows, func(i, j int) bool { return t.rows[i].Prob > t.rows[j].Prob })
	return t
}

// tableName derives the model name from a "<set>.<model>.csv" file name.
func tableName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".csv")
	if i := strings.IndexByte(base, '.'); i >= 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return base
}

func loadTables(paths []string, sep rune) ([]table, error) {
	tables := make([]table, 0, len(paths))
	for _, p := range paths {
		rows, err := results.ReadFile(p, sep)
		if err != nil {
			return nil, err
		}
		tables = append(tables, newTable(p, rows))
	}
	return tables, nil
}

type listItem struct {
	row results.Row
}

func (i listItem) FilterValue() string { return i.row.ID }

func (i listItem) Title() string { return i.row.ID }

func (i listItem) Description() string {
	return fmt.Sprintf("p %s    beg %d    end %d", probStyle(i.row.Prob).Render(fmt.Sprintf("%.3f", i.row.Prob)), i.row.Beg, i.row.End)
}

func probStyle(p float64) lipgloss.Style {
	if p >= threshold {
		return positiveStyle
	}
	return negativeStyle
}

type model struct {
	list          list.Model
	tables        []table
	current       int
	showHelp      bool
	width         int
	height        int
	selectedIndex int
}

func newModel(tables []table) model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(true)
	m := model{list: l, tables: tables}
	m.loadCurrent()
	return m
}

// loadCurrent fills the list from the selected table.
func (m *model) loadCurrent() {
	if len(m.tables) == 0 {
		m.list.Title = "No predictions"
		m.list.SetItems(nil)
		return
	}
	t := m.tables[m.current]
	items := make([]list.Item, len(t.rows))
	for i, r := range t.rows {
		items[i] = listItem{row: r}
	}
	m.list.Title = t.name
	m.list.SetItems(items)
	m.list.ResetSelected()
	m.selectedIndex = 0
}

// cycleTable switches the list to the next loaded table.
func (m model) cycleTable() model {
	if len(m.tables) == 0 {
		return m
	}
	m.current = (m.current + 1) % len(m.tables)
	m.loadCurrent()
	return m
}

func (m model) selectTable(i int) model {
	if i < 0 || i >= len(m.tables) || i == m.current {
		return m
	}
	m.current = i
	m.loadCurrent()
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// left panel takes 1/3 of the width
		m.list.SetWidth(msg.Width / 3)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch k := msg.String(); k {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "h":
			m.showHelp = !m.showHelp
			return m, nil
		case "tab":
			return m.cycleTable(), nil
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			return m.selectTable(int(k[0] - '1')), nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	m.selectedIndex = m.list.Index()
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpModal()
	}
	main := lipgloss.JoinHorizontal(lipgloss.Top, m.renderLeftPanel(), m.renderRightPanel())
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m model) renderLeftPanel() string {
	return containerStyle.
		Width(m.width/3 - 2).
		Height(m.height - 4).
		Render(m.list.View())
}

func (m model) renderRightPanel() string {
	panel := containerStyle.Width(m.width*2/3 - 2).Height(m.height - 4)
	sel, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return panel.Render("No prediction selected")
	}
	return panel.Render(strings.Join(m.buildRightLines(sel.row), "\n"))
}

// buildRightLines renders the detail pane for one row: header, coordinates,
// the wrapped fragment and the same sequence's score in every other table.
func (m model) buildRightLines(r results.Row) []string {
	lines := []string{
		titleStyle.Render(r.ID),
		labelStyle.Render("probability ") + probStyle(r.Prob).Render(fmt.Sprintf("%.3f", r.Prob)),
		labelStyle.Render("window ") + windowText(r),
		"",
		lipgloss.NewStyle().Foreground(accentColor).Bold(true).Render("Fragment:"),
	}

	width := m.width*2/3 - 8
	if width < 10 {
		width = 10
	}
	frag := sequenceStyle.Width(width).Render(wrap(r.Frag, width-2))
	lines = append(lines, strings.Split(frag, "\n")...)

	if len(m.tables) > 1 {
		lines = append(lines, "", labelStyle.Render("Across models:"))
		for i, t := range m.tables {
			other, ok := t.byID[r.ID]
			mark := "  "
			if i == m.current {
				mark = "> "
			}
			if !ok {
				lines = append(lines, mark+t.name+"  "+negativeStyle.Render("n/a"))
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s  %s  %d-%d", mark, t.name,
				probStyle(other.Prob).Render(fmt.Sprintf("%.3f", other.Prob)), other.Beg, other.End))
		}
	}
	return lines
}

func windowText(r results.Row) string {
	if r.End < 0 {
		return fmt.Sprintf("%d- (shorter than the window)", r.Beg)
	}
	return fmt.Sprintf("%d-%d", r.Beg, r.End)
}

// wrap breaks s into lines of at most n runes.
func wrap(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	var b strings.Builder
	for len(s) > n {
		b.WriteString(s[:n])
		b.WriteByte('\n')
		s = s[n:]
	}
	b.WriteString(s)
	return b.String()
}

func (m model) renderStatusBar() string {
	total := 0
	name := "-"
	if len(m.tables) > 0 {
		total = len(m.tables[m.current].rows)
		name = m.tables[m.current].name
	}
	leftInfo := fmt.Sprintf("%d/%d sequences", m.selectedIndex+1, total)
	centerInfo := fmt.Sprintf("Model: %s (%d/%d)", name, m.current+1, len(m.tables))
	rightInfo := "'tab' next model | 'h' help | 'q' quit"

	spacing := m.width - len(leftInfo) - len(centerInfo) - len(rightInfo) - 6
	var statusContent string
	if spacing > 0 {
		leftSpacing := spacing / 2
		statusContent = leftInfo + strings.Repeat(" ", leftSpacing) + centerInfo + strings.Repeat(" ", spacing-leftSpacing) + rightInfo
	} else {
		// narrow terminals
		statusContent = fmt.Sprintf("%s | %s", leftInfo, centerInfo)
	}
	return statusBarStyle.Width(m.width).Render(statusContent)
}

func (m model) renderHelpModal() string {
	var names []string
	for i, t := range m.tables {
		names = append(names, fmt.Sprintf("  %d            %s", i+1, t.name))
	}
	helpContent := `Prediction Browser - Help

Navigation:
  up/down, j/k   Navigate list
  /              Filter by sequence id

Models:
  tab            Next model
` + strings.Join(names, "\n") + `

General:
  h              Toggle this help
  q, Ctrl+C      Quit
`
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(1, 2).
		Background(surfaceColor).
		Foreground(textColor).
		Width(60).
		Render(helpContent)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func newRootCmd() *cobra.Command {
	var sep string
	cmd := &cobra.Command{
		Use:           "protpred-tui <result.csv>...",
		Short:         "Browse prediction tables written by protpred",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sep == `\t` {
				sep = "\t"
			}
			r := []rune(sep)
			if len(r) != 1 {
				return fmt.Errorf("separator must be a single character, got %q", sep)
			}
			tables, err := loadTables(args, r[0])
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(newModel(tables), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&sep, "sep", `\t`, "column separator of the tables")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
