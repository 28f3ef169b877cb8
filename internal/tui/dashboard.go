// internal/tui/dashboard.go
// Package tui renders the interactive benchmark dashboard: the paginated run
// table, the model comparison matrix, and the accuracy trend chart. The
// dashboard polls the published index at a fixed interval so it reflects new
// runs without restarting.
package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sndlab/sndbench/internal/aggregate"
	"github.com/sndlab/sndbench/internal/appconfig"
	"github.com/sndlab/sndbench/internal/util"
	"github.com/sndlab/sndbench/internal/views"
)

// screen identifies the dashboard view currently shown.
type screen int

const (
	screenTable screen = iota
	screenCompare
	screenTrend
)

var (
	headerStyle   = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("229"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(1)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// refreshMsg triggers a reload of the published index.
type refreshMsg time.Time

// indexMsg carries a freshly loaded index, or the load error.
type indexMsg struct {
	index aggregate.Index
	err   error
}

// model is the dashboard's Bubble Tea model.
type model struct {
	cfg appconfig.Config

	view    *views.TableView
	compare *views.ComparisonView
	rows    []views.Row

	table  table.Model
	filter textinput.Model

	screen    screen
	filtering bool
	err       error

	width, height int
}

// Run starts the dashboard and blocks until the user quits.
func Run(cfg appconfig.Config) error {
	program := tea.NewProgram(initialModel(cfg), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// initialModel creates the dashboard model with default values.
func initialModel(cfg appconfig.Config) *model {
	filter := textinput.New()
	filter.Placeholder = "filter by model name"
	filter.CharLimit = 64

	columns := []table.Column{
		{Title: "Run", Width: 22},
		{Title: "Model", Width: 28},
		{Title: "Quant", Width: 8},
		{Title: "Size", Width: 6},
		{Title: "Avg Acc", Width: 8},
		{Title: "Timestamp", Width: 20},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true)
	styles.Selected = selectedStyle
	t.SetStyles(styles)

	return &model{
		cfg:     cfg,
		view:    views.NewTableView(nil, cfg.TablePageSize()),
		compare: views.NewComparisonView(nil),
		table:   t,
		filter:  filter,
	}
}

// loadIndexCmd reads the published run index from the site directory.
func loadIndexCmd(siteDir string) tea.Cmd {
	return func() tea.Msg {
		path := filepath.Join(siteDir, aggregate.IndexArtifactName)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return indexMsg{index: aggregate.Index{}}
			}
			return indexMsg{err: fmt.Errorf("read index: %w", err)}
		}
		var index aggregate.Index
		if err := json.Unmarshal(data, &index); err != nil {
			return indexMsg{err: fmt.Errorf("parse index: %w", err)}
		}
		return indexMsg{index: index}
	}
}

// refreshCmd schedules the next poll of the site directory.
func refreshCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Init loads the index immediately and starts the poll loop.
func (m *model) Init() tea.Cmd {
	return tea.Batch(loadIndexCmd(m.cfg.SiteDirPath()), refreshCmd(m.cfg.PollInterval()))
}

// Update is the central update function for the dashboard.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetHeight(m.cfg.TablePageSize() + 1)
		return m, nil

	case refreshMsg:
		return m, tea.Batch(loadIndexCmd(m.cfg.SiteDirPath()), refreshCmd(m.cfg.PollInterval()))

	case indexMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.applyIndex(msg.index)
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

// applyIndex rebuilds the projections, keeping the current sort and filter.
func (m *model) applyIndex(index aggregate.Index) {
	m.rows = views.BuildRows(index.Runs)

	column, descending := m.view.SortState()
	modelFilter := m.view.ModelFilter()
	page := m.view.Page()

	m.view = views.NewTableView(m.rows, m.cfg.TablePageSize())
	m.view.SetModelFilter(modelFilter)
	m.view.Restore(column, descending)
	m.view.SetPage(page)

	selected := m.compare.Selected()
	m.compare = views.NewComparisonView(m.rows)
	m.compare.Select(selected...)

	m.syncTable()
}

func (m *model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		m.view.SetModelFilter(m.filter.Value())
		m.syncTable()
		return m, nil
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.Reset()
		m.view.SetModelFilter("")
		m.syncTable()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m *model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.screen = (m.screen + 1) % 3
		return m, nil
	case "r":
		return m, loadIndexCmd(m.cfg.SiteDirPath())
	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, nil
	case "left", "h":
		m.view.PrevPage()
		m.syncTable()
		return m, nil
	case "right", "l":
		m.view.NextPage()
		m.syncTable()
		return m, nil
	case "t":
		m.clickColumn(views.ColumnTimestamp)
		return m, nil
	case "a":
		m.clickColumn(views.ColumnAccuracy)
		return m, nil
	case "u":
		m.clickColumn(views.ColumnQuantization)
		return m, nil
	case "z":
		m.clickColumn(views.ColumnSize)
		return m, nil
	case "m":
		m.clickColumn(views.ColumnModel)
		return m, nil
	case "c":
		m.toggleSelection()
		return m, nil
	case "enter":
		if m.screen == screenCompare {
			m.compare.SetMode(views.AllRuns)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// clickColumn applies a sort click to whichever projection is on screen.
func (m *model) clickColumn(column views.Column) {
	if m.screen == screenCompare {
		m.compare.ClickColumn(column)
		return
	}
	m.view.ClickColumn(column)
	m.syncTable()
}

// toggleSelection adds or removes the highlighted run's model from the
// comparison selection.
func (m *model) toggleSelection() {
	rows := m.view.Rows()
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(rows) {
		return
	}
	m.compare.Toggle(rows[cursor].Model)
}

// syncTable pushes the current page into the bubbles table.
func (m *model) syncTable() {
	pageRows := m.view.Rows()
	rows := make([]table.Row, 0, len(pageRows))
	for _, row := range pageRows {
		rows = append(rows, table.Row{
			row.RunID,
			row.ShortName,
			row.Quantization,
			sizeLabel(row.ParamSizeB),
			fmt.Sprintf("%.4f", row.AverageAccuracy),
			row.Timestamp,
		})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(0)
	}
}

func sizeLabel(sizeB float64) string {
	if sizeB <= 0 {
		return "-"
	}
	return fmt.Sprintf("%gB", sizeB)
}

// View renders the dashboard.
func (m *model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("sndbench dashboard"))
	b.WriteString("\n\n")

	switch m.screen {
	case screenCompare:
		b.WriteString(m.compareView())
	case screenTrend:
		b.WriteString(m.trendView())
	default:
		b.WriteString(m.tableView())
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render(
		"q quit | tab switch view | / filter | ←/→ page | t/a/u/z/m sort | c compare | r refresh"))
	return b.String()
}

func (m *model) tableView() string {
	var b strings.Builder
	if m.filtering {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString(m.table.View())
	column, descending := m.view.SortState()
	b.WriteString(fmt.Sprintf("\nPage %d/%d (%d runs)%s",
		m.view.Page(), m.view.TotalPages(), m.view.TotalRows(), sortLabel(column, descending)))
	return b.String()
}

func (m *model) compareView() string {
	rows := m.compare.Rows()
	if len(rows) == 0 {
		return "No models selected. Press c on a run to add its model."
	}

	var b strings.Builder
	column, descending := m.compare.SortState()
	b.WriteString(fmt.Sprintf("Comparison (%d models)%s\n\n", len(rows), sortLabel(column, descending)))
	for _, row := range rows {
		b.WriteString(fmt.Sprintf("  %-30s %-8s %.4f  %s\n",
			util.TruncateRunes(row.ShortName, 30), row.Quantization, row.AverageAccuracy, row.Timestamp))
	}
	return b.String()
}

func (m *model) trendView() string {
	points := views.TrendSeries(m.rows)
	if len(points) == 0 {
		return "No runs yet."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Accuracy trend (last %d runs, oldest first)\n\n", len(points)))
	for _, point := range points {
		width := util.Max(0, util.Min(50, int(point.AccuracyPct/2)))
		b.WriteString(fmt.Sprintf("  %-22s %s %.1f%%\n",
			point.RunID, barStyle.Render(strings.Repeat("█", width)), point.AccuracyPct))
	}
	return b.String()
}

func sortLabel(column views.Column, descending bool) string {
	if column == "" {
		return ""
	}
	arrow := "▼"
	if !descending {
		arrow = "▲"
	}
	return fmt.Sprintf("  sorted by %s %s", column, arrow)
}
