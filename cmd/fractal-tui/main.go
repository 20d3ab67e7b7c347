package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/graph"
)

const (
	pollRate       = 2 * time.Second
	fetchTimeout   = 1500 * time.Millisecond
	maxActivities  = 20
	viewportHeight = 20
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(10)
	nodeStyle    = lipgloss.NewStyle().Width(36).Bold(true)
	actorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Width(16)
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type tickMsg time.Time

type dataMsg struct {
	stats  graph.StorageStats
	levels client.Levels
	outbox client.Outbox
	err    error
}

type model struct {
	api      *client.Client
	spinner  spinner.Model
	viewport viewport.Model
	stats    graph.StorageStats
	levels   client.Levels
	outbox   client.Outbox
	err      error
	ready    bool
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func initialModel(api *client.Client) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:      api,
		spinner:  s,
		viewport: newViewport(100),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, fetchData(m.api)
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.stats = msg.stats
			m.levels = msg.levels
			m.outbox = msg.outbox
			m.viewport.SetContent(renderActivity(m.outbox.OrderedItems))
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func renderActivity(items []client.OutboxItem) string {
	if len(items) == 0 {
		return subtleStyle.Render("No contributions yet.")
	}
	var sb strings.Builder
	for _, item := range items {
		ctx := ""
		if item.Object.FractalContext != nil {
			ctx = item.Object.FractalContext.String()
		}
		fmt.Fprintf(&sb, "%s %s %s %s\n",
			timeStyle.Render(item.Published.Local().Format("15:04:05")),
			nodeStyle.Render(item.Object.NodeID),
			actorStyle.Render(actorName(item.Actor)),
			contextStyle.Render(ctx),
		)
	}
	return sb.String()
}

// actorName strips the actor URL down to the user id.
func actorName(actor string) string {
	if i := strings.LastIndex(actor, "/"); i >= 0 && i < len(actor)-1 {
		return actor[i+1:]
	}
	return actor
}

func renderLevels(levels client.Levels) string {
	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Fractal Levels") + "\n\n")
	if len(levels.FractalLevels) == 0 {
		sb.WriteString(subtleStyle.Render("No nodes stored."))
		return sb.String()
	}
	lvls := append([]int(nil), levels.FractalLevels...)
	sort.Ints(lvls)
	for _, lvl := range lvls {
		stat := levels.LevelStatistics[fmt.Sprintf("level_%d", lvl)]
		fmt.Fprintf(&sb, "• Level %d %-14s %5d nodes\n", lvl, stat.Name, stat.Count)
	}
	return sb.String()
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting to %s...", m.spinner.View(), m.api.Endpoint())
	}

	topPane := paneStyle.Render(renderLevels(m.levels))
	header := headerStyle.Render(fmt.Sprintf("%s Contribution Stream", m.spinner.View()))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d Nodes • %d Contributions • %d Users",
			m.stats.TotalNodes+m.stats.TotalSubnodes, m.stats.TotalContributions, m.stats.TotalUsers))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress r to refresh, q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

func fetchData(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		stats, err := api.Stats(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		levels, err := api.Levels(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		outbox, err := api.Outbox(ctx, maxActivities)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{stats: stats, levels: levels, outbox: outbox}
	}
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	endpoint := flag.String("endpoint", client.DefaultEndpoint, "fractald base URL")
	flag.Parse()

	api := client.NewClient(*endpoint).WithRetry(client.NoRetry)
	p := tea.NewProgram(initialModel(api), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
