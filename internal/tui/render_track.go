package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/Iron-Ham/standsim/internal/sim"
	"github.com/Iron-Ham/standsim/internal/stand"
	"github.com/Iron-Ham/standsim/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

const (
	// trackRows is the number of text rows of the track; stands sit on the
	// top, middle and bottom rows.
	trackRows = 7
	minTrack  = 20

	agentGlyph   = "│"
	waitingGlyph = "┃"
	railGlyph    = "·"
	signalGlyph  = "█"
	freeGlyph    = "□"
	heldGlyph    = "■"
)

// View renders the frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(styles.TrackBox.Render(renderTrack(m.snap, m.columns(), m.lateralSpan)))
	b.WriteString("\n")
	b.WriteString(renderStands(m.snap.Stands))
	if m.showLegend {
		b.WriteString("\n")
		b.WriteString(renderLegend())
	}
	b.WriteString("\n")
	b.WriteString(styles.HelpBar.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderHeader() string {
	active := 0
	for _, a := range m.snap.Agents {
		if !a.Finished {
			active++
		}
	}
	title := styles.Header.Render("standsim")
	status := styles.StatusBar.Render(fmt.Sprintf("agents=%d waiting=%d", active, m.snap.Waiting))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", styles.PhaseBadge(m.snap.Phase), "  ", status)
}

// columns returns the width of the track in cells.
func (m Model) columns() int {
	cols := m.trackWidth
	if cols <= 0 {
		// border and padding of TrackBox
		cols = m.width - 4
	}
	return max(cols, minTrack)
}

// renderTrack draws agents, the signal and the stands on a grid. The last
// column holds the stands.
func renderTrack(snap sim.Snapshot, cols int, span float64) string {
	cols = max(cols, minTrack)
	grid := make([][]string, trackRows)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = styles.TrackRail.Render(railGlyph)
		}
	}

	track := snap.Track
	signal := styles.Fg(styles.PhaseColor(snap.Phase)).Render(signalGlyph)
	midCol := column(track.Midpoint, track.Start, track.End, cols-1)
	for r := trackRows/2 - 1; r <= trackRows/2+1; r++ {
		grid[r][midCol] = signal
	}

	for _, a := range snap.Agents {
		if a.Finished || !a.Active {
			continue
		}
		col := column(a.Position, track.Start, track.End, cols-1)
		row := laneRow(a.Lateral, span)
		glyph := agentGlyph
		if a.Waiting {
			glyph = waitingGlyph
		}
		grid[row][col] = styles.Fg(lipgloss.Color(a.Color.Hex())).Render(glyph)
	}

	for _, s := range snap.Stands {
		glyph := freeGlyph
		if s.Occupied {
			glyph = heldGlyph
		}
		grid[standRow(s.ID)][cols-1] = styles.Fg(styles.StandColor(s.ID)).Render(glyph)
	}

	lines := make([]string, trackRows)
	for r, row := range grid {
		lines[r] = strings.Join(row, "")
	}
	return strings.Join(lines, "\n")
}

// column maps a track coordinate onto [0, last].
func column(pos, start, end float64, last int) int {
	if end <= start || last <= 0 {
		return 0
	}
	c := int(math.Round((pos - start) / (end - start) * float64(last)))
	return min(max(c, 0), last)
}

// laneRow maps a lateral offset onto a row; positive offsets are drawn
// towards the top.
func laneRow(lateral, span float64) int {
	mid := trackRows / 2
	if span <= 0 {
		return mid
	}
	r := mid - int(math.Round(lateral/span*float64(mid)))
	return min(max(r, 0), trackRows-1)
}

func standRow(id stand.ID) int {
	switch id {
	case stand.A:
		return 0
	case stand.C:
		return trackRows - 1
	default:
		return trackRows / 2
	}
}

func renderStands(slots []stand.Slot) string {
	parts := make([]string, 0, len(slots))
	for _, s := range slots {
		label := styles.Fg(styles.StandColor(s.ID)).Bold(true).Render(s.ID.String())
		state := styles.Muted.Render("free")
		if s.Occupied {
			state = styles.Text.Render(s.Holder)
		}
		parts = append(parts, fmt.Sprintf("%s %s  waiting %d  served %d", label, state, s.Waiters, s.Served))
	}
	return strings.Join(parts, "   ")
}

func renderLegend() string {
	lines := []string{
		styles.Muted.Render("signal: ") + styles.PhaseBadge(0) + " → A  " + styles.PhaseBadge(1) + " → C  " + styles.PhaseBadge(2) + " → straight",
		styles.Muted.Render(agentGlyph + " moving   " + waitingGlyph + " waiting for stand   " + freeGlyph + " free stand   " + heldGlyph + " occupied stand"),
	}
	return strings.Join(lines, "\n")
}
