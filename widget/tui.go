package widget

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Terminal cells are mapped to pixels at this ratio when placing the widget.
const (
	cellW = 8
	cellH = 16

	saveDelay = 400 * time.Millisecond
)

var glyphs = []rune(" ▁▂▃▄▅▆▇█")

// Callbacks lets the terminal widget act on the rest of the program.
type Callbacks struct {
	OnMove  func(x, y int)
	OnAbort func()
}

type stateMsg State
type saveMsg struct{ seq int }
type tickMsg time.Time

// Dot shading from the center outwards, per status.
var (
	dotColorsGreen = []string{"", "#A7F3D0", "#6EE7B7", "#34D399", ColorGreen, "#059669", "#047857", "236"}
	dotColorsRed   = []string{"", "#FECACA", "#FCA5A5", "#F87171", ColorRed, "#DC2626", "#B91C1C", "236"}
	dotStyles      [2][8]lipgloss.Style
	dotBg          [2][8][8]lipgloss.Style

	borderStyles [2]lipgloss.Style
	waveStyles   [2]lipgloss.Style
	timerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldHelp     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func init() {
	for s, palette := range [][]string{dotColorsGreen, dotColorsRed} {
		for i, c := range palette {
			if c == "" {
				continue
			}
			dotStyles[s][i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
			for j, bg := range palette {
				if bg != "" {
					dotBg[s][i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(bg))
				}
			}
		}
	}
	for s, c := range []string{ColorGreen, ColorRed} {
		borderStyles[s] = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(c)).
			Padding(0, 1)
		waveStyles[s] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}
}

type tuiModel struct {
	st            State
	frame         int
	width, height int
	hotkey        string
	cb            Callbacks

	// pending move in pixels, applied on top of st until the saved
	// position comes back through the config
	dx, dy int
	seq    int
}

// TUI draws the widget in the terminal with bubbletea.
type TUI struct {
	p *tea.Program
}

func NewTUI(hotkey string, cb Callbacks) *TUI {
	m := tuiModel{hotkey: hotkey, cb: cb, st: State{Visible: true}}
	return &TUI{p: tea.NewProgram(m, tea.WithAltScreen())}
}

// Run blocks until the user quits.
func (t *TUI) Run() error {
	_, err := t.p.Run()
	return err
}

func (t *TUI) Render(s State) { t.p.Send(stateMsg(s)) }
func (t *TUI) Quit()          { t.p.Quit() }

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if m.cb.OnAbort != nil {
				m.cb.OnAbort()
			}
		case "up", "down", "left", "right":
			// the indicator only moves while minimal
			if m.st.Mode != Minimal {
				return m, nil
			}
			return m.move(msg.String())
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case stateMsg:
		prevX, prevY := m.st.X, m.st.Y
		m.st = State(msg)
		if m.st.X != prevX || m.st.Y != prevY {
			m.dx, m.dy = 0, 0
		}

	case saveMsg:
		if msg.seq != m.seq || (m.dx == 0 && m.dy == 0) {
			return m, nil
		}
		x, y := m.position()
		if m.cb.OnMove != nil {
			m.cb.OnMove(x, y)
		}
	}
	return m, nil
}

func (m tuiModel) move(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up":
		m.dy -= cellH
	case "down":
		m.dy += cellH
	case "left":
		m.dx -= cellW
	case "right":
		m.dx += cellW
	}
	x, y := m.position()
	m.dx, m.dy = x-m.st.X, y-m.st.Y
	m.seq++
	seq := m.seq
	return m, tea.Tick(saveDelay, func(time.Time) tea.Msg { return saveMsg{seq: seq} })
}

// position is the on-screen pixel position, never negative.
func (m tuiModel) position() (int, int) {
	return max(m.st.X+m.dx, 0), max(m.st.Y+m.dy, 0)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var body string
	if m.st.Visible {
		if m.st.Mode == Expanded {
			body = renderExpanded(m.st)
		} else {
			body = renderDot(m.frame, m.st.Status)
		}
		label := m.st.Label
		if m.st.Reason != "" && m.st.Label != "error("+m.st.Reason+")" {
			label += " · " + m.st.Reason
		}
		body += "\n" + labelStyle.Render(label)
	}

	x, y := m.position()
	col, row := x/cellW, y/cellH
	lines := strings.Split(body, "\n")
	col = min(col, max(m.width-lipgloss.Width(body), 0))
	row = min(row, max(m.height-len(lines)-2, 0))

	var sb strings.Builder
	sb.WriteString(strings.Repeat("\n", row))
	pad := strings.Repeat(" ", col)
	for _, l := range lines {
		sb.WriteString(pad + l + "\n")
	}

	used := row + len(lines)
	if gap := m.height - used - 1; gap > 0 {
		sb.WriteString(strings.Repeat("\n", gap))
	}
	sb.WriteString(boldHelp.Render("Hold "+m.hotkey) + helpStyle.Render(" to dictate · esc abort · arrows move · q quit"))
	return sb.String()
}

func statusIndex(s Status) int {
	if s == Red {
		return 1
	}
	return 0
}

// renderExpanded draws the timer and waveform inside a bordered bar.
func renderExpanded(st State) string {
	const cols = ExpandedWidth/cellW - 4
	secs := int(st.Elapsed.Seconds())
	timer := fmt.Sprintf("%02d:%02d", secs/60, secs%60)

	var wave strings.Builder
	n := cols - len(timer) - 1
	levels := st.Waveform
	if len(levels) > n {
		levels = levels[len(levels)-n:]
	}
	for i := len(levels); i < n; i++ {
		wave.WriteRune(glyphs[0])
	}
	for _, l := range levels {
		wave.WriteRune(glyph(l))
	}

	idx := statusIndex(st.Status)
	line := timerStyle.Render(timer) + " " + waveStyles[idx].Render(wave.String())
	return borderStyles[idx].Render(line)
}

func glyph(level float64) rune {
	i := int(math.Round(level * float64(len(glyphs)-1)))
	return glyphs[min(max(i, 0), len(glyphs)-1)]
}

// renderDot draws a breathing disc roughly MinimalSize pixels across using
// half-block characters.
func renderDot(frame int, status Status) string {
	const charsW = MinimalSize / cellW
	const charsH = MinimalSize / cellH
	const pixW = charsW
	const pixH = charsH * 2

	idx := statusIndex(status)
	centerX := float64(pixW)/2 - 0.5
	centerY := float64(pixH)/2 - 0.5
	breathe := math.Sin(float64(frame)*0.08) * 0.15

	radii := []float64{0.5, 1.0, 1.5, 2.0, 2.5, 2.9, 3.3}

	pixels := make([][]int, pixH)
	for y := range pixels {
		pixels[y] = make([]int, pixW)
		for x := range pixels[y] {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for i, r := range radii {
				if dist < r+breathe {
					pixels[y][x] = i + 1
					break
				}
			}
		}
	}

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
			case top == bot:
				result.WriteString(dotStyles[idx][top].Render("█"))
			case bot == 0:
				result.WriteString(dotStyles[idx][top].Render("▀"))
			case top == 0:
				result.WriteString(dotStyles[idx][bot].Render("▄"))
			default:
				result.WriteString(dotBg[idx][top][bot].Render("▀"))
			}
		}
		if cy < charsH-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}
