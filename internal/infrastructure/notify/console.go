package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const barWidth = 30

// ConsolePresenter renders notifications as lines on a terminal.
type ConsolePresenter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsolePresenter creates a presenter writing to out.
func NewConsolePresenter(out io.Writer) *ConsolePresenter {
	return &ConsolePresenter{out: out}
}

func (p *ConsolePresenter) OnStart(n update.Notification) {
	p.println(titleStyle.Render(n.Title) + " " + pendingStyle.Render("◉ "+n.Content))
}

func (p *ConsolePresenter) OnProgress(n update.Notification) {
	filled := n.Percent * barWidth / 100
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + detailStyle.Render(strings.Repeat("·", barWidth-filled))
	p.println(barStyle.Render(bar) + " " + n.Content)
}

func (p *ConsolePresenter) OnFinish(n update.Notification) {
	p.println(successStyle.Render("✓ "+n.Content) + " " + detailStyle.Render(n.File))
}

func (p *ConsolePresenter) OnError(n update.Notification) {
	p.println(errorStyle.Render("✗ " + n.Content))
}

func (p *ConsolePresenter) OnCancel(n update.Notification) {
	p.println(warningStyle.Render("! " + n.Content))
}

func (p *ConsolePresenter) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}
