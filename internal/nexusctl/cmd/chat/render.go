package chat

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/fintellect/nexus/internal/agentstream/artifact"
	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/internal/agentstream/turn"
	"github.com/mitchellh/go-wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	userLabel      = color.New(color.FgHiBlue, color.Bold)
	assistantLabel = color.New(color.FgHiMagenta, color.Bold)
	dim            = color.New(color.FgHiBlack)
	warnColor      = color.New(color.FgYellow, color.Bold)
	errColor       = color.New(color.FgRed, color.Bold)
	okColor        = color.New(color.FgGreen)

	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).PaddingLeft(2)
	fileStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
)

const clearLine = "\r\033[K"

func getTermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printSeparator(w io.Writer) {
	n := getTermWidth() - 2
	if n < 20 {
		n = 20
	}
	dim.Fprintln(w, strings.Repeat("-", n))
}

func printWelcomeBanner(w io.Writer, server, conversationID, title string) {
	sep := bannerStyle.Render(strings.Repeat("-", getTermWidth()))
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, bannerStyle.Render("Nexus Chat"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Server:       %s\n", server)
	fmt.Fprintf(w, "  Conversation: %s (%s)\n", conversationID, title)
	fmt.Fprintln(w)
	fmt.Fprintln(w, bannerStyle.Render("Commands:"))
	fmt.Fprintln(w, "  /new [title]   - start a new conversation")
	fmt.Fprintln(w, "  /switch <id>   - open another conversation")
	fmt.Fprintln(w, "  /tools         - list the tool calls of this conversation")
	fmt.Fprintln(w, "  /files         - list the files produced in this conversation")
	fmt.Fprintln(w, "  /clear         - clear the screen")
	fmt.Fprintln(w, "  /quit          - exit")
	fmt.Fprintln(w, sep)
	fmt.Fprintln(w)
}

func printUserMessage(w io.Writer, msg string) {
	printSeparator(w)
	userLabel.Fprintln(w, "you")
	fmt.Fprintln(w, msg)
}

func printAssistantLabel(w io.Writer) {
	printSeparator(w)
	assistantLabel.Fprintln(w, "agent")
}

// toolStartedLine is the overlay shown while a tool runs.
func toolStartedLine(rec toolcall.Record) string {
	return toolStyle.Render(fmt.Sprintf("» %s running", rec.ToolName))
}

// toolCompletedLine summarizes a finished tool, wrapped to width.
func toolCompletedLine(rec toolcall.Record, width int) string {
	mark := okColor.Sprint("ok")
	if rec.Status == event.ToolError {
		mark = errColor.Sprint("failed")
	}
	preview := rec.Content
	if rec.Error != "" {
		preview = rec.Error
	}
	preview = truncate(strings.TrimSpace(preview), 240)
	line := fmt.Sprintf("» %s %s", rec.ToolName, mark)
	if preview == "" {
		return toolStyle.Render(line)
	}
	if width < 24 {
		width = 24
	}
	return toolStyle.Render(line + "\n" + wordwrap.WrapString(preview, uint(width-4)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func printNotification(w io.Writer, n turn.Notification) {
	c := errColor
	if n.Level == turn.LevelWarning {
		c = warnColor
	}
	msg := n.Message
	if n.Kind == errno.KindToolExecution && msg == "" {
		msg = "tool failed"
	}
	c.Fprintf(w, "%s: %s\n", n.Title, msg)
}

func printToolTable(w io.Writer, records []toolcall.Record) {
	if len(records) == 0 {
		dim.Fprintln(w, "No tool calls yet.")
		return
	}
	width := getTermWidth()
	for i, rec := range records {
		status := string(rec.Status)
		if rec.Provisional() {
			status = "running"
		}
		fmt.Fprintf(w, "%2d. %s [%s]\n", i+1, rec.ToolName, status)
		if rec.Content != "" {
			dim.Fprintln(w, indent(wordwrap.WrapString(truncate(rec.Content, 400), uint(width-8)), "    "))
		}
	}
}

func printFiles(w io.Writer, files []artifact.Artifact) {
	if len(files) == 0 {
		dim.Fprintln(w, "No files yet.")
		return
	}
	for _, f := range files {
		fmt.Fprintf(w, "%s  %s  %d bytes\n", fileStyle.Render(f.Path), dim.Sprint(f.Language), len(f.Content))
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// renderMarkdownToTerminal renders markdown content for terminal display.
func renderMarkdownToTerminal(content string, width int) string {
	if width <= 0 {
		width = 76
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithColorProfile(termenv.ANSI256),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}
