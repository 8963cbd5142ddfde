package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/diagramir/pkg/classify"
	"github.com/matzehuels/diagramir/pkg/enrich"
	"github.com/matzehuels/diagramir/pkg/ir"
)

// out receives status lines. Graphs and classify results go to stdout.
var out io.Writer = os.Stderr

var (
	colorAccent = lipgloss.Color("36")
	colorOK     = lipgloss.Color("35")
	colorWarn   = lipgloss.Color("220")
	colorFail   = lipgloss.Color("167")
	colorValue  = lipgloss.Color("255")
	colorLabel  = lipgloss.Color("245")
	colorMuted  = lipgloss.Color("240")
)

// StyleDim renders secondary text.
var StyleDim = lipgloss.NewStyle().Foreground(colorMuted)

var (
	styleAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	styleOK      = lipgloss.NewStyle().Foreground(colorOK)
	styleWarn    = lipgloss.NewStyle().Foreground(colorWarn)
	styleFail    = lipgloss.NewStyle().Foreground(colorFail)
	styleValue   = lipgloss.NewStyle().Foreground(colorValue)
	styleLabel   = lipgloss.NewStyle().Foreground(colorLabel)
	styleKey     = styleLabel.Width(12)
	styleHeading = styleAccent.Bold(true)

	// styleIconSpinner colors spinner frames.
	styleIconSpinner = styleAccent
)

const arrow = "→"

func status(icon string, style lipgloss.Style, format string, args ...any) {
	fmt.Fprintln(out, style.Render(icon)+" "+fmt.Sprintf(format, args...))
}

func printSuccess(format string, args ...any) { status("✓", styleOK, format, args...) }
func printError(format string, args ...any)   { status("✗", styleFail, format, args...) }
func printInfo(format string, args ...any)    { status("›", styleLabel, format, args...) }

func printWarning(format string, args ...any) {
	status("!", styleWarn, "%s", styleWarn.Render(fmt.Sprintf(format, args...)))
}

// printDetail prints an indented, muted line under the previous status.
func printDetail(format string, args ...any) {
	fmt.Fprintln(out, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Fprintln(out, "  "+StyleDim.Render(arrow)+" "+styleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(out, styleKey.Render(key)+" "+styleValue.Render(value))
}

// printStats prints "  3 nodes · 2 edges · 1 groups · fresh" and the kind
// breakdown below it.
func printStats(s enrich.Stats, cached bool) {
	source := styleLabel.Render("fresh")
	if cached {
		source = styleOK.Render("cached")
	}
	sep := StyleDim.Render(" · ")
	line := StyleDim.Render(fmt.Sprintf("%d nodes", s.Nodes)) + sep +
		StyleDim.Render(fmt.Sprintf("%d edges", s.Edges)) + sep +
		StyleDim.Render(fmt.Sprintf("%d groups", s.Groups)) + sep + source
	fmt.Fprintln(out, "  "+line)

	if kinds := kindSummary(s); kinds != "" {
		printDetail("%s", kinds)
	}
}

// kindSummary renders "Database 2, Service 3" in name order.
func kindSummary(s enrich.Stats) string {
	kinds := make([]ir.Kind, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s %d", k, s.Kinds[k])
	}
	return strings.Join(parts, ", ")
}

// printClassification prints one classify result to stdout, e.g.
// "Redis → Cache (primary: redis)".
func printClassification(label string, r classify.Result) {
	kind := string(r.Kind)
	if r.Subkind != "" {
		kind += "/" + r.Subkind
	}
	how := string(r.Tier)
	if r.Token != "" {
		how += ": " + r.Token
	}
	fmt.Fprintln(stdout, styleHeading.Render(label)+" "+StyleDim.Render(arrow)+" "+
		styleAccent.Render(kind)+" "+StyleDim.Render("("+how+")"))
}
