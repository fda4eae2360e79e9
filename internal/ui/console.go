// Package ui renders oblig's terminal output.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/me/oblig/pkg/model"
)

// Console writes styled output for the operator.
type Console struct {
	out io.Writer
	md  *glamour.TermRenderer
}

// NewConsole creates a Console. plain disables terminal styling of
// markdown, for pipes and tests.
func NewConsole(out io.Writer, plain bool) *Console {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(100)}
	if plain {
		opts = append(opts, glamour.WithStylePath("notty"))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		md = nil
	}
	return &Console{out: out, md: md}
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.out
}

// Printf writes unstyled text.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Markdown renders text as markdown, falling back to the raw text.
func (c *Console) Markdown(text string) {
	if c.md != nil {
		if rendered, err := c.md.Render(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

// Rule prints a horizontal separator with a title.
func (c *Console) Rule(title string) {
	line := ruleStyle.Render(strings.Repeat("─", 4))
	fmt.Fprintf(c.out, "%s %s %s\n", line, titleStyle.Render(title), line)
}

// Panel prints body inside a border.
func (c *Console) Panel(title, body string) {
	content := strings.TrimRight(body, "\n")
	if title != "" {
		content = titleStyle.Render(title) + "\n" + content
	}
	fmt.Fprintln(c.out, panelStyle.Render(content))
}

func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.out, successStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintln(c.out, warnStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Error(format string, args ...any) {
	fmt.Fprintln(c.out, errorStyle.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Info(format string, args ...any) {
	fmt.Fprintln(c.out, fmt.Sprintf(format, args...))
}

// Table prints rows under headers.
func (c *Console) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ruleStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(c.out, t.Render())
}

// FileTree renders the classified files of a checkout as an indented tree,
// directories first.
func FileTree(states []model.FileState) string {
	type node struct {
		children map[string]*node
		state    *model.FileState
	}
	root := &node{children: map[string]*node{}}
	for i := range states {
		n := root
		for _, part := range strings.Split(states[i].Path, "/") {
			child, ok := n.children[part]
			if !ok {
				child = &node{children: map[string]*node{}}
				n.children[part] = child
			}
			n = child
		}
		n.state = &states[i]
	}

	var b strings.Builder
	var walk func(n *node, depth int)
	walk = func(n *node, depth int) {
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			a, z := n.children[names[i]], n.children[names[j]]
			if (a.state == nil) != (z.state == nil) {
				return a.state == nil
			}
			return strings.ToLower(names[i]) < strings.ToLower(names[j])
		})
		for _, name := range names {
			child := n.children[name]
			indent := strings.Repeat("  ", depth)
			if child.state == nil {
				fmt.Fprintf(&b, "%s%s/\n", indent, name)
				walk(child, depth+1)
				continue
			}
			fmt.Fprintf(&b, "%s%s %s\n", indent, name, ClassStyle(child.state.Class).Render("["+string(child.state.Class)+"]"))
		}
	}
	walk(root, 0)
	return b.String()
}
