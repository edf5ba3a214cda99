package output

import (
	"fmt"
	"github.com/fatih/color"
	"io"
	"strings"
)

// MaxChildren is the number of children printed per node before the remainder is elided.
const MaxChildren = 15

// Printer renders value trees as an indented, optionally colored outline
type Printer struct {
	MaxChildren int
	complex     *color.Color
	primitive   *color.Color
	name        *color.Color
	typeName    *color.Color
	value       *color.Color
}

// NewPrinter creates a printer, colored output is controlled by useColor
func NewPrinter(useColor bool) *Printer {
	p := &Printer{
		MaxChildren: MaxChildren,
		complex:     color.New(color.FgHiBlue),
		primitive:   color.New(color.FgGreen),
		name:        color.New(color.Bold, color.FgHiYellow),
		typeName:    color.New(color.Italic, color.FgCyan),
		value:       color.New(color.FgHiMagenta),
	}
	for _, c := range []*color.Color{p.complex, p.primitive, p.name, p.typeName, p.value} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// PrintCapture writes every root node of a capture
func (p *Printer) PrintCapture(w io.Writer, capture *LineCapture) error {
	for _, node := range capture.Nodes {
		if err := p.Print(w, node); err != nil {
			return err
		}
	}
	return nil
}

// Print writes node and its descendants
func (p *Printer) Print(w io.Writer, node *Node) error {
	return p.print(w, node, 0)
}

func (p *Printer) print(w io.Writer, node *Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	marker := p.primitive.Sprint("•")
	if node.Kind == Complex {
		marker = p.complex.Sprint("▶")
	}
	line := indent + marker + " " + p.name.Sprint(node.Name) + ":"
	if node.Value != "" {
		line += " " + p.value.Sprint(node.Value)
	}
	if node.Type != "" {
		line += " " + p.typeName.Sprint("("+node.Type+")")
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	limit := p.MaxChildren
	if limit <= 0 {
		limit = MaxChildren
	}
	for i, child := range node.Children {
		if i == limit {
			_, err := fmt.Fprintln(w, strings.Repeat("  ", depth+1)+p.primitive.Sprint("•")+" [...]")
			return err
		}
		if err := p.print(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
