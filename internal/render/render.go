// Package render is the widget surface the scheme interpreter draws on: a tree
// of stacks, texts and spacers that can be printed as text or JSON.
package render

import "encoding/json"

// Style is the text style of a line.
type Style string

const (
	StyleTitle     Style = "title"
	StyleSubtitle  Style = "subtitle"
	StyleStatistic Style = "statistic"
	StyleHighlight Style = "highlight"
)

// Layout is the direction of a stack.
type Layout string

const (
	Vertical   Layout = "vertical"
	Horizontal Layout = "horizontal"
)

// Flexible is the size of a spacer that takes all remaining space.
const Flexible = 0

// Background is the widget background color.
const Background = "#811a0e"

// Container receives widget content.
type Container interface {
	AddText(text string, style Style)
	AddSpacer(size int)
	AddStack(layout Layout) Container
}

// Kind is the type of a Node.
type Kind string

const (
	KindStack  Kind = "stack"
	KindText   Kind = "text"
	KindSpacer Kind = "spacer"
)

// Node is one element of the widget tree.
type Node struct {
	Kind     Kind    `json:"kind"`
	Layout   Layout  `json:"layout,omitempty"`
	Text     string  `json:"text,omitempty"`
	Style    Style   `json:"style,omitempty"`
	Size     int     `json:"size,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

func (n *Node) AddText(text string, style Style) {
	n.Children = append(n.Children, &Node{Kind: KindText, Text: text, Style: style})
}

func (n *Node) AddSpacer(size int) {
	n.Children = append(n.Children, &Node{Kind: KindSpacer, Size: size})
}

func (n *Node) AddStack(layout Layout) Container {
	child := &Node{Kind: KindStack, Layout: layout}
	n.Children = append(n.Children, child)
	return child
}

// Texts returns the text nodes below n in document order.
func (n *Node) Texts() []*Node {
	var out []*Node
	n.walk(func(c *Node) {
		if c.Kind == KindText {
			out = append(out, c)
		}
	})
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.walk(fn)
	}
}

// Widget is the root of a rendered widget.
type Widget struct {
	// URL is opened when the widget is tapped.
	URL        string `json:"url,omitempty"`
	Background string `json:"background"`
	Root       *Node  `json:"root"`
}

// NewWidget creates an empty widget with a vertical root.
func NewWidget() *Widget {
	return &Widget{
		Background: Background,
		Root:       &Node{Kind: KindStack, Layout: Vertical},
	}
}

func (w *Widget) AddText(text string, style Style)  { w.Root.AddText(text, style) }
func (w *Widget) AddSpacer(size int)                { w.Root.AddSpacer(size) }
func (w *Widget) AddStack(layout Layout) Container { return w.Root.AddStack(layout) }

// MarshalIndent renders w as indented JSON.
func (w *Widget) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(w, "", "  ")
}
