package render

import (
	"bufio"
	"io"
)

// blankLineSpacer is the smallest spacer printed as an empty line.
const blankLineSpacer = 9

// WriteText prints w for a terminal. Stacks are flattened: columns are
// printed one below the other, separated by an empty line.
func WriteText(out io.Writer, w *Widget) error {
	bw := bufio.NewWriter(out)
	p := &printer{w: bw, blank: true}
	p.node(w.Root)
	if w.URL != "" {
		p.line("")
		p.line(w.URL)
	}
	return bw.Flush()
}

type printer struct {
	w     *bufio.Writer
	blank bool
}

func (p *printer) line(s string) {
	if s == "" {
		if p.blank {
			return
		}
		p.blank = true
	} else {
		p.blank = false
	}
	_, _ = p.w.WriteString(s)
	_ = p.w.WriteByte('\n')
}

func (p *printer) node(n *Node) {
	switch n.Kind {
	case KindText:
		p.line(n.Text)
	case KindSpacer:
		if n.Size >= blankLineSpacer {
			p.line("")
		}
	case KindStack:
		first := true
		for _, c := range n.Children {
			if n.Layout == Horizontal && c.Kind == KindStack && len(c.Texts()) > 0 {
				if !first {
					p.line("")
				}
				first = false
			}
			p.node(c)
		}
	}
}
