package scheme

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/render"
)

const (
	// Spacing separates rows and columns.
	Spacing = 24

	// entryGap precedes every entry of a column except the first.
	entryGap = 3
)

var spacerSizes = map[string]int{
	"spacer":       render.Flexible,
	"smallspacer":  3,
	"mediumspacer": 9,
	"bigspacer":    18,
}

// InterpreterConfig holds configuration for the interpreter.
type InterpreterConfig struct {
	Logger zerolog.Logger
}

// Interpreter draws layouts.
type Interpreter struct {
	slots  map[string]slotFunc
	logger zerolog.Logger
}

// NewInterpreter creates an interpreter with the built-in slots.
func NewInterpreter(cfg InterpreterConfig) *Interpreter {
	return &Interpreter{slots: slots(), logger: cfg.Logger}
}

// Known reports whether name is a slot or spacer directive.
func (in *Interpreter) Known(name string) bool {
	name = strings.ToLower(name)
	_, slot := in.slots[name]
	_, spacer := spacerSizes[name]
	return slot || spacer || name == "nospacer"
}

// Render draws layout into c. Rows are stacked vertically, columns side by side.
func (in *Interpreter) Render(c render.Container, layout Layout, d *Data) error {
	main := c.AddStack(render.Vertical)

	for i, row := range layout {
		if i > 0 {
			main.AddSpacer(Spacing)
		}
		r := main.AddStack(render.Horizontal)
		r.AddStack(render.Vertical).AddSpacer(render.Flexible)

		for j, column := range row {
			if j > 0 {
				r.AddSpacer(Spacing)
			}
			col := r.AddStack(render.Vertical)
			col.AddStack(render.Horizontal).AddSpacer(render.Flexible)

			if err := in.renderColumn(col, column, d); err != nil {
				return fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
		}
	}
	return nil
}

func (in *Interpreter) renderColumn(col render.Container, column Column, d *Data) error {
	noGap := true

	for _, entry := range column {
		name := strings.ToLower(entry.Name)

		if !in.Known(name) {
			in.logger.Debug().Str("slot", entry.Name).Msg("skipping unknown slot")
			continue
		}

		if noGap || strings.HasSuffix(name, "spacer") {
			noGap = false
		} else {
			col.AddSpacer(entryGap)
		}

		if name == "nospacer" {
			noGap = true
			continue
		}
		if size, ok := spacerSizes[name]; ok {
			col.AddSpacer(size)
			continue
		}

		if err := in.slots[name](col, d, entry.Args); err != nil {
			return fmt.Errorf("slot %s: %w", entry.Name, err)
		}
	}
	return nil
}
