package livebind

import (
	"strconv"

	"github.com/livefir/livebind/dom"
)

// Sizing modes understood by StyleSizer.
const (
	SizingFixed         = "fixed"
	SizingStretchWidth  = "stretch_width"
	SizingStretchHeight = "stretch_height"
	SizingStretchBoth   = "stretch_both"
)

// SizingPolicy describes how the rendered root is sized by the host layout.
// Zero dimensions are unset.
type SizingPolicy struct {
	Mode      string `yaml:"sizing_mode" json:"sizing_mode" validate:"omitempty,oneof=fixed stretch_width stretch_height stretch_both"`
	Width     int    `yaml:"width" json:"width" validate:"gte=0"`
	Height    int    `yaml:"height" json:"height" validate:"gte=0"`
	MinWidth  int    `yaml:"min_width" json:"min_width" validate:"gte=0"`
	MaxWidth  int    `yaml:"max_width" json:"max_width" validate:"gte=0"`
	MinHeight int    `yaml:"min_height" json:"min_height" validate:"gte=0"`
	MaxHeight int    `yaml:"max_height" json:"max_height" validate:"gte=0"`
}

// ViewModel is the view-side state templates read through ${model.x}.
type ViewModel struct {
	Background string         `yaml:"background" json:"background"`
	CSSClasses []string       `yaml:"css_classes" json:"css_classes"`
	Sizing     SizingPolicy   `yaml:"sizing" json:"sizing"`
	Props      map[string]any `yaml:"props" json:"props"`
}

// Vars flattens the view model into the variable table used by templates and
// scripts. Props never shadow the built-in keys.
func (m ViewModel) Vars() map[string]any {
	vars := make(map[string]any, len(m.Props)+9)
	for k, v := range m.Props {
		vars[k] = v
	}
	classes := make([]any, len(m.CSSClasses))
	for i, c := range m.CSSClasses {
		classes[i] = c
	}
	vars["background"] = m.Background
	vars["css_classes"] = classes
	vars["sizing_mode"] = m.Sizing.Mode
	vars["width"] = m.Sizing.Width
	vars["height"] = m.Sizing.Height
	vars["min_width"] = m.Sizing.MinWidth
	vars["max_width"] = m.Sizing.MaxWidth
	vars["min_height"] = m.Sizing.MinHeight
	vars["max_height"] = m.Sizing.MaxHeight
	return vars
}

// Layout is the host sizing system.
type Layout interface {
	// ApplySize sizes the rendered root after a full render.
	ApplySize(el dom.Element, policy SizingPolicy)
	// Invalidate asks the host to lay the view out again.
	Invalidate()
}

// StyleSizer is a Layout that writes inline CSS sizes. OnInvalidate, when
// set, is called from Invalidate.
type StyleSizer struct {
	OnInvalidate func()
}

// ApplySize implements Layout.
func (s StyleSizer) ApplySize(el dom.Element, p SizingPolicy) {
	switch p.Mode {
	case SizingStretchWidth:
		el.SetStyle("width", "100%")
		setPx(el, "height", p.Height)
	case SizingStretchHeight:
		setPx(el, "width", p.Width)
		el.SetStyle("height", "100%")
	case SizingStretchBoth:
		el.SetStyle("width", "100%")
		el.SetStyle("height", "100%")
	default:
		setPx(el, "width", p.Width)
		setPx(el, "height", p.Height)
	}
	setPx(el, "min-width", p.MinWidth)
	setPx(el, "max-width", p.MaxWidth)
	setPx(el, "min-height", p.MinHeight)
	setPx(el, "max-height", p.MaxHeight)
}

// Invalidate implements Layout.
func (s StyleSizer) Invalidate() {
	if s.OnInvalidate != nil {
		s.OnInvalidate()
	}
}

func setPx(el dom.Element, prop string, v int) {
	if v > 0 {
		el.SetStyle(prop, strconv.Itoa(v)+"px")
	}
}
