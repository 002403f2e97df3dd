// Package surface builds the presentation of a comparison: embed URLs for
// the side-by-side, slider and cross-fade surfaces, and the HTML fragment
// hosts drop into their page.
package surface

import (
	"bytes"
	"fmt"
	"html/template"
)

// Endpoint is one side of a comparison.
type Endpoint struct {
	Timestamp  string `json:"timestamp"`
	CompactKey string `json:"compact_key"`
	Src        string `json:"src"`
}

// View is what a surface renders for one pair. MountKey changes with the
// pair; hosts key their iframes on it so content of a previous pair is
// never reused.
type View struct {
	Mode     string   `json:"mode"`
	From     Endpoint `json:"from"`
	To       Endpoint `json:"to"`
	MountKey string   `json:"mount_key"`
	Divider  int      `json:"divider"` // slider-overlay, percent of width
	Opacity  int      `json:"opacity"` // cross-fade, percent
}

// ReplayFunc builds the replay address of pageURL at compactTS.
type ReplayFunc func(compactTS, pageURL string) string

// New builds the view for pageURL between two snapshots.
func New(mode, pageURL string, from, to Endpoint, replay ReplayFunc) View {
	from.Src = replay(from.CompactKey, pageURL)
	to.Src = replay(to.CompactKey, pageURL)
	return View{
		Mode:     mode,
		From:     from,
		To:       to,
		MountKey: MountKey(from.CompactKey, to.CompactKey),
		Divider:  50,
		Opacity:  50,
	}
}

// MountKey identifies a pair for iframe re-mounting.
func MountKey(from, to string) string {
	return from + "-" + to
}

// Clamp bounds a percentage to [0,100].
func Clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// HTML renders the surface for v.Mode.
func (v View) HTML() (string, error) {
	name := v.Mode
	if templates.Lookup(name) == nil {
		return "", fmt.Errorf("surface: no template for mode %q", v.Mode)
	}
	v.Divider, v.Opacity = Clamp(v.Divider), Clamp(v.Opacity)
	return render(name, v)
}

// Placeholder renders the "select a comparison target" surface.
func Placeholder() string {
	s, _ := render("placeholder", nil)
	return s
}

// Loading renders the surface shown while a pipeline runs.
func Loading() string {
	s, _ := render("loading", nil)
	return s
}

// Failed renders an inline failure message.
func Failed(msg string) string {
	s, _ := render("failed", msg)
	return s
}

// Pixel renders a difference image given as a data: URI.
func Pixel(v View, dataURI string) (string, error) {
	return render("pixel-diff", struct {
		View
		Image template.URL
	}{v, template.URL(dataURI)})
}

// DOM renders two sandboxed srcdoc iframes. Sides that failed or are still
// loading show a placeholder instead.
func DOM(v View, from, to DOMSide) (string, error) {
	return render("dom-diff", struct {
		View
		Left, Right DOMSide
	}{v, from, to})
}

// DOMSide is the sanitised markup of one structural side.
type DOMSide struct {
	Loaded bool
	Err    string
	Markup string
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("surface: render %s: %w", name, err)
	}
	return buf.String(), nil
}
