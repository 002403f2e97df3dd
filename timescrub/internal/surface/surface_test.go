package surface

import (
	"strings"
	"testing"
)

func replay(ts, u string) string { return "http://archive.local/web/" + ts + "/" + u }

func view(mode string) View {
	return New(mode, "example.com",
		Endpoint{Timestamp: "2024-01-01T00:00:00", CompactKey: "20240101000000"},
		Endpoint{Timestamp: "2024-06-01T00:00:00", CompactKey: "20240601000000"},
		replay)
}

func TestNew_EmbedURLsAndMountKey(t *testing.T) {
	v := view("side-by-side")
	if v.From.Src != "http://archive.local/web/20240101000000/example.com" {
		t.Errorf("from src: got %q", v.From.Src)
	}
	if v.To.Src != "http://archive.local/web/20240601000000/example.com" {
		t.Errorf("to src: got %q", v.To.Src)
	}
	if v.MountKey != "20240101000000-20240601000000" {
		t.Errorf("mount key: got %q", v.MountKey)
	}

	// WHAT: a new pair yields a new mount key.
	// WHY: hosts re-mount iframes on it so stale content is never shown.
	other := New("side-by-side", "example.com",
		Endpoint{CompactKey: "20250101000000"}, Endpoint{CompactKey: "20240601000000"}, replay)
	if other.MountKey == v.MountKey {
		t.Error("mount key must change with the pair")
	}
}

func TestClamp(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 42: 42, 100: 100, 250: 100}
	for in, want := range cases {
		if got := Clamp(in); got != want {
			t.Errorf("Clamp(%d): got %d, want %d", in, got, want)
		}
	}
}

func TestHTML_Surfaces(t *testing.T) {
	for _, mode := range []string{"side-by-side", "slider-overlay", "cross-fade"} {
		v := view(mode)
		out, err := v.HTML()
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if strings.Count(out, "<iframe") != 2 {
			t.Errorf("%s: want two iframes:\n%s", mode, out)
		}
		if !strings.Contains(out, v.From.Src) || !strings.Contains(out, v.To.Src) {
			t.Errorf("%s: embed urls missing", mode)
		}
		if !strings.Contains(out, `data-mount="20240101000000-20240601000000"`) {
			t.Errorf("%s: mount key missing", mode)
		}
	}
}

func TestHTML_SliderClipsToDivider(t *testing.T) {
	v := view("slider-overlay")
	v.Divider = 130
	out, err := v.HTML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "inset(0 0% 0 0)") || !strings.Contains(out, `value="100"`) {
		t.Fatalf("divider not clamped:\n%s", out)
	}
}

func TestHTML_CrossFadeOpacity(t *testing.T) {
	v := view("cross-fade")
	v.Opacity = 25
	out, err := v.HTML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "opacity:0.25") {
		t.Fatalf("opacity missing:\n%s", out)
	}
}

func TestHTML_UnknownMode(t *testing.T) {
	if _, err := view("nope").HTML(); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestPlaceholder(t *testing.T) {
	if !strings.Contains(Placeholder(), "Select a comparison target") {
		t.Fatal("placeholder text missing")
	}
}

func TestPixel_DataURI(t *testing.T) {
	out, err := Pixel(view("pixel-diff"), "data:image/png;base64,AAAA")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `src="data:image/png;base64,AAAA"`) {
		t.Fatalf("data uri filtered:\n%s", out)
	}
}

func TestDOM_SandboxedAndEscaped(t *testing.T) {
	out, err := DOM(view("dom-diff"),
		DOMSide{Loaded: true, Markup: `<p class="x">hi</p>`},
		DOMSide{Err: "archive: not found"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `sandbox=""`) {
		t.Error("iframe must be sandboxed")
	}
	if strings.Contains(out, `srcdoc="<p`) {
		t.Error("srcdoc markup must be attribute-escaped")
	}
	if !strings.Contains(out, "Content unavailable: archive: not found") {
		t.Errorf("error placeholder missing:\n%s", out)
	}
}

func TestFailed_Escaped(t *testing.T) {
	out := Failed("<b>capture</b>")
	if strings.Contains(out, "<b>") || !strings.Contains(out, "Comparison failed") {
		t.Fatalf("failed surface: %s", out)
	}
	if !strings.Contains(Loading(), "ts-loading") {
		t.Fatal("loading surface missing")
	}
}
