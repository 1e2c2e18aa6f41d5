package effects

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/smazurov/videofx/internal/frame"
	"github.com/smazurov/videofx/internal/hostui"
	"github.com/smazurov/videofx/internal/interceptors"
)

func TestNegateExample(t *testing.T) {
	inv := NewInvert()
	inv.SetEffect(KindNegate)

	data := []byte{0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	if err := inv.Preprocess(frame.View{Data: data, Height: 2, Stride: 4}); err != nil {
		t.Fatal(err)
	}

	want := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(data, want) {
		t.Errorf("expected % x, got % x", want, data)
	}
}

func TestNegateInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, geom := range []struct{ height, stride int }{
		{1, 1}, {2, 4}, {3, 7}, {16, 64}, {240, 960},
	} {
		data := make([]byte, geom.height*geom.stride)
		rng.Read(data)
		orig := bytes.Clone(data)
		v := frame.View{Data: data, Height: geom.height, Stride: geom.stride}

		Negate(v)
		Negate(v)

		if !bytes.Equal(data, orig) {
			t.Errorf("%dx%d: double negate did not restore the buffer", geom.height, geom.stride)
		}
	}
}

func TestNegateTouchesPadding(t *testing.T) {
	// 1 pixel of 24bpp per row, stride padded to 4.
	data := []byte{1, 2, 3, 0, 4, 5, 6, 0}
	Negate(frame.View{Data: data, Height: 2, Stride: 4})
	if data[3] != 0xFF || data[7] != 0xFF {
		t.Errorf("expected padding bytes flipped, got % x", data)
	}
}

func TestNegateOnlyCoversHeight(t *testing.T) {
	data := []byte{0, 0, 0, 0, 0xAA}
	Negate(frame.View{Data: data, Height: 2, Stride: 2})
	if data[4] != 0xAA {
		t.Error("bytes past height*stride must be untouched")
	}
}

func TestDisabledLeavesBuffer(t *testing.T) {
	inv := NewInvert()
	inv.SetEffect(KindNegate)
	inv.Disable()

	rng := rand.New(rand.NewSource(2))
	data := make([]byte, 64)
	rng.Read(data)
	orig := bytes.Clone(data)

	if err := inv.Preprocess(frame.View{Data: data, Height: 4, Stride: 16}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, orig) {
		t.Error("disabled interceptor modified the buffer")
	}
}

func TestEnableWithNoEffect(t *testing.T) {
	inv := NewInvert()
	inv.Enable()

	data := []byte{1, 2, 3, 4}
	_ = inv.Preprocess(frame.View{Data: data, Height: 1, Stride: 4})
	if !bytes.Equal(data, []byte{1, 2, 3, 4}) {
		t.Error("KindNone must not modify the buffer")
	}
}

func TestInvertRegisters(t *testing.T) {
	r := interceptors.NewRegistry()
	if err := r.Register(NewInvert()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := len(r.Query(interceptors.Preprocessing)); got != 1 {
		t.Errorf("expected 1 preprocessing interceptor, got %d", got)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindNone, false},
		{"none", KindNone, false},
		{"Negate", KindNegate, false},
		{" invert ", KindNegate, false},
		{"sepia", KindNone, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestApply(t *testing.T) {
	inv := NewInvert()
	if err := Apply(inv, Config{Effect: "negate"}); err != nil {
		t.Fatal(err)
	}
	if !inv.Enabled() || inv.Effect() != KindNegate {
		t.Error("expected negate enabled")
	}
	if err := Apply(inv, Config{Effect: "none"}); err != nil {
		t.Fatal(err)
	}
	if inv.Enabled() {
		t.Error("expected disabled")
	}
	if err := Apply(inv, Config{Effect: "blur"}); err == nil {
		t.Error("expected error for unknown effect")
	}
}

func TestPluginCommands(t *testing.T) {
	menu := hostui.NewMenu(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p := NewPlugin(nil)

	if err := p.InitUI(menu); err != nil {
		t.Fatal(err)
	}
	cmds := menu.Commands(hostui.SiteOptions)
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if !cmds[0].Checked || cmds[0].Label != "No Filter" {
		t.Errorf("expected No Filter checked initially, got %+v", cmds[0])
	}

	if _, err := menu.Invoke("options/negate"); err != nil {
		t.Fatal(err)
	}
	if !p.Invert().Enabled() || p.Invert().Effect() != KindNegate {
		t.Error("negate command did not enable the effect")
	}

	if _, err := menu.Invoke("options/none"); err != nil {
		t.Fatal(err)
	}
	if p.Invert().Enabled() {
		t.Error("none command did not disable the effect")
	}

	if got := p.GetInterceptors(); len(got) != 1 || got[0] != interceptors.Interceptor(p.Invert()) {
		t.Errorf("unexpected interceptors %v", got)
	}
}

func TestPluginInitUITwice(t *testing.T) {
	menu := hostui.NewMenu(nil, nil)
	p := NewPlugin(nil)
	if err := p.InitUI(menu); err != nil {
		t.Fatal(err)
	}
	if err := p.InitUI(menu); err == nil {
		t.Error("expected duplicate command error")
	}
}

func TestCommandID(t *testing.T) {
	if got := CommandID(KindNegate); got != "options/negate" {
		t.Errorf("expected options/negate, got %s", got)
	}
	if got := CommandID(KindNone); got != "options/none" {
		t.Errorf("expected options/none, got %s", got)
	}
}
