package compose

import (
	"errors"
	"testing"

	"github.com/tilecraft/vtcompose/internal/tile"
)

func TestParseFillType(t *testing.T) {
	tests := []struct {
		in      string
		want    FillType
		wantErr bool
	}{
		{"even_odd", FillEvenOdd, false},
		{"non_zero", FillNonZero, false},
		{"positive", FillPositive, false},
		{"negative", FillNegative, false},
		{"", FillPositive, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFillType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, tile.ErrInvalidOptions) {
					t.Errorf("ParseFillType(%q) error = %v, want ErrInvalidOptions", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFillType(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFillType(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.in != "" && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestParseThreadingMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ThreadingMode
		wantErr bool
	}{
		{"deferred", ThreadingDeferred, false},
		{"", ThreadingDeferred, false},
		{"eager", ThreadingEager, false},
		{"async", ThreadingEager, false},
		{"auto", ThreadingAuto, false},
		{"either", ThreadingAuto, false},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseThreadingMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, tile.ErrInvalidOptions) {
					t.Errorf("ParseThreadingMode(%q) error = %v, want ErrInvalidOptions", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseThreadingMode(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseThreadingMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	mutate := func(fn func(*Options)) Options {
		o := DefaultOptions()
		fn(&o)
		return o
	}
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", DefaultOptions(), false},
		{"zero scale", mutate(func(o *Options) { o.ScaleFactor = 0 }), true},
		{"negative scale denominator", mutate(func(o *Options) { o.ScaleDenominator = -1 }), true},
		{"negative area threshold", mutate(func(o *Options) { o.AreaThreshold = -0.5 }), true},
		{"negative simplify distance", mutate(func(o *Options) { o.SimplifyDistance = -2 }), true},
		{"unknown fill type", mutate(func(o *Options) { o.FillType = FillType(99) }), true},
		{"unknown threading mode", mutate(func(o *Options) { o.ThreadingMode = ThreadingMode(99) }), true},
		{"inverted max extent", mutate(func(o *Options) {
			o.MaxExtent = &tile.Bounds{MinX: 10, MinY: 10, MaxX: 0, MaxY: 0}
		}), true},
		{"unknown image scaling", mutate(func(o *Options) { o.ImageScaling = "nearest-ish" }), true},
		{"valid max extent", mutate(func(o *Options) {
			o.MaxExtent = &tile.Bounds{MinX: -100, MinY: -100, MaxX: 100, MaxY: 100}
		}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && !errors.Is(err, tile.ErrInvalidOptions) {
				t.Errorf("Validate error = %v, want ErrInvalidOptions", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	if o.ScaleFactor != 1.0 {
		t.Errorf("ScaleFactor = %v, want 1.0", o.ScaleFactor)
	}
	if o.AreaThreshold != 0.1 {
		t.Errorf("AreaThreshold = %v, want 0.1", o.AreaThreshold)
	}
	if !o.StrictlySimple {
		t.Errorf("StrictlySimple must default on")
	}
	if o.MultiPolygonUnion {
		t.Errorf("MultiPolygonUnion must default off")
	}
	if o.FillType != FillPositive {
		t.Errorf("FillType = %v, want positive", o.FillType)
	}
	if o.Reencode {
		t.Errorf("Reencode must default off")
	}
	if o.ThreadingMode != ThreadingDeferred {
		t.Errorf("ThreadingMode = %v, want deferred", o.ThreadingMode)
	}
}
