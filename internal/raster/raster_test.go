package raster

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tilecraft/vtcompose/internal/mvt"
	"github.com/tilecraft/vtcompose/internal/tile"
)

func TestAddImageBuffer(t *testing.T) {
	tl, err := tile.New(0, 0, 0, nil)
	if err != nil {
		t.Fatalf("tile.New: %v", err)
	}
	image := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0x01, 0x02, 0x03}

	if err := AddImageBuffer(tl, image, "hillshade"); err != nil {
		t.Fatalf("AddImageBuffer: %v", err)
	}

	names, err := tl.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 1 || names[0] != "hillshade" {
		t.Fatalf("Names = %v, want [hillshade]", names)
	}
	if painted, _ := tl.Painted(); !painted {
		t.Errorf("raster layer must be painted")
	}

	raw, err := mvt.RawLayers(tl.Data())
	if err != nil {
		t.Fatalf("RawLayers: %v", err)
	}
	layer, err := mvt.NewLayer(raw[0])
	if err != nil {
		t.Fatalf("NewLayer: %v", err)
	}
	if layer.NumFeatures() != 1 {
		t.Fatalf("NumFeatures = %d, want 1", layer.NumFeatures())
	}
	f, err := layer.Feature(0)
	if err != nil {
		t.Fatalf("Feature: %v", err)
	}
	if !bytes.Equal(f.Raster, image) {
		t.Errorf("raster payload altered: %x", f.Raster)
	}
	if f.Type != mvt.GeomTypePolygon {
		t.Errorf("cover geometry type = %v, want polygon", f.Type)
	}
}

func TestAddImageBufferRejects(t *testing.T) {
	tl, err := tile.New(0, 0, 0, nil)
	if err != nil {
		t.Fatalf("tile.New: %v", err)
	}
	if err := AddImageBuffer(tl, nil, "hillshade"); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty image error = %v, want ErrEmptyImage", err)
	}
	if err := AddImageBuffer(tl, []byte{1}, ""); !errors.Is(err, tile.ErrInvalidOptions) {
		t.Errorf("empty layer name error = %v, want ErrInvalidOptions", err)
	}
	if tl.Len() != 0 {
		t.Errorf("failed calls mutated the tile")
	}
}
