package tile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/tilecraft/vtcompose/internal/mvt"
)

var (
	// ErrInvalidAddress reports a z/x/y triple outside the tile grid.
	ErrInvalidAddress = errors.New("tile: invalid address")

	// ErrInvalidOptions reports tile options that violate
	// tile_size > 0 or tile_size + 2*buffer_size > 0.
	ErrInvalidOptions = errors.New("tile: invalid options")

	// ErrLayerNotFound reports a layer-extraction miss. It is a no-op
	// error: the tile was not touched.
	ErrLayerNotFound = errors.New("tile: layer not found")
)

// Default tile parameters, matching common map-rendering setups.
const (
	DefaultTileSize   = 4096
	DefaultBufferSize = 128
)

// Options configure a tile's nominal grid size and buffer.
type Options struct {
	// TileSize is the nominal pixel/grid size. Must be positive.
	TileSize uint32
	// BufferSize is the grid-unit padding around the nominal extent. May
	// be negative as long as TileSize + 2*BufferSize stays positive.
	BufferSize int32
}

func (o Options) validate() error {
	if o.TileSize == 0 {
		return fmt.Errorf("%w: tile size must be greater than zero", ErrInvalidOptions)
	}
	if int64(o.TileSize)+2*int64(o.BufferSize) <= 0 {
		return fmt.Errorf("%w: tile size plus twice the buffer size must be greater than zero", ErrInvalidOptions)
	}
	return nil
}

// Tile owns a mutable encoded vector tile buffer identified by a grid
// address. Derived layer state (names, painted, empty) is recomputed lazily
// from the buffer and invalidated on every mutation. A Tile is not safe for
// concurrent mutation; readers of distinct tiles may run in parallel.
type Tile struct {
	z, x, y    uint32
	tileSize   uint32
	bufferSize int32
	buf        []byte

	info *bufferInfo
}

type bufferInfo struct {
	names   []string
	empty   []string
	painted []string
}

func checkAxis(z, v uint32, axis string) error {
	// From z=32 up every uint32 coordinate fits; shifting past 63 bits
	// would also wrap the bound to zero.
	if z < 32 && uint64(v) >= uint64(1)<<z {
		return fmt.Errorf("%w: %s %d out of range for zoom %d", ErrInvalidAddress, axis, v, z)
	}
	return nil
}

// New creates an empty tile at the given address. A nil opts uses the
// defaults (4096 grid units, 128 buffer). Address and options are validated
// before any allocation.
func New(z, x, y uint32, opts *Options) (*Tile, error) {
	if err := checkAxis(z, x, "x"); err != nil {
		return nil, err
	}
	if err := checkAxis(z, y, "y"); err != nil {
		return nil, err
	}
	o := Options{TileSize: DefaultTileSize, BufferSize: DefaultBufferSize}
	if opts != nil {
		o = *opts
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Tile{z: z, x: x, y: y, tileSize: o.TileSize, bufferSize: o.BufferSize}, nil
}

func (t *Tile) Z() uint32 { return t.z }
func (t *Tile) X() uint32 { return t.x }
func (t *Tile) Y() uint32 { return t.y }

// TileSize returns the nominal grid size.
func (t *Tile) TileSize() uint32 { return t.tileSize }

// BufferSize returns the configured grid-unit buffer.
func (t *Tile) BufferSize() int32 { return t.bufferSize }

// SetZ replaces the zoom level. Only the new field is validated; x and y
// are not re-checked against the new zoom.
func (t *Tile) SetZ(z uint32) error {
	t.z = z
	return nil
}

// SetX replaces the column, validated against the current zoom.
func (t *Tile) SetX(x uint32) error {
	if err := checkAxis(t.z, x, "x"); err != nil {
		return err
	}
	t.x = x
	return nil
}

// SetY replaces the row, validated against the current zoom.
func (t *Tile) SetY(y uint32) error {
	if err := checkAxis(t.z, y, "y"); err != nil {
		return err
	}
	t.y = y
	return nil
}

// SetTileSize replaces the nominal grid size.
func (t *Tile) SetTileSize(size uint32) error {
	if size == 0 {
		return fmt.Errorf("%w: tile size must be greater than zero", ErrInvalidOptions)
	}
	t.tileSize = size
	return nil
}

// SetBufferSize replaces the buffer, validated against the current tile size.
func (t *Tile) SetBufferSize(size int32) error {
	if int64(t.tileSize)+2*int64(size) <= 0 {
		return fmt.Errorf("%w: tile size plus twice the buffer size must be greater than zero", ErrInvalidOptions)
	}
	t.bufferSize = size
	return nil
}

// Bounds returns the tile's nominal mercator box.
func (t *Tile) Bounds() Bounds {
	return TileBounds(t.z, t.x, t.y)
}

// BufferedBounds returns the nominal box expanded by the configured buffer.
func (t *Tile) BufferedBounds() Bounds {
	return t.Bounds().Buffered(t.bufferSize, t.tileSize)
}

// Data borrows the raw encoded buffer. Callers must not mutate it.
func (t *Tile) Data() []byte { return t.buf }

// Len returns the buffer length in bytes.
func (t *Tile) Len() int { return len(t.buf) }

var gzipMagic = []byte{0x1f, 0x8b}

// SetData replaces the buffer wholesale. Gzip input is detected by its
// magic bytes and inflated before storage. The bytes are validated to frame
// as a vector tile message.
func (t *Tile) SetData(data []byte) error {
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("tile: inflating data: %w", err)
		}
		inflated, err := io.ReadAll(zr)
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("tile: inflating data: %w", err)
		}
		data = inflated
	}
	if _, err := mvt.RawLayers(data); err != nil {
		return err
	}
	t.buf = append([]byte(nil), data...)
	t.info = nil
	return nil
}

// GetData returns a copy of the buffer, gzip-compressed when asked.
func (t *Tile) GetData(compress bool) ([]byte, error) {
	if !compress {
		return append([]byte(nil), t.buf...), nil
	}
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(t.buf); err != nil {
		return nil, fmt.Errorf("tile: compressing data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("tile: compressing data: %w", err)
	}
	return out.Bytes(), nil
}

// AppendLayer appends a pre-encoded layer message (unframed) to the buffer.
func (t *Tile) AppendLayer(layerMsg []byte) {
	t.buf = append(t.buf, mvt.FrameLayer(layerMsg)...)
	t.info = nil
}

// Clear drops all bytes and derived state.
func (t *Tile) Clear() {
	t.buf = nil
	t.info = nil
}

func (t *Tile) derived() (*bufferInfo, error) {
	if t.info != nil {
		return t.info, nil
	}
	info := &bufferInfo{}
	stats, err := mvt.StatLayers(t.buf)
	if err != nil {
		return nil, err
	}
	for _, st := range stats {
		info.names = append(info.names, st.Name)
		if st.Features == 0 {
			info.empty = append(info.empty, st.Name)
		}
		if st.Painted {
			info.painted = append(info.painted, st.Name)
		}
	}
	t.info = info
	return info, nil
}

// Names returns all layer names in buffer order.
func (t *Tile) Names() ([]string, error) {
	info, err := t.derived()
	if err != nil {
		return nil, err
	}
	return info.names, nil
}

// EmptyLayers returns the names of layers declared with zero features.
func (t *Tile) EmptyLayers() ([]string, error) {
	info, err := t.derived()
	if err != nil {
		return nil, err
	}
	return info.empty, nil
}

// PaintedLayers returns the names of layers with at least one feature
// carrying actual geometry.
func (t *Tile) PaintedLayers() ([]string, error) {
	info, err := t.derived()
	if err != nil {
		return nil, err
	}
	return info.painted, nil
}

// Painted reports whether any layer is painted.
func (t *Tile) Painted() (bool, error) {
	info, err := t.derived()
	if err != nil {
		return false, err
	}
	return len(info.painted) > 0, nil
}

// Empty reports whether the tile holds no painted layer.
func (t *Tile) Empty() (bool, error) {
	painted, err := t.Painted()
	if err != nil {
		return false, err
	}
	return !painted, nil
}

// ExtractLayer returns a new tile at the same address containing only the
// named layer, byte for byte. A miss returns ErrLayerNotFound and leaves
// everything untouched.
func (t *Tile) ExtractLayer(name string) (*Tile, error) {
	raw, err := mvt.RawLayers(t.buf)
	if err != nil {
		return nil, err
	}
	stats, err := mvt.StatLayers(t.buf)
	if err != nil {
		return nil, err
	}
	for i, layerMsg := range raw {
		if stats[i].Name != name {
			continue
		}
		out, err := New(t.z, t.x, t.y, &Options{TileSize: t.tileSize, BufferSize: t.bufferSize})
		if err != nil {
			return nil, err
		}
		out.AppendLayer(layerMsg)
		return out, nil
	}
	return nil, fmt.Errorf("%w: layer name %q not found", ErrLayerNotFound, name)
}
