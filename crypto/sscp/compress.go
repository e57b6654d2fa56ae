package sscp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

const (
	zlibHeaderLen = 2
	windowSize    = 32 << 10
)

// finalBlock terminates a sync-flushed deflate segment so the inflater sees a clean end of stream.
const finalBlock = "\x01\x00\x00\xff\xff"

// Compressor holds one direction's deflate state. The dictionary persists across messages,
// so messages must be decompressed in the order they were compressed.
type Compressor struct {
	buf bytes.Buffer
	zw  *zlib.Writer
}

// NewCompressor returns a compressor at the default level.
func NewCompressor() *Compressor {
	c := &Compressor{}
	zw, _ := zlib.NewWriterLevel(&c.buf, zlib.DefaultCompression)
	c.zw = zw
	return c
}

// Compress deflates data and sync-flushes it. The first output begins with the zlib header.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	c.buf.Reset()
	if _, err := c.zw.Write(data); err != nil {
		return nil, err
	}
	if err := c.zw.Flush(); err != nil {
		return nil, err
	}
	return bytes.Clone(c.buf.Bytes()), nil
}

// Decompressor mirrors a peer's Compressor.
type Decompressor struct {
	maxBytes int
	started  bool
	window   []byte
	fr       io.ReadCloser
}

// NewDecompressor returns a decompressor that refuses messages inflating past maxBytes (0 means unlimited).
func NewDecompressor(maxBytes int) *Decompressor {
	return &Decompressor{maxBytes: maxBytes}
}

// Decompress inflates one sync-flushed message.
func (d *Decompressor) Decompress(data []byte) ([]byte, error) {
	if !d.started {
		if err := checkZlibHeader(data); err != nil {
			return nil, err
		}
		data = data[zlibHeaderLen:]
		d.started = true
	}
	src := io.MultiReader(bytes.NewReader(data), strings.NewReader(finalBlock))
	if d.fr == nil {
		d.fr = flate.NewReaderDict(src, d.window)
	} else if err := d.fr.(flate.Resetter).Reset(src, d.window); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}

	var r io.Reader = d.fr
	if d.maxBytes > 0 {
		r = io.LimitReader(d.fr, int64(d.maxBytes)+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompression, err)
	}
	if d.maxBytes > 0 && len(out) > d.maxBytes {
		return nil, ErrFrameTooLarge
	}
	d.remember(out)
	return out, nil
}

func (d *Decompressor) remember(out []byte) {
	if len(out) >= windowSize {
		d.window = append(d.window[:0], out[len(out)-windowSize:]...)
		return
	}
	d.window = append(d.window, out...)
	if over := len(d.window) - windowSize; over > 0 {
		d.window = append(d.window[:0], d.window[over:]...)
	}
}

var errZlibHeader = errors.New("bad zlib header")

func checkZlibHeader(b []byte) error {
	if len(b) < zlibHeaderLen {
		return fmt.Errorf("%w: %v", ErrCompression, errZlibHeader)
	}
	cmf, flg := b[0], b[1]
	if cmf&0x0f != 8 || cmf>>4 > 7 || (uint16(cmf)<<8|uint16(flg))%31 != 0 || flg&0x20 != 0 {
		return fmt.Errorf("%w: %v", ErrCompression, errZlibHeader)
	}
	return nil
}
