package app

import (
	"image/color"

	"sparkthreads/hal"

	"tinygo.org/x/drivers"
)

// fbRegion is a drivers.Displayer over a rectangle of an RGB565 framebuffer.
// Coordinates are relative to the rectangle; pixels outside it are dropped.
type fbRegion struct {
	fb   hal.Framebuffer
	x, y int
	w, h int
}

var _ drivers.Displayer = fbRegion{}

func newRegion(fb hal.Framebuffer, x, y, w, h int) fbRegion {
	if fb == nil {
		return fbRegion{}
	}
	if x+w > fb.Width() {
		w = fb.Width() - x
	}
	if y+h > fb.Height() {
		h = fb.Height() - y
	}
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	return fbRegion{fb: fb, x: x, y: y, w: w, h: h}
}

func (d fbRegion) Size() (x, y int16) { return int16(d.w), int16(d.h) }

func (d fbRegion) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.w || iy < 0 || iy >= d.h {
		return
	}
	d.put(d.x+ix, d.y+iy, toRGB565(c))
}

func (d fbRegion) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d fbRegion) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	p := toRGB565(c)
	for yy := int(y); yy < int(y)+int(height); yy++ {
		if yy < 0 || yy >= d.h {
			continue
		}
		for xx := int(x); xx < int(x)+int(width); xx++ {
			if xx < 0 || xx >= d.w {
				continue
			}
			d.put(d.x+xx, d.y+yy, p)
		}
	}
	return nil
}

func (d fbRegion) clear(c color.RGBA) {
	_ = d.FillRectangle(0, 0, int16(d.w), int16(d.h), c)
}

func (d fbRegion) put(x, y int, p uint16) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	off := y*d.fb.StrideBytes() + x*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(p)
	buf[off+1] = byte(p >> 8)
}

func toRGB565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

// scrollBuffer is an off-screen RGB565 surface with a vertical scroll
// offset, the way a panel with hardware scrolling behaves: memory row r is
// shown at screen row (r - scroll) mod height. tinyterm draws into it and
// flush copies it onto a framebuffer region.
type scrollBuffer struct {
	w, h   int
	pix    []uint16
	scroll int
}

func newScrollBuffer(w, h int) *scrollBuffer {
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	return &scrollBuffer{w: w, h: h, pix: make([]uint16, w*h)}
}

func (b *scrollBuffer) Size() (x, y int16) { return int16(b.w), int16(b.h) }

func (b *scrollBuffer) SetPixel(x, y int16, c color.RGBA) {
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= b.w || iy < 0 || iy >= b.h {
		return
	}
	b.pix[iy*b.w+ix] = toRGB565(c)
}

func (b *scrollBuffer) Display() error { return nil }

func (b *scrollBuffer) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	p := toRGB565(c)
	for yy := int(y); yy < int(y)+int(height); yy++ {
		if yy < 0 || yy >= b.h {
			continue
		}
		for xx := int(x); xx < int(x)+int(width); xx++ {
			if xx < 0 || xx >= b.w {
				continue
			}
			b.pix[yy*b.w+xx] = p
		}
	}
	return nil
}

func (b *scrollBuffer) SetScroll(line int16) {
	if b.h == 0 {
		return
	}
	b.scroll = ((int(line) % b.h) + b.h) % b.h
}

func (b *scrollBuffer) SetRotation(drivers.Rotation) error { return nil }

// flush copies the buffer in screen order onto d.
func (b *scrollBuffer) flush(d fbRegion) {
	for sy := 0; sy < b.h && sy < d.h; sy++ {
		row := (sy + b.scroll) % b.h
		src := b.pix[row*b.w : row*b.w+b.w]
		for sx := 0; sx < b.w && sx < d.w; sx++ {
			d.put(d.x+sx, d.y+sy, src[sx])
		}
	}
}
