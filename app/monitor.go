package app

import (
	"fmt"
	"image/color"

	"sparkthreads/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	monitorBG     = color.RGBA{R: 0x10, G: 0x18, B: 0x28, A: 0xFF}
	monitorFG     = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	monitorHeader = color.RGBA{R: 0x60, G: 0xC0, B: 0xFF, A: 0xFF}
	monitorSel    = color.RGBA{R: 0xFF, G: 0xD0, B: 0x40, A: 0xFF}
)

const monitorLine = 10

// monitor draws the thread table and tracks the row selected from the
// keyboard.
type monitor struct {
	region fbRegion
	sel    int
	rows   []kernel.ThreadInfo
}

// selected returns the thread under the cursor as of the last refresh.
func (m *monitor) selected() (kernel.ThreadID, bool) {
	if m.sel < 0 || m.sel >= len(m.rows) {
		return 0, false
	}
	return m.rows[m.sel].ID, true
}

func (m *monitor) move(delta int) {
	m.sel += delta
	if m.sel >= len(m.rows) {
		m.sel = len(m.rows) - 1
	}
	if m.sel < 0 {
		m.sel = 0
	}
}

func (m *monitor) refresh(k *kernel.Kernel) {
	m.rows = k.Threads()
	m.move(0)
	m.draw(k.Stats())
}

func (m *monitor) draw(st kernel.Stats) {
	d := m.region
	d.clear(monitorBG)

	font := &proggy.TinySZ8pt7b
	y := int16(monitorLine - 2)
	tinyfont.WriteLine(d, font, 2, y, fmt.Sprintf("tick %d  threads %d/%d  stacks %d/%d  sw %d",
		st.Now, st.Threads, st.Capacity, st.SlabsUsed, st.Slabs, st.Switches), monitorHeader)
	y += monitorLine
	tinyfont.WriteLine(d, font, 2, y, "  id       state     stack held wake", monitorHeader)

	_, h := d.Size()
	for i, ti := range m.rows {
		y += monitorLine
		if y > h {
			break
		}
		fg, mark := monitorFG, " "
		if i == m.sel {
			fg, mark = monitorSel, ">"
		}
		tinyfont.WriteLine(d, font, 2, y, formatThreadRow(mark, ti), fg)
	}
}

func formatThreadRow(mark string, ti kernel.ThreadInfo) string {
	wake := "-"
	if ti.State == kernel.StateSleeping {
		wake = fmt.Sprint(ti.Wake)
	}
	return fmt.Sprintf("%s %-8s %-9s %5d %4d %s", mark, ti.ID, ti.State, ti.StackSize, ti.Held, wake)
}
