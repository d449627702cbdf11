// Package render draws tile boards as SVG and plain text.
package render

import (
	"strconv"
	"strings"
)

// Op is a path drawing command
type Op byte

const (
	MoveTo Op = 'M'
	LineTo Op = 'L'
	ArcTo  Op = 'A' // quarter arc, clockwise, Args: r, endX, endY
	Close  Op = 'Z'
)

// Cmd is one drawing command with its arguments
type Cmd struct {
	Op   Op
	Args []float64
}

// Path is a sequence of drawing commands
type Path struct {
	Cmds []Cmd
}

func (p *Path) add(op Op, args ...float64) {
	p.Cmds = append(p.Cmds, Cmd{Op: op, Args: args})
}

// RoundRect returns a closed rectangle path with rounded corners. The radius
// is clamped so two corners never overlap along either side.
func RoundRect(x, y, w, h, r float64) Path {
	if w < 2*r {
		r = w / 2
	}
	if h < 2*r {
		r = h / 2
	}
	if r < 0 {
		r = 0
	}

	var p Path
	p.add(MoveTo, x+r, y)
	p.add(LineTo, x+w-r, y)
	p.add(ArcTo, r, x+w, y+r)
	p.add(LineTo, x+w, y+h-r)
	p.add(ArcTo, r, x+w-r, y+h)
	p.add(LineTo, x+r, y+h)
	p.add(ArcTo, r, x, y+h-r)
	p.add(LineTo, x, y+r)
	p.add(ArcTo, r, x+r, y)
	p.add(Close)
	return p
}

// SVG renders the path as SVG path data
func (p Path) SVG() string {
	var b strings.Builder
	for i, c := range p.Cmds {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(byte(c.Op))
		switch c.Op {
		case ArcTo:
			r := num(c.Args[0])
			b.WriteString(r + " " + r + " 0 0 1 " + num(c.Args[1]) + " " + num(c.Args[2]))
		case Close:
		default:
			for j, a := range c.Args {
				if j > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(num(a))
			}
		}
	}
	return b.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
