// Package annotate draws resolution overlays onto a screenshot so a human
// can see which element the finder chose and what it passed over.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"github.com/fogleman/gg"

	"github.com/pagepilot/pagepilot/internal/finder"
)

// Overlay colors. The winner uses the same blue as the interaction
// highlight; runners-up get the dimmed variants.
var (
	winnerFill   = color.NRGBA{R: 66, G: 133, B: 244, A: 45}
	winnerBorder = color.NRGBA{R: 66, G: 133, B: 244, A: 230}
	runnerFill   = color.NRGBA{R: 66, G: 133, B: 244, A: 18}
	runnerBorder = color.NRGBA{R: 66, G: 133, B: 244, A: 90}
	pillBG       = color.NRGBA{R: 30, G: 30, B: 30, A: 220}
	runnerPillBG = color.NRGBA{R: 30, G: 30, B: 30, A: 140}
	pillText     = color.White
)

const (
	winnerBorderWidth = 3.0
	runnerBorderWidth = 1.5
	pillPadX          = 4.0
	pillPadY          = 2.0
	pillRadius        = 4.0
)

// DefaultMaxMarks bounds how many ranked candidates get drawn; beyond the
// first handful the overlay becomes noise.
const DefaultMaxMarks = 10

// Mark is one box to draw.
type Mark struct {
	Box    finder.Rect
	Label  string
	Winner bool
}

// Marks converts a resolution result into drawable marks, winner first.
// Candidates with a degenerate box are skipped. max <= 0 applies
// DefaultMaxMarks.
func Marks(res *finder.Result, max int) []Mark {
	if res == nil {
		return nil
	}
	if max <= 0 {
		max = DefaultMaxMarks
	}
	var marks []Mark
	for i, s := range res.Ranked {
		if len(marks) >= max {
			break
		}
		if s.Box.W <= 0 || s.Box.H <= 0 {
			continue
		}
		marks = append(marks, Mark{
			Box:    s.Box,
			Label:  strconv.Itoa(s.Score),
			Winner: i == 0,
		})
	}
	return marks
}

// Draw returns a new image with the marks overlaid; the original is not
// modified. Runners-up are drawn first so the winner stays on top.
func Draw(img image.Image, marks []Mark) image.Image {
	bounds := img.Bounds()
	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.DrawImage(img, 0, 0)

	for i := len(marks) - 1; i >= 0; i-- {
		drawMark(dc, marks[i], float64(bounds.Dx()), float64(bounds.Dy()))
	}
	return dc.Image()
}

// PNG decodes a screenshot, draws the marks, and re-encodes it.
func PNG(data []byte, marks []Mark) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Draw(img, marks)); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

func drawMark(dc *gg.Context, m Mark, imgW, imgH float64) {
	x, y, w, h := m.Box.X, m.Box.Y, m.Box.W, m.Box.H

	// Clamp to image bounds.
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > imgW {
		w = imgW - x
	}
	if y+h > imgH {
		h = imgH - y
	}
	if w <= 0 || h <= 0 {
		return
	}

	fill, border, borderW := runnerFill, runnerBorder, runnerBorderWidth
	if m.Winner {
		fill, border, borderW = winnerFill, winnerBorder, winnerBorderWidth
	}

	dc.SetColor(fill)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	dc.SetColor(border)
	dc.SetLineWidth(borderW)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()

	if m.Label != "" {
		drawPill(dc, m, x, y, w, h, imgW, imgH)
	}
}

func drawPill(dc *gg.Context, m Mark, x, y, w, h, imgW, imgH float64) {
	textW, textH := dc.MeasureString(m.Label)
	pillW := textW + pillPadX*2
	pillH := textH + pillPadY*2

	// Placement preference: above-left, above-right, below-left, then
	// inside top-left as the fallback.
	type pos struct{ px, py float64 }
	candidates := []pos{
		{x, y - pillH - 2},
		{x + w - pillW, y - pillH - 2},
		{x, y + h + 2},
		{x + 2, y + 2},
	}

	px, py := x+2, y+2
	for _, c := range candidates {
		if c.px >= 0 && c.py >= 0 && c.px+pillW <= imgW && c.py+pillH <= imgH {
			px, py = c.px, c.py
			break
		}
	}

	bg := runnerPillBG
	if m.Winner {
		bg = pillBG
	}
	dc.SetColor(bg)
	dc.DrawRoundedRectangle(px, py, pillW, pillH, pillRadius)
	dc.Fill()

	dc.SetColor(pillText)
	dc.DrawString(m.Label, px+pillPadX, py+pillPadY+textH*0.85)
}
