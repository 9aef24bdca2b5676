// Package overlay renders detection annotations onto frames before they are
// encoded for streaming or snapshots.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/gridwatch/internal/detector"
	"github.com/ayusman/gridwatch/internal/pipeline"
)

const (
	boxThickness  = 2
	labelFont     = gocv.FontHersheySimplex
	labelScale    = 0.5
	labelPadding  = 4
	statusScale   = 0.7
	statusOriginX = 10
	statusOriginY = 30
)

// Per-class box colors. Unknown classes fall back to gray.
var classColors = map[int]color.RGBA{
	detector.ClassFiredWedgeBare:     {R: 230, G: 60, B: 60, A: 255},
	detector.ClassFiredWedgeCovered:  {R: 230, G: 160, B: 40, A: 255},
	detector.ClassHammerWedgeBare:    {R: 60, G: 120, B: 230, A: 255},
	detector.ClassHammerWedgeCovered: {R: 60, G: 200, B: 120, A: 255},
}

var (
	fallbackColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	textColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	statusOK      = color.RGBA{R: 70, G: 200, B: 70, A: 255}
	statusAlert   = color.RGBA{R: 230, G: 60, B: 60, A: 255}
)

// ClassColor returns the box color for a defect class.
func ClassColor(classID int) color.RGBA {
	if c, ok := classColors[classID]; ok {
		return c
	}
	return fallbackColor
}

// Draw annotates img in place with every detection in st plus a status line
// in the top-left corner. The caller keeps ownership of img.
func Draw(img *gocv.Mat, st pipeline.State) {
	if img == nil || img.Empty() {
		return
	}

	for _, d := range st.Detail {
		drawDetection(img, d)
	}
	drawStatus(img, st)
}

func drawDetection(img *gocv.Mat, d detector.Detection) {
	c := ClassColor(d.ClassID)
	gocv.Rectangle(img, d.Box, c, boxThickness)

	label := fmt.Sprintf("%s %.1f%%", d.Label, d.Confidence*100)
	drawTag(img, label, image.Pt(d.Box.Min.X, d.Box.Min.Y), true, c)

	if d.Temperature > 0 {
		temp := fmt.Sprintf("%.1f°C", d.Temperature)
		drawTag(img, temp, image.Pt(d.Box.Min.X, d.Box.Max.Y), false, c)
	}
}

// drawTag paints a filled background bar with text either above or below
// the anchor point, shifted inside the frame when the box touches an edge.
func drawTag(img *gocv.Mat, text string, anchor image.Point, above bool, c color.RGBA) {
	size := gocv.GetTextSize(text, labelFont, labelScale, 1)
	h := size.Y + 2*labelPadding

	top := anchor.Y - h
	if !above {
		top = anchor.Y
	}
	if top < 0 {
		top = anchor.Y
	}
	if top+h > img.Rows() {
		top = img.Rows() - h
	}

	left := anchor.X
	if left+size.X+2*labelPadding > img.Cols() {
		left = img.Cols() - size.X - 2*labelPadding
	}
	if left < 0 {
		left = 0
	}

	bar := image.Rect(left, top, left+size.X+2*labelPadding, top+h)
	gocv.Rectangle(img, bar, c, -1)
	gocv.PutText(img, text, image.Pt(left+labelPadding, top+h-labelPadding), labelFont, labelScale, textColor, 1)
}

func drawStatus(img *gocv.Mat, st pipeline.State) {
	c := statusAlert
	if !st.HasDetections() {
		c = statusOK
	}
	gocv.PutText(img, st.PrimaryLabel, image.Pt(statusOriginX, statusOriginY), labelFont, statusScale, c, 2)
}
