package pdf

// Placement is the rectangle, in page units, an image occupies on the page.
type Placement struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Fit scales an image of imgW x imgH pixels to the largest size that fits a
// pageW x pageH page without distortion and centers it along the other axis.
// An image wider than the page (by aspect ratio) fills the page width; any
// other image fills the page height.
func Fit(imgW, imgH int, pageW, pageH float64) Placement {
	if imgW <= 0 || imgH <= 0 || pageW <= 0 || pageH <= 0 {
		return Placement{Width: pageW, Height: pageH}
	}

	imgAspect := float64(imgW) / float64(imgH)
	pageAspect := pageW / pageH

	if imgAspect > pageAspect {
		height := pageW / imgAspect
		return Placement{
			X:      0,
			Y:      (pageH - height) / 2,
			Width:  pageW,
			Height: height,
		}
	}

	width := pageH * imgAspect
	return Placement{
		X:      (pageW - width) / 2,
		Y:      0,
		Width:  width,
		Height: pageH,
	}
}

// Margins returns the blank space left on each side horizontally and
// vertically.
func (p Placement) Margins() (horizontal, vertical float64) {
	return p.X, p.Y
}
