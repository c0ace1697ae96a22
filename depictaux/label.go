package depictaux

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
	labelFontErr  error
)

func goRegular() (*truetype.Font, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = freetype.ParseFont(goregular.TTF)
	})
	return labelFont, labelFontErr
}

// DrawLabel writes text in the bottom left corner of img using the Go Regular
// font. The font size is in pixels. Text not fitting the image is clipped.
func DrawLabel(img *image.NRGBA, text string, size float64, c color.Color) error {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return errors.New("label size must be positive")
	}
	f, err := goRegular()
	if err != nil {
		return err
	}
	bb := img.Bounds()
	ctx := freetype.NewContext()
	ctx.SetDPI(72) // One point per pixel.
	ctx.SetFont(f)
	ctx.SetFontSize(size)
	ctx.SetClip(bb)
	ctx.SetDst(img)
	ctx.SetSrc(image.NewUniform(c))
	ctx.SetHinting(font.HintingFull)
	margin := int(size / 2)
	// Baseline sits one descent above the bottom margin.
	descent := ctx.PointToFixed(size * 0.25).Ceil()
	pt := fixed.P(bb.Min.X+margin, bb.Max.Y-margin-descent)
	_, err = ctx.DrawString(text, pt)
	return err
}
