package depictaux

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// VerticalGradient returns a width x height opaque image blending from top to
// bottom, the way CAD viewers paint their default background.
func VerticalGradient(width, height int, top, bottom color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	conv := ColorConversionLinearGradient(1, top, bottom)
	for y := 0; y < height; y++ {
		d := (float32(y)+0.5)/float32(height) - 0.5
		c := color.NRGBAModel.Convert(conv(d)).(color.NRGBA)
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// Downsample scales src to a width x height image. It is used to anti-alias
// images rendered at a higher resolution.
func Downsample(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Composite draws fg over bg and returns the result. A nil bg keeps fg's
// transparency. bg is scaled to fg's size if they differ, unless it is uniform.
func Composite(fg image.Image, bg image.Image) *image.NRGBA {
	bb := fg.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	if bg != nil {
		if _, uniform := bg.(*image.Uniform); uniform || bg.Bounds().Size() == bb.Size() {
			draw.Draw(dst, dst.Bounds(), bg, bg.Bounds().Min, draw.Src)
		} else {
			draw.ApproxBiLinear.Scale(dst, dst.Bounds(), bg, bg.Bounds(), draw.Src, nil)
		}
	}
	draw.Draw(dst, dst.Bounds(), fg, bb.Min, draw.Over)
	return dst
}

// SavePNGFile encodes img as PNG and saves it to a file with said filename.
func SavePNGFile(filename string, img image.Image) error {
	if img == nil {
		return errors.New("nil image")
	}
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	err = png.Encode(fp, img)
	if err != nil {
		fp.Close()
		return err
	}
	err = fp.Sync()
	if err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
