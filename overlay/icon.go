//go:build gui

package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"fyne.io/fyne/v2"
)

// trayIcon draws a small green dot for the system tray.
func trayIcon() fyne.Resource {
	const size = 22
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	center := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) - center + 0.5
			dy := float64(y) - center + 0.5
			dist := math.Sqrt(dx*dx + dy*dy)

			switch {
			case dist < 6:
				img.Set(x, y, color.RGBA{16, 185, 129, 255})
			case dist < 9:
				img.Set(x, y, color.RGBA{240, 240, 240, 255})
			case dist < 10:
				img.Set(x, y, color.RGBA{58, 58, 58, 255})
			}
		}
	}

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return fyne.NewStaticResource("tray.png", buf.Bytes())
}
