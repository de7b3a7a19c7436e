//go:build gocv

package source

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

type camera struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// OpenCamera opens an OpenCV capture device by index.
func OpenCamera(device int) (Source, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("open camera %d: device not opened", device)
	}
	return &camera{capture: capture, mat: gocv.NewMat()}, nil
}

func (c *camera) Read() (image.Image, error) {
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, ErrNoFrame
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (c *camera) Close() error {
	_ = c.mat.Close()
	return c.capture.Close()
}
