//go:build !gocv

package source

import "fmt"

func OpenCamera(device int) (Source, error) {
	return nil, fmt.Errorf("camera %d: %w; build with -tags gocv", device, ErrUnsupported)
}
