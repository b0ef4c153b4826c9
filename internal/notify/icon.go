package notify

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/nfnt/resize"
)

// IconSize bounds the notification icon in pixels.
const IconSize = 96

// Icon loads the image at path and returns a PNG thumbnail no larger than
// IconSize on either side. An empty path yields no icon.
func Icon(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	thumb := resize.Thumbnail(IconSize, IconSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
