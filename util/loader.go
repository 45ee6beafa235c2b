package util

import (
	"image"
	_ "image/jpeg" // register decoders for LoadDirectoryImages
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile is a decoded image read from disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Image is the decoded image.
	Image image.Image
	// Frame is the number parsed from a "frame-<n>" name, or -1 when the name carries none.
	Frame int
}

// LoadImage opens and decodes a single JPEG or PNG file.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

// LoadDirectoryImages decodes every .jpg, .jpeg and .png file directly under dir.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Decoded images, numbered frames first in frame order, then the rest by name.
// - error: If the directory cannot be read or a file cannot be decoded.
func LoadDirectoryImages(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read image directory")
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(file.Name()))
		switch ext {
		case ".jpg", ".jpeg", ".png":
			path := filepath.Join(dir, file.Name())
			img, err := LoadImage(path)
			if err != nil {
				return nil, err
			}
			images = append(images, ImageFile{
				Path:  path,
				Image: img,
				Frame: frameNumber(file.Name()),
			})
		}
	}

	sort.SliceStable(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if (a.Frame < 0) != (b.Frame < 0) {
			return a.Frame >= 0
		}
		if a.Frame != b.Frame {
			return a.Frame < b.Frame
		}
		return a.Path < b.Path
	})

	return images, nil
}

func frameNumber(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, "frame-") {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(base, "frame-"))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
