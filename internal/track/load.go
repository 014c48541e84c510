package track

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Load reads a GPX or FIT file by extension and returns a prepared track
// named after the file.
func Load(filePath string) (*Track, error) {
	var (
		points []Point
		err    error
	)
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".gpx":
		points, err = LoadGPX(filePath)
	case ".fit":
		points, err = LoadFIT(filePath)
	default:
		return nil, fmt.Errorf("unsupported track file %q: want .gpx or .fit", filePath)
	}
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%s: %w", filePath, ErrTooFewPoints)
	}
	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return &Track{Name: name, Points: Prepare(points)}, nil
}
