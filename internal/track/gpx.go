package track

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"
)

// LoadGPX reads every track segment of a GPX file (falling back to routes
// when the file has no tracks) into one flat point slice.
func LoadGPX(filePath string) ([]Point, error) {
	gpxFile, err := gpx.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX file: %w", err)
	}

	var points []Point
	for _, trk := range gpxFile.Tracks {
		for _, segment := range trk.Segments {
			for _, p := range segment.Points {
				points = append(points, fromGPXPoint(p))
			}
		}
	}
	if len(points) == 0 {
		for _, route := range gpxFile.Routes {
			for _, p := range route.Points {
				points = append(points, fromGPXPoint(p))
			}
		}
	}
	return points, nil
}

func fromGPXPoint(p gpx.GPXPoint) Point {
	var ele float64
	if p.Elevation.NotNull() {
		ele = p.Elevation.Value()
	}
	return Point{Lat: p.Latitude, Lon: p.Longitude, Ele: ele, Time: p.Timestamp}
}
