package track

import (
	"fmt"
	"os"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
)

const (
	fitInvalidSint32 = 0x7FFFFFFF
	fitInvalidUint16 = 0xFFFF
	fitInvalidUint32 = 0xFFFFFFFF
	semicircleConst  = 11930464.7111 // 2^31 / 180
)

// LoadFIT reads the positioned record messages of a FIT activity file.
// Records without a position fix are skipped.
func LoadFIT(filePath string) ([]Point, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FIT file: %w", err)
	}
	defer f.Close()

	var points []Point
	dec := decoder.New(f)
	for dec.Next() {
		fitData, err := dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIT file: %w", err)
		}
		for _, msg := range fitData.Messages {
			if msg.Num != typedef.MesgNumRecord {
				continue
			}
			p, ok := recordPoint(mesgdef.NewRecord(&msg))
			if !ok {
				continue
			}
			points = append(points, p)
		}
	}
	return points, nil
}

// recordPoint converts a record message. Devices that only write the
// enhanced altitude and speed fields are read through those.
func recordPoint(rec *mesgdef.Record) (Point, bool) {
	if rec.PositionLat == fitInvalidSint32 || rec.PositionLong == fitInvalidSint32 {
		return Point{}, false
	}
	p := Point{
		Lat: float64(rec.PositionLat) / semicircleConst,
		Lon: float64(rec.PositionLong) / semicircleConst,
	}
	switch {
	case rec.Altitude != fitInvalidUint16:
		p.Ele = float64(rec.Altitude)/5 - 500
	case rec.EnhancedAltitude != fitInvalidUint32:
		p.Ele = float64(rec.EnhancedAltitude)/5 - 500
	}
	switch {
	case rec.Speed != fitInvalidUint16:
		p.Speed = float64(rec.Speed) / 1000 * 3.6
	case rec.EnhancedSpeed != fitInvalidUint32:
		p.Speed = float64(rec.EnhancedSpeed) / 1000 * 3.6
	}
	if !rec.Timestamp.IsZero() {
		p.Time = rec.Timestamp.UTC()
	}
	return p, true
}
