package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// GeoJSON encodes layer as a FeatureCollection. Every column becomes a
// property, null when the feature has no value for it.
func GeoJSON(layer Layer) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for i := range layer.Features {
		f := geojson.NewFeature(layer.Features[i].Geometry)
		for _, c := range layer.Columns {
			f.Properties[c.Name] = layer.Features[i].Values[c.Name]
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrExport, layer.Name, err)
	}
	return data, nil
}

func writeGeoJSON(layer Layer, path string) error {
	data, err := GeoJSON(layer)
	if err != nil {
		return err
	}
	return replaceFile(path, data)
}

// replaceFile writes data next to path then renames it into place.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("%w: temp file: %v", ErrExport, err)
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrExport, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrExport, path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrExport, path, err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ErrExport, path, err)
	}
	return nil
}
