package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/okian/sailtrack/pkg/logger"
	"github.com/okian/sailtrack/pkg/metrics"
)

// Format selects the output encoding.
type Format string

const (
	FormatGeoPackage Format = "gpkg"
	FormatGeoJSON    Format = "geojson"
)

// ParseFormat accepts "gpkg" or "geojson", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatGeoPackage, FormatGeoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", ErrExport, s)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string { return "." + string(f) }

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Writer persists layers to disk.
type Writer struct {
	logger logger.Logger
}

// NewWriter creates a Writer.
func NewWriter(opts ...Option) *Writer {
	w := &Writer{logger: logger.Get().Named("export")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stores layer at path. GeoPackage files hold many layers and only the
// layer called name is replaced; GeoJSON files hold one layer and name is
// ignored.
func (w *Writer) Write(ctx context.Context, layer Layer, path string, format Format, name string) error {
	start := time.Now()
	err := w.write(ctx, layer, path, format, name)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordExport(string(format), status)
	if err != nil {
		return err
	}
	w.logger.Info(ctx, "layer exported",
		logger.String("path", path),
		logger.String("format", string(format)),
		logger.String("layer", name),
		logger.Int("features", len(layer.Features)),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

func (w *Writer) write(ctx context.Context, layer Layer, path string, format Format, name string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrExport, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrExport, dir, err)
		}
	}
	for _, c := range layer.Columns {
		if !identifier.MatchString(c.Name) || strings.EqualFold(c.Name, "fid") || strings.EqualFold(c.Name, "geom") {
			return fmt.Errorf("%w: invalid column name %q", ErrExport, c.Name)
		}
	}

	switch format {
	case FormatGeoJSON:
		return writeGeoJSON(layer, path)
	case FormatGeoPackage:
		if name == "" {
			name = layer.Name
		}
		if !identifier.MatchString(name) || strings.HasPrefix(strings.ToLower(name), "gpkg_") {
			return fmt.Errorf("%w: invalid layer name %q", ErrExport, name)
		}
		return writeGeoPackage(ctx, layer, path, name)
	default:
		return fmt.Errorf("%w: unknown format %q", ErrExport, format)
	}
}
