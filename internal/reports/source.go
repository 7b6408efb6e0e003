package reports

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"regimetrader/internal/domain"
	"regimetrader/internal/ports"
)

// DirSource serves per-day regime reports from a directory of YAML files
// named YYYY-MM-DD.yaml, one report per file.
type DirSource struct {
	dir string
}

var _ ports.ReportSource = (*DirSource)(nil)

// NewDirSource creates a report source over dir.
func NewDirSource(dir string) (*DirSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("reports directory is required")
	}
	return &DirSource{dir: dir}, nil
}

// ReportFor loads the report published for the given day.
func (s *DirSource) ReportFor(_ context.Context, day time.Time) (*domain.RegimeReport, error) {
	name := day.Format("2006-01-02") + ".yaml"
	path := filepath.Join(s.dir, name)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Allow the .yml spelling before giving up.
		alt := filepath.Join(s.dir, day.Format("2006-01-02")+".yml")
		data, err = os.ReadFile(alt)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no report for %s in %s", ports.ErrNotFound, day.Format("2006-01-02"), s.dir)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("reading report for %s: %w", day.Format("2006-01-02"), err)
	}

	var raw dayYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	report, err := raw.report()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}
