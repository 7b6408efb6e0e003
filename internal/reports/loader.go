// Package reports loads regime report YAML files: historical days (report
// plus session bar) for backtesting, and single per-day reports for the live
// loop.
package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"regimetrader/internal/domain"
)

type levelYAML struct {
	Price float64 `yaml:"price"`
	Label string  `yaml:"label"`
	Type  string  `yaml:"type"`
}

type ejectStepYAML struct {
	Price  float64 `yaml:"price"`
	Action string  `yaml:"action"`
}

type flowYAML struct {
	Raw        float64 `yaml:"raw"`
	Percentile float64 `yaml:"percentile"`
	Low30      float64 `yaml:"low30"`
	High30     float64 `yaml:"high30"`
}

type sessionYAML struct {
	Open   float64 `yaml:"open"`
	High   float64 `yaml:"high"`
	Low    float64 `yaml:"low"`
	Close  float64 `yaml:"close"`
	Volume int64   `yaml:"volume"`
}

type dayYAML struct {
	Date        string          `yaml:"date"`
	Mode        string          `yaml:"mode"`
	Tier        int             `yaml:"tier"`
	MasterEject float64         `yaml:"master_eject"`
	EjectSteps  []ejectStepYAML `yaml:"eject_steps"`
	Levels      []levelYAML     `yaml:"levels"`
	MovingAvg   float64         `yaml:"moving_avg"`
	Pivot       float64         `yaml:"pivot"`
	Flow        flowYAML        `yaml:"flow"`
	Zone        string          `yaml:"zone"`
	Session     sessionYAML     `yaml:"session"`
}

// LoadFile parses one YAML file containing a list of historical days.
func LoadFile(path string) ([]*domain.HistoricalDay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file %s: %w", path, err)
	}

	var raw []dayYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing report file %s: %w", path, err)
	}

	days := make([]*domain.HistoricalDay, 0, len(raw))
	for i, d := range raw {
		day, err := convert(d)
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", path, i, err)
		}
		days = append(days, day)
	}
	return days, nil
}

// LoadDir loads every .yaml/.yml file in dir and returns the combined days
// sorted by date.
func LoadDir(dir string) ([]*domain.HistoricalDay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading reports dir %s: %w", dir, err)
	}

	var days []*domain.HistoricalDay
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		loaded, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		days = append(days, loaded...)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no report files found in %s", dir)
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Session.Date.Before(days[j].Session.Date)
	})
	return days, nil
}

// report converts the regime report portion, ignoring session data.
func (d dayYAML) report() (*domain.RegimeReport, error) {
	date, err := time.Parse("2006-01-02", d.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", d.Date, err)
	}
	mode := domain.Mode(d.Mode)
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid mode %q", d.Mode)
	}
	tier := domain.Tier(d.Tier)
	if !tier.IsValid() {
		return nil, fmt.Errorf("invalid tier %d", d.Tier)
	}

	report := &domain.RegimeReport{
		Date:             date,
		Mode:             mode,
		Tier:             tier,
		MasterEjectPrice: d.MasterEject,
		MovingAvg:        d.MovingAvg,
		Pivot:            d.Pivot,
		Flow: domain.FlowReading{
			Raw:        d.Flow.Raw,
			Percentile: d.Flow.Percentile,
			Low30:      d.Flow.Low30,
			High30:     d.Flow.High30,
			Timestamp:  date,
		},
	}
	for _, step := range d.EjectSteps {
		action := domain.StepAction(step.Action)
		if action != domain.StepTrim && action != domain.StepEject {
			return nil, fmt.Errorf("invalid eject step action %q", step.Action)
		}
		report.EjectSteps = append(report.EjectSteps, domain.EjectStep{Price: step.Price, Action: action})
	}
	for _, lvl := range d.Levels {
		report.Levels = append(report.Levels, domain.Level{
			Price: lvl.Price,
			Label: lvl.Label,
			Type:  domain.LevelType(lvl.Type),
		})
	}
	return report, nil
}

func convert(d dayYAML) (*domain.HistoricalDay, error) {
	report, err := d.report()
	if err != nil {
		return nil, err
	}
	if d.Session.Open <= 0 || d.Session.High <= 0 || d.Session.Low <= 0 || d.Session.Close <= 0 {
		return nil, fmt.Errorf("session prices must be positive")
	}

	zone := domain.CompositeZone(d.Zone)
	if d.Zone == "" {
		zone = domain.ZoneNeutral
	}

	return &domain.HistoricalDay{
		Report: report,
		Zone:   zone,
		Session: domain.DailyBar{
			Date:   report.Date,
			Open:   d.Session.Open,
			High:   d.Session.High,
			Low:    d.Session.Low,
			Close:  d.Session.Close,
			Volume: d.Session.Volume,
		},
	}, nil
}
