package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ttpr0/go-gridmaker/grid"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"
)

//**********************************************************
// batch config
//**********************************************************

// ReadConfig reads a YAML batch configuration. Missing keys take their
// defaults.
func ReadConfig(file string) (Config, error) {
	slog.Info("Reading config file " + file)
	data, err := os.ReadFile(file)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrapf(err, "parse config file %s", file)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

type Config struct {
	LogLevel string        `yaml:"log-level"`
	Workers  int           `yaml:"workers"`
	Grid     GridConfig    `yaml:"grid"`
	Regions  RegionsConfig `yaml:"regions"`
	Land     LandConfig    `yaml:"land"`
	Output   OutputConfig  `yaml:"output"`
}

type GridConfig struct {
	EPSG         string            `yaml:"epsg"`
	Resolutions  []float64         `yaml:"resolutions"`
	Tolerance    float64           `yaml:"tolerance"`
	GeometryType GeometryTypeValue `yaml:"geometry-type"`
	Coverage     SourceConfig      `yaml:"coverage"`
}

// SourceConfig points to a vector file, optionally restricted to the
// feature whose Attribute equals Code.
type SourceConfig struct {
	File      string `yaml:"file"`
	Attribute string `yaml:"attribute"`
	Code      string `yaml:"code"`
}

type RegionsConfig struct {
	File string `yaml:"file"`
	// several versions of the regions dataset, merged per code
	Versions         []string `yaml:"versions"`
	Codes            []string `yaml:"codes"`
	CodeAttribute    string   `yaml:"code-attribute"`
	CellAttribute    string   `yaml:"cell-attribute"`
	Tolerance        float64  `yaml:"tolerance"`
	Buffer           float64  `yaml:"buffer"`
	FilterUnassigned bool     `yaml:"filter-unassigned"`
}

func (self RegionsConfig) IsSet() bool {
	return self.File != "" || len(self.Versions) > 0
}

type LandConfig struct {
	File      string `yaml:"file"`
	Attribute string `yaml:"attribute"`
	Decimals  int    `yaml:"decimals"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
	Format string `yaml:"format"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Workers:  DefaultWorkers(),
		Grid: GridConfig{
			EPSG:         DEFAULT_EPSG,
			Resolutions:  []float64{DEFAULT_RESOLUTION},
			GeometryType: GeometryTypeValue{grid.SURFACE},
		},
		Regions: RegionsConfig{
			CodeAttribute:    DEFAULT_REGION_ATT,
			FilterUnassigned: true,
		},
		Land: LandConfig{
			Attribute: "LAND_PC",
			Decimals:  2,
		},
		Output: OutputConfig{
			Dir:    ".",
			Prefix: "grid_",
			Format: "geojson",
		},
	}
}

// Validate checks the values a run cannot recover from.
func (self *Config) Validate() error {
	if len(self.Grid.Resolutions) == 0 {
		return errors.New("config: grid.resolutions is empty")
	}
	for _, res := range self.Grid.Resolutions {
		if !_ValidResolution(res) {
			return errors.Errorf("config: invalid resolution %v", res)
		}
	}
	if self.Workers < 1 {
		self.Workers = 1
	}
	if self.Regions.CellAttribute == "" {
		self.Regions.CellAttribute = self.Regions.CodeAttribute
	}
	if self.Grid.Coverage.Code != "" && self.Grid.Coverage.Attribute == "" {
		self.Grid.Coverage.Attribute = self.Regions.CodeAttribute
	}
	return nil
}

// OutputFile returns the output path of the grid with resolution res.
func (self OutputConfig) OutputFile(res float64) string {
	name := fmt.Sprintf("%s%sm.%s", self.Prefix, strconv.FormatFloat(res, 'f', -1, 64), self.Format)
	return filepath.Join(self.Dir, name)
}

//**********************************************************
// enums
//**********************************************************

// GeometryTypeValue reads a cell geometry type from YAML.
type GeometryTypeValue struct {
	grid.CellGeometryType
}

func (self GeometryTypeValue) MarshalYAML() (any, error) {
	return self.String(), nil
}
func (self *GeometryTypeValue) UnmarshalYAML(value *yaml.Node) error {
	typ, err := grid.CellGeometryTypeFromString(value.Value)
	if err != nil {
		return err
	}
	self.CellGeometryType = typ
	return nil
}
