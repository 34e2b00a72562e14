// Package config loads the address space and runtime settings of a
// generator from YAML, with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/testdata/timing"
)

// Sentinel errors returned by validation.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrInvalidNode   = errors.New("invalid node")
)

// File is the content of a configuration file.
type File struct {
	Frequency      string     `yaml:"frequency"`
	Seed           uint64     `yaml:"seed"`
	IncludeSubtree *bool      `yaml:"include_subtree,omitempty"`
	Parallel       bool       `yaml:"parallel"`
	ArrayLength    int        `yaml:"array_length"`
	LogLevel       string     `yaml:"log_level"`
	Recording      Recording  `yaml:"recording"`
	Monitoring     Monitoring `yaml:"monitoring"`
	Nodes          []Node     `yaml:"nodes"`
}

// Recording configures the SQLite recorder.
type Recording struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Monitoring configures the web monitor.
type Monitoring struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Node types.
const (
	NodeTypeScalar    = "scalar"
	NodeTypeComposite = "composite"
	NodeTypeVector    = "vector"
)

// Node declares one top-level variable.
type Node struct {
	ID              string  `yaml:"id"`
	Name            string  `yaml:"name"`
	Type            string  `yaml:"type"`
	DataType        string  `yaml:"data_type,omitempty"`
	ValueRank       int     `yaml:"value_rank,omitempty"`
	AccessLevel     string  `yaml:"access_level,omitempty"`
	UserAccessLevel string  `yaml:"user_access_level,omitempty"`
	Children        []Field `yaml:"children,omitempty"`
}

// Field declares one child of a composite node.
type Field struct {
	Name      string `yaml:"name"`
	DataType  string `yaml:"data_type"`
	ValueRank int    `yaml:"value_rank,omitempty"`
}

const (
	defaultFrequency   = "1Hz"
	defaultArrayLength = 3
)

// Default returns the built-in configuration: a vector node and a few
// scalars of the common data types.
func Default() *File {
	f := &File{
		Nodes: []Node{
			{ID: "ns=2;s=Vector", Name: "Vector", Type: NodeTypeVector},
			{ID: "ns=2;s=Boolean", Name: "Boolean", Type: NodeTypeScalar, DataType: "Boolean"},
			{ID: "ns=2;s=Int32", Name: "Int32", Type: NodeTypeScalar, DataType: "Int32"},
			{ID: "ns=2;s=Double", Name: "Double", Type: NodeTypeScalar, DataType: "Double"},
			{ID: "ns=2;s=String", Name: "String", Type: NodeTypeScalar, DataType: "String"},
			{
				ID: "ns=2;s=Int32Array", Name: "Int32Array", Type: NodeTypeScalar,
				DataType: "Int32", ValueRank: 1,
			},
		},
	}
	f.applyDefaults()

	return f
}

func (f *File) applyDefaults() {
	if f.Frequency == "" {
		f.Frequency = defaultFrequency
	}

	if f.ArrayLength == 0 {
		f.ArrayLength = defaultArrayLength
	}

	if f.LogLevel == "" {
		f.LogLevel = "info"
	}

	if len(f.Nodes) == 0 {
		f.Nodes = Default().Nodes
	}

	for i := range f.Nodes {
		if f.Nodes[i].Type == "" {
			f.Nodes[i].Type = NodeTypeScalar
		}
	}
}

// Load reads and validates a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	var f File

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	f.applyDefaults()

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Validate checks the settings and every node declaration.
func (f *File) Validate() error {
	if _, err := timing.ParseFreq(f.Frequency); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if f.ArrayLength < 0 {
		return fmt.Errorf("%w: array_length must not be negative", ErrInvalidConfig)
	}

	if f.Monitoring.Port < 0 || f.Monitoring.Port > 65535 {
		return fmt.Errorf("%w: monitoring port %d out of range",
			ErrInvalidConfig, f.Monitoring.Port)
	}

	if _, err := f.SlogLevel(); err != nil {
		return err
	}

	if _, err := f.BuildSpace(); err != nil {
		return err
	}

	return nil
}

// Freq returns the parsed generation frequency.
func (f *File) Freq() timing.Freq {
	freq, err := timing.ParseFreq(f.Frequency)
	if err != nil {
		panic(err)
	}

	return freq
}

// IncludeSubtreeOrDefault tells whether change notifications cover the
// children of composite nodes. It is on unless configured off.
func (f *File) IncludeSubtreeOrDefault() bool {
	return f.IncludeSubtree == nil || *f.IncludeSubtree
}

// SlogLevel parses the log level.
func (f *File) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.ToUpper(f.LogLevel)))
	if err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, f.LogLevel)
	}

	return level, nil
}
