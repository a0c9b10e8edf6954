package pipeline

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Known operating system names accepted in the os matrix.
const (
	OSLinux = "linux"
	OSMacOS = "osx"
)

// File is the parsed form of a pipeline configuration file.
type File struct {
	OS           StringList `yaml:"os"`
	Language     string     `yaml:"language"`
	Python       StringList `yaml:"python"`
	Env          EnvBlock   `yaml:"env"`
	Sudo         SudoFlag   `yaml:"sudo"`
	Addons       Addons     `yaml:"addons"`
	Install      StringList `yaml:"install"`
	BeforeScript StringList `yaml:"before_script"`
	Script       StringList `yaml:"script"`
}

// StringList accepts either a YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var value string
		if err := node.Decode(&value); err != nil {
			return err
		}
		*l = StringList{value}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*l = StringList(values)
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// SudoFlag accepts true/false as well as the legacy "required" string.
type SudoFlag bool

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SudoFlag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: sudo must be a boolean or \"required\"", node.Line)
	}
	var b bool
	if err := node.Decode(&b); err == nil {
		*s = SudoFlag(b)
		return nil
	}
	var str string
	if err := node.Decode(&str); err != nil {
		return err
	}
	switch str {
	case "required":
		*s = true
	case "":
		*s = false
	default:
		return fmt.Errorf("line %d: sudo must be a boolean or \"required\", got %q", node.Line, str)
	}
	return nil
}

// EnvBlock holds global and matrix environment entries. A plain list of
// entries is treated as the matrix dimension; a mapping may split entries
// into global (applied to every leg) and matrix (one leg per entry).
type EnvBlock struct {
	Global []string
	Matrix []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *EnvBlock) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var value string
		if err := node.Decode(&value); err != nil {
			return err
		}
		e.Matrix = []string{value}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		e.Matrix = values
		return nil
	case yaml.MappingNode:
		var split struct {
			Global StringList `yaml:"global"`
			Matrix StringList `yaml:"matrix"`
		}
		if err := node.Decode(&split); err != nil {
			return err
		}
		e.Global = split.Global
		e.Matrix = split.Matrix
		return nil
	default:
		return fmt.Errorf("line %d: env must be a list or a global/matrix mapping", node.Line)
	}
}

// Addons describes environment extras applied before user commands run.
type Addons struct {
	Apt           AptAddon   `yaml:"apt"`
	SSHKnownHosts StringList `yaml:"ssh_known_hosts"`
}

// AptAddon lists distribution packages installed on linux legs.
type AptAddon struct {
	Packages StringList `yaml:"packages"`
}

// Parse decodes and validates a pipeline file from raw bytes. Decoding is
// strict so typos in top-level keys surface as errors instead of silently
// producing an empty stage.
func Parse(data []byte) (*File, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	if len(file.OS) == 0 {
		file.OS = StringList{OSLinux}
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Load reads and parses a pipeline file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return Parse(data)
}
