// Package mapfile reads and writes cognitive map documents.
//
// A document is YAML (JSON is accepted too) holding one or more maps:
//
//	maps:
//	  - name: ring
//	    concepts:
//	      - name: c1
//	        activator: {type: signum}
//	        output: 666
//	        fixed: true
//	      - name: c2
//	        activator: {type: signum}
//	        output: 0
//	    connections:
//	      - {name: "1-2", from: c1, to: c2, weight: -0.8}
//
// Documents are validated on load. Build turns a map definition into a live
// *fcm.Map; FromMap goes the other way.
package mapfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidDocument wraps every validation failure.
	ErrInvalidDocument = errors.New("invalid map document")

	// ErrMapNotFound is returned when a named map is not in the document.
	ErrMapNotFound = errors.New("map not found in document")
)

// Document is the top-level file structure.
type Document struct {
	Maps []MapSpec `yaml:"maps" json:"maps" validate:"required,min=1,dive"`
}

// MapSpec defines one cognitive map.
type MapSpec struct {
	Name        string           `yaml:"name" json:"name" validate:"notblank"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Concepts    []ConceptSpec    `yaml:"concepts" json:"concepts" validate:"dive"`
	Connections []ConnectionSpec `yaml:"connections,omitempty" json:"connections,omitempty" validate:"dive"`
}

// ConceptSpec defines a concept. Omitted input and output are undefined.
type ConceptSpec struct {
	Name        string         `yaml:"name" json:"name" validate:"notblank"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Activator   *ActivatorSpec `yaml:"activator,omitempty" json:"activator,omitempty" validate:"omitempty"`
	Input       *float64       `yaml:"input,omitempty" json:"input,omitempty"`
	Output      *float64       `yaml:"output,omitempty" json:"output,omitempty"`
	Fixed       bool           `yaml:"fixed,omitempty" json:"fixed,omitempty"`
}

// ActivatorSpec defines an activation function. Parameters that do not apply
// to the type are ignored.
type ActivatorSpec struct {
	Type            string   `yaml:"type" json:"type" validate:"required,activator"`
	Threshold       *float64 `yaml:"threshold,omitempty" json:"threshold,omitempty" validate:"omitempty,finite"`
	IncludePrevious *bool    `yaml:"include_previous,omitempty" json:"include_previous,omitempty"`
	Mode            string   `yaml:"mode,omitempty" json:"mode,omitempty" validate:"omitempty,mode"`
	ZeroValue       *float64 `yaml:"zero_value,omitempty" json:"zero_value,omitempty"`
	Factor          *float64 `yaml:"factor,omitempty" json:"factor,omitempty"`
	Min             *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max             *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	K               *float64 `yaml:"k,omitempty" json:"k,omitempty"`
	Width           *float64 `yaml:"width,omitempty" json:"width,omitempty" validate:"omitempty,finite"`
	N               *int     `yaml:"n,omitempty" json:"n,omitempty" validate:"omitempty,min=1"`
	Amplitude       *float64 `yaml:"amplitude,omitempty" json:"amplitude,omitempty" validate:"omitempty,gt=0"`
}

// ConnectionSpec defines a connection. Weight defaults to 1.
type ConnectionSpec struct {
	Name        string   `yaml:"name" json:"name" validate:"notblank"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	From        string   `yaml:"from" json:"from" validate:"notblank"`
	To          string   `yaml:"to" json:"to" validate:"notblank"`
	Weight      *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	Delay       int      `yaml:"delay,omitempty" json:"delay,omitempty" validate:"gte=0"`
}

// Parse decodes and validates a document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse map document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and validates a document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// Marshal encodes a document as YAML.
func Marshal(doc *Document) ([]byte, error) {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal map document: %w", err)
	}
	return data, nil
}

// Save writes a document to disk as YAML, creating parent directories.
func Save(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write map document: %w", err)
	}
	return nil
}

// Find returns the named map. An empty name selects the first map.
func (d *Document) Find(name string) (*MapSpec, error) {
	if len(d.Maps) == 0 {
		return nil, fmt.Errorf("%w: document is empty", ErrMapNotFound)
	}
	if name == "" {
		return &d.Maps[0], nil
	}
	for i := range d.Maps {
		if d.Maps[i].Name == name {
			return &d.Maps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMapNotFound, name)
}

// Names lists the map names in document order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Maps))
	for i, m := range d.Maps {
		names[i] = m.Name
	}
	return names
}
