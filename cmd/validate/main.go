package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <shape.json> [shape.json...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &ShapeValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		for _, w := range validator.warnings {
			fmt.Printf("warning: %s\n", w)
		}
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("Shape files are valid!")
}

type ShapeValidator struct {
	errors   []string
	warnings []string
}

var knownKeys = map[string]bool{
	"id": true, "name": true, "width": true, "height": true,
	"max_value": true, "cells": true, "pattern": true,
}

func (v *ShapeValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("shape file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidID(nameWithoutExt) {
		return fmt.Errorf("shape filename '%s' must be lowercase snake_case (e.g., rusted_sword.json, not rusted-sword.json or RustedSword.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil
	v.warnings = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("file %s must contain a JSON object: %w", filename, err)
	}
	for key := range raw {
		if !knownKeys[key] {
			v.addError(fmt.Sprintf("unknown field '%s'", key))
		}
	}
	if _, hasCells := raw["cells"]; hasCells {
		if _, hasPattern := raw["pattern"]; hasPattern {
			v.addError("use either 'cells' or 'pattern', not both")
		}
	}

	var m shape.Mask
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("file %s is not a valid shape: %w", filename, err)
	}

	v.validateShape(&m, nameWithoutExt)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *ShapeValidator) validateShape(m *shape.Mask, fileID string) {
	if m.ID != "" && m.ID != fileID {
		v.addError(fmt.Sprintf("id '%s' does not match filename '%s'", m.ID, fileID))
	}

	if m.IsEmpty() {
		v.addError("shape has no occupied cells")
		return
	}

	cells := m.Cells()
	minX, minY := cells[0].X, cells[0].Y
	for _, c := range cells[1:] {
		minX, minY = min(minX, c.X), min(minY, c.Y)
	}
	if minX > 0 || minY > 0 {
		v.warnings = append(v.warnings, fmt.Sprintf("%s: shape has %d empty leading column(s) and %d empty leading row(s)", fileID, minX, minY))
	}

	if !isConnected(m) {
		v.warnings = append(v.warnings, fmt.Sprintf("%s: occupied cells are not orthogonally connected", fileID))
	}
}

// isConnected reports whether the occupied cells form one orthogonally
// connected region.
func isConnected(m *shape.Mask) bool {
	cells := m.Cells()
	if len(cells) == 0 {
		return true
	}
	seen := map[shape.Point]bool{cells[0]: true}
	stack := []shape.Point{cells[0]}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range []shape.Point{{X: 0, Y: -1}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 1, Y: 0}} {
			n := p.Add(d)
			if !seen[n] && m.Get(n.X, n.Y) != 0 {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return len(seen) == len(cells)
}

func (v *ShapeValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
