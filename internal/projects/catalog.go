/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package projects holds the expo project cards shown beside the countdown.
package projects

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTitle heads the display.
const DefaultTitle = "Software Engineering Expo"

// Project is one card on the display.
type Project struct {
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Link         string   `yaml:"link" json:"link"`
	Contributors []string `yaml:"contributors" json:"contributors"`
}

// Available reports whether the card links anywhere.
func (p Project) Available() bool {
	link := strings.TrimSpace(p.Link)
	return link != "" && link != "#"
}

// HasContributor reports whether name worked on the project.
func (p Project) HasContributor(name string) bool {
	return slices.Contains(p.Contributors, name)
}

// Catalog is the ordered set of cards.
type Catalog struct {
	Title    string    `yaml:"title" json:"title"`
	Projects []Project `yaml:"projects" json:"projects"`
}

// Default returns the built-in expo catalog.
func Default() *Catalog {
	return &Catalog{
		Title: DefaultTitle,
		Projects: []Project{
			{
				Name:         "Evera",
				Description:  "A great app.",
				Link:         "https://evera.green",
				Contributors: []string{"Anna", "Jared", "Gabriel", "Daniel", "Logan"},
			},
			{
				Name:         "Evangelium",
				Description:  "Another cool project.",
				Link:         "https://evangelium.app",
				Contributors: []string{"Caleb", "Rachel", "Christian", "Jez", "Niwe"},
			},
			{
				Name:         "Bolt Away",
				Description:  "Not available here at the moment.",
				Link:         "#",
				Contributors: []string{"Jonah", "Steven", "Jack", "Beau"},
			},
		},
	}
}

// Load reads a YAML catalog. An empty path returns the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse projects file: %w", err)
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	for i, p := range c.Projects {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("project %d: name is required", i)
		}
	}
	return &c, nil
}

// Contributors lists every contributor once, in first-seen order.
func (c *Catalog) Contributors() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.Projects {
		for _, name := range p.Contributors {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Filter returns the projects a contributor worked on. An empty name matches all.
func (c *Catalog) Filter(contributor string) []Project {
	if contributor == "" {
		return slices.Clone(c.Projects)
	}
	var out []Project
	for _, p := range c.Projects {
		if p.HasContributor(contributor) {
			out = append(out, p)
		}
	}
	return out
}

// Layout is the radial arrangement input for a set of cards.
type Layout struct {
	Count        int     `json:"count"`
	AnglePerItem float64 `json:"angle_per_item"`
}

// LayoutFor spreads count cards evenly around a circle.
func LayoutFor(count int) Layout {
	if count <= 0 {
		return Layout{}
	}
	return Layout{Count: count, AnglePerItem: 360 / float64(count)}
}
