// Package overrides holds the fixed table of manual terminal corrections
// and the terminal camera list.
package overrides

import (
	_ "embed"
	"fmt"

	"github.com/wsf-tracker/pkg/wsf/models"
	"gopkg.in/yaml.v3"
)

//go:embed overrides.yaml
var defaultTable []byte

// TerminalPatch lists the fields that may be corrected for one terminal.
// Nil fields leave the upstream value alone.
type TerminalPatch struct {
	ID           int      `yaml:"id"`
	Name         *string  `yaml:"name"`
	Abbreviation *string  `yaml:"abbreviation"`
	MapLink      *string  `yaml:"mapLink"`
	Directions   *string  `yaml:"directions"`
	Country      *string  `yaml:"country"`
	Latitude     *float64 `yaml:"latitude"`
	Longitude    *float64 `yaml:"longitude"`
}

type cameraEntry struct {
	TerminalID  int     `yaml:"terminalId"`
	ID          int     `yaml:"id"`
	Title       string  `yaml:"title"`
	ImageURL    string  `yaml:"imageUrl"`
	Orientation string  `yaml:"orientation"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
}

type file struct {
	Terminals []TerminalPatch `yaml:"terminals"`
	Cameras   []cameraEntry   `yaml:"cameras"`
}

// Table is the parsed override table, indexed by terminal id.
type Table struct {
	patches map[int]TerminalPatch
	cameras map[int][]models.Camera
}

// Default parses the table compiled into the binary.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Parse builds a table from YAML.
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing terminal overrides: %w", err)
	}

	t := &Table{
		patches: make(map[int]TerminalPatch, len(f.Terminals)),
		cameras: make(map[int][]models.Camera),
	}
	for _, p := range f.Terminals {
		if p.ID == 0 {
			return nil, fmt.Errorf("terminal override without id")
		}
		if _, dup := t.patches[p.ID]; dup {
			return nil, fmt.Errorf("duplicate override for terminal %d", p.ID)
		}
		t.patches[p.ID] = p
	}
	for _, c := range f.Cameras {
		t.cameras[c.TerminalID] = append(t.cameras[c.TerminalID], models.Camera{
			ID:          c.ID,
			Title:       c.Title,
			ImageURL:    c.ImageURL,
			Orientation: c.Orientation,
			Latitude:    c.Latitude,
			Longitude:   c.Longitude,
		})
	}
	return t, nil
}

// Apply patches term in place with the override for its id, if any.
func (t *Table) Apply(term *models.Terminal) {
	p, ok := t.patches[term.ID]
	if !ok {
		return
	}
	if p.Name != nil {
		term.Name = *p.Name
	}
	if p.Abbreviation != nil {
		term.Abbreviation = *p.Abbreviation
	}
	if p.MapLink != nil {
		term.Location.MapLink = *p.MapLink
	}
	if p.Directions != nil {
		term.Location.Directions = *p.Directions
	}
	if p.Country != nil {
		term.Location.Country = *p.Country
	}
	if p.Latitude != nil {
		term.Location.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		term.Location.Longitude = *p.Longitude
	}
}

// Cameras returns a copy of the camera list for a terminal. Never nil.
func (t *Table) Cameras(terminalID int) []models.Camera {
	return append([]models.Camera{}, t.cameras[terminalID]...)
}
