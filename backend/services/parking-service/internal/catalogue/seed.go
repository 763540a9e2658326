// Package catalogue reads zone reference data from YAML seed files.
package catalogue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sparkpark/backend/services/parking-service/internal/models"
)

// File is the top-level layout of a seed file.
type File struct {
	Zones []models.Zone `yaml:"zones"`
}

// LoadFile parses the seed file at path.
func LoadFile(path string) ([]models.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalogue: read %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a seed document and validates every zone. Unknown keys are rejected.
func Parse(r io.Reader) ([]models.Zone, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Zone{}, nil
		}
		return nil, fmt.Errorf("catalogue: decode yaml: %w", err)
	}

	seen := make(map[string]int, len(file.Zones))
	zones := make([]models.Zone, 0, len(file.Zones))
	for i, z := range file.Zones {
		z.ZoneCode = strings.TrimSpace(z.ZoneCode)
		z.Name = strings.TrimSpace(z.Name)
		z.City = strings.TrimSpace(z.City)
		z.Type = strings.TrimSpace(z.Type)

		if z.ZoneCode == "" {
			return nil, fmt.Errorf("catalogue: zone %d: zone_code is required", i+1)
		}
		if z.Name == "" {
			return nil, fmt.Errorf("catalogue: zone %s: name is required", z.ZoneCode)
		}
		if z.Latitude < -90 || z.Latitude > 90 || z.Longitude < -180 || z.Longitude > 180 {
			return nil, fmt.Errorf("catalogue: zone %s: coordinates out of range", z.ZoneCode)
		}
		if prev, ok := seen[z.ZoneCode]; ok {
			return nil, fmt.Errorf("catalogue: zone %s: duplicate of entry %d", z.ZoneCode, prev)
		}
		seen[z.ZoneCode] = i + 1
		zones = append(zones, z)
	}
	return zones, nil
}
