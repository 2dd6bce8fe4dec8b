package dataset

import (
	"fmt"
	"os"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
	"gopkg.in/yaml.v3"
)

// Data set sources a manifest entry may name
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Manifest declares which sports are served, where their data comes from and
// in which order unscoped lookups try them. Entry order is the declared order.
type Manifest struct {
	LegacySport models.Sport    `yaml:"legacy_sport"`
	Sports      []ManifestEntry `yaml:"sports"`
}

// ManifestEntry configures one sport's data set
type ManifestEntry struct {
	Sport    models.Sport `yaml:"sport"`
	Source   string       `yaml:"source,omitempty"`
	File     string       `yaml:"file,omitempty"`
	Disabled bool         `yaml:"disabled,omitempty"`
}

// DefaultManifest serves the embedded data sets for sports in the given order
func DefaultManifest(sports []models.Sport, legacy models.Sport) (*Manifest, error) {
	m := &Manifest{LegacySport: legacy}
	for _, s := range sports {
		m.Sports = append(m.Sports, ManifestEntry{Sport: s, Source: SourceEmbedded})
	}
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifest reads and validates a YAML manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Enabled returns the entries that are not disabled, in declared order
func (m *Manifest) Enabled() []ManifestEntry {
	entries := make([]ManifestEntry, 0, len(m.Sports))
	for _, e := range m.Sports {
		if !e.Disabled {
			entries = append(entries, e)
		}
	}
	return entries
}

func (m *Manifest) normalize() error {
	if len(m.Sports) == 0 {
		return fmt.Errorf("manifest declares no sports")
	}

	seen := make(map[models.Sport]bool, len(m.Sports))
	for i := range m.Sports {
		e := &m.Sports[i]

		sport, ok := models.ParseSport(string(e.Sport))
		if !ok {
			return fmt.Errorf("manifest entry %d: unknown sport %q", i, e.Sport)
		}
		if seen[sport] {
			return fmt.Errorf("manifest entry %d: sport %s declared twice", i, sport)
		}
		seen[sport] = true
		e.Sport = sport

		if e.Source == "" {
			e.Source = SourceEmbedded
			if e.File != "" {
				e.Source = SourceFile
			}
		}

		switch e.Source {
		case SourceEmbedded, SourcePostgres:
		case SourceFile:
			if e.File == "" {
				return fmt.Errorf("manifest entry %d: %s source requires a file", i, sport)
			}
		default:
			return fmt.Errorf("manifest entry %d: unknown source %q", i, e.Source)
		}
	}

	if m.LegacySport == "" {
		m.LegacySport = m.Sports[0].Sport
		return nil
	}
	legacy, ok := models.ParseSport(string(m.LegacySport))
	if !ok || !seen[legacy] {
		return fmt.Errorf("legacy sport %q is not declared in the manifest", m.LegacySport)
	}
	// Bare ids stored before composite keys existed must keep resolving to the
	// legacy sport, so it has to win unscoped lookups.
	if m.Sports[0].Sport != legacy {
		return fmt.Errorf("legacy sport %s must be declared first", legacy)
	}
	m.LegacySport = legacy
	return nil
}
