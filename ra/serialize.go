package ra

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/x86dbt/ir"
)

// jsonClassConfig is ClassConfig's on-disk shape: the physical-count map
// keyed by register class name instead of ir.RegClass's raw uint8, so a
// config file reads as {"gpr": 14, "fpr": 8} rather than numeric class
// codes. Adapted from timing/latency.TimingConfig's JSON load/save
// pattern, applied to the allocator's per-class budget instead of a
// latency table.
type jsonClassConfig struct {
	PhysicalCount map[string]uint32 `json:"physical_count"`
	Conflicts     []ConflictEntry   `json:"conflicts"`
}

var classNames = map[ir.RegClass]string{
	ir.ClassGPR: "gpr",
	ir.ClassFPR: "fpr",
}

var namesToClass = map[string]ir.RegClass{
	"gpr": ir.ClassGPR,
	"fpr": ir.ClassFPR,
}

// LoadClassConfig reads a ClassConfig from a JSON file at path.
func LoadClassConfig(path string) (ClassConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClassConfig{}, fmt.Errorf("ra: read class config: %w", err)
	}

	var doc jsonClassConfig
	if err := json.Unmarshal(data, &doc); err != nil {
		return ClassConfig{}, fmt.Errorf("ra: parse class config: %w", err)
	}

	cfg := ClassConfig{
		PhysicalCount: make(map[ir.RegClass]uint32, len(doc.PhysicalCount)),
		Conflicts:     doc.Conflicts,
	}
	for name, count := range doc.PhysicalCount {
		class, ok := namesToClass[name]
		if !ok {
			return ClassConfig{}, fmt.Errorf("ra: unknown register class %q in class config", name)
		}
		cfg.PhysicalCount[class] = count
	}

	return cfg, cfg.Validate()
}

// SaveClassConfig writes cfg to path as JSON.
func SaveClassConfig(cfg ClassConfig, path string) error {
	doc := jsonClassConfig{
		PhysicalCount: make(map[string]uint32, len(cfg.PhysicalCount)),
		Conflicts:     cfg.Conflicts,
	}
	for class, count := range cfg.PhysicalCount {
		name, ok := classNames[class]
		if !ok {
			return fmt.Errorf("ra: unnamed register class %d in class config", class)
		}
		doc.PhysicalCount[name] = count
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("ra: serialize class config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ra: write class config: %w", err)
	}
	return nil
}

// Validate reports whether cfg is usable: every class must have a
// nonzero physical budget and every conflict entry must name a
// configured class.
func (c ClassConfig) Validate() error {
	if len(c.PhysicalCount) == 0 {
		return fmt.Errorf("ra: class config has no register classes")
	}
	for class, count := range c.PhysicalCount {
		if count == 0 {
			return fmt.Errorf("ra: class %v has zero physical registers", class)
		}
	}
	for _, e := range c.Conflicts {
		if _, ok := c.PhysicalCount[e.ClassA]; !ok {
			return fmt.Errorf("ra: conflict entry references unconfigured class %v", e.ClassA)
		}
		if _, ok := c.PhysicalCount[e.ClassB]; !ok {
			return fmt.Errorf("ra: conflict entry references unconfigured class %v", e.ClassB)
		}
	}
	return nil
}
