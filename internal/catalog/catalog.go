// Package catalog holds the typed batch configuration: generation modes,
// presets that provide the base cost and prompt, and upscale options.
//
// The catalog is loaded from YAML and validated as a whole; a malformed entry
// fails the load instead of being defaulted.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Strategy selects how a mode produces its items.
type Strategy string

const (
	StrategyParallel Strategy = "parallel"
	StrategyGrid     Strategy = "grid"
)

// VariationScheme selects how per-item prompts derive from the base prompt.
type VariationScheme string

const (
	VariationVerbatim VariationScheme = "verbatim"
	VariationStyles   VariationScheme = "styles"
	VariationTemplate VariationScheme = "template"
)

const (
	DefaultModel        = "gemini-2.5-flash-image"
	DefaultUpscaleModel = "gemini-3-pro-image-preview"
	DefaultResolution   = "4K"
)

// DefaultStyles is the rotating tag list used by the styles scheme.
var DefaultStyles = []string{"realistic", "artistic", "abstract", "minimalist", "vibrant", "noir"}

var (
	ErrInvalidCatalog = errors.New("invalid catalog")
	ErrUnknownMode    = errors.New("unknown mode")
	ErrUnknownPreset  = errors.New("unknown preset")
)

// Mode describes one batch mode.
type Mode struct {
	Key              string          `yaml:"-" json:"key"`
	Name             string          `yaml:"name" json:"name"`
	Strategy         Strategy        `yaml:"strategy" json:"strategy"`
	Count            int             `yaml:"count" json:"count"`
	Rows             int             `yaml:"rows,omitempty" json:"rows,omitempty"`
	Cols             int             `yaml:"cols,omitempty" json:"cols,omitempty"`
	CostMultiplier   float64         `yaml:"cost_multiplier" json:"cost_multiplier"`
	DiscountPercent  int             `yaml:"discount_percent,omitempty" json:"discount_percent,omitempty"`
	Model            string          `yaml:"model,omitempty" json:"model,omitempty"`
	Variation        VariationScheme `yaml:"variation" json:"variation"`
	PromptTemplate   string          `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`
	VariationAspects []string        `yaml:"variation_aspects,omitempty" json:"variation_aspects,omitempty"`
	Styles           []string        `yaml:"styles,omitempty" json:"styles,omitempty"`
}

// Preset supplies the base cost, default prompt and model for a job.
type Preset struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Prompt string `yaml:"prompt" json:"prompt"`
	Cost   int    `yaml:"cost" json:"cost"`
	Model  string `yaml:"model,omitempty" json:"model,omitempty"`
}

// UpscaleOption prices one target resolution.
type UpscaleOption struct {
	Resolution string `yaml:"resolution" json:"resolution"`
	Cost       int    `yaml:"cost" json:"cost"`
}

// Upscale configures the upscale sub-operation.
type Upscale struct {
	Model   string          `yaml:"model" json:"model"`
	Options []UpscaleOption `yaml:"options" json:"options"`
}

// Catalog is the validated configuration.
type Catalog struct {
	Modes   map[string]Mode `yaml:"modes" json:"modes"`
	Presets []Preset        `yaml:"presets" json:"presets"`
	Upscale Upscale         `yaml:"upscale" json:"upscale"`

	presets map[string]Preset
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() error {
	if len(c.Modes) == 0 {
		return fmt.Errorf("%w: no modes defined", ErrInvalidCatalog)
	}
	title := cases.Title(language.Und)
	for key, m := range c.Modes {
		m.Key = key
		if strings.TrimSpace(m.Name) == "" {
			m.Name = title.String(strings.ReplaceAll(key, "_", " "))
		}
		if m.Strategy == "" {
			m.Strategy = StrategyParallel
		}
		if m.Variation == "" {
			m.Variation = VariationVerbatim
		}
		if m.Variation == VariationStyles && len(m.Styles) == 0 {
			m.Styles = DefaultStyles
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: mode %q: %v", ErrInvalidCatalog, key, err)
		}
		c.Modes[key] = m
	}

	c.presets = make(map[string]Preset, len(c.Presets))
	for i, p := range c.Presets {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: preset %d has no id", ErrInvalidCatalog, i)
		}
		if p.Cost < 0 {
			return fmt.Errorf("%w: preset %q has negative cost", ErrInvalidCatalog, p.ID)
		}
		if _, dup := c.presets[p.ID]; dup {
			return fmt.Errorf("%w: duplicate preset %q", ErrInvalidCatalog, p.ID)
		}
		c.presets[p.ID] = p
	}

	if c.Upscale.Model == "" {
		c.Upscale.Model = DefaultUpscaleModel
	}
	for _, o := range c.Upscale.Options {
		if strings.TrimSpace(o.Resolution) == "" || o.Cost < 0 {
			return fmt.Errorf("%w: invalid upscale option %+v", ErrInvalidCatalog, o)
		}
	}
	return nil
}

// Validate checks a single mode.
func (m Mode) Validate() error {
	if m.Count < 1 {
		return fmt.Errorf("count must be >= 1, got %d", m.Count)
	}
	if m.CostMultiplier <= 0 {
		return fmt.Errorf("cost_multiplier must be > 0, got %v", m.CostMultiplier)
	}
	switch m.Strategy {
	case StrategyParallel:
	case StrategyGrid:
		if m.Rows < 1 || m.Cols < 1 {
			return fmt.Errorf("grid strategy needs rows and cols")
		}
		if m.Rows*m.Cols != m.Count {
			return fmt.Errorf("grid %dx%d does not match count %d", m.Rows, m.Cols, m.Count)
		}
	default:
		return fmt.Errorf("unknown strategy %q", m.Strategy)
	}
	switch m.Variation {
	case VariationVerbatim, VariationStyles:
	case VariationTemplate:
		if strings.TrimSpace(m.PromptTemplate) == "" {
			return fmt.Errorf("template variation needs prompt_template")
		}
	default:
		return fmt.Errorf("unknown variation %q", m.Variation)
	}
	return nil
}

// ModelOr returns the mode's model, falling back to fallback and then DefaultModel.
func (m Mode) ModelOr(fallback string) string {
	if m.Model != "" {
		return m.Model
	}
	if fallback != "" {
		return fallback
	}
	return DefaultModel
}

// Mode looks up a mode by key.
func (c *Catalog) Mode(key string) (Mode, error) {
	m, ok := c.Modes[key]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, key)
	}
	return m, nil
}

// Preset looks up a preset by id.
func (c *Catalog) Preset(id string) (Preset, error) {
	p, ok := c.presets[id]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, id)
	}
	return p, nil
}

// ListModes returns the modes ordered by key.
func (c *Catalog) ListModes() []Mode {
	out := make([]Mode, 0, len(c.Modes))
	for _, m := range c.Modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// UpscaleOption resolves a resolution, defaulting to DefaultResolution.
// Without configured options any non-empty resolution is accepted at no cost.
func (c *Catalog) UpscaleOption(resolution string) (UpscaleOption, bool) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		resolution = DefaultResolution
	}
	if len(c.Upscale.Options) == 0 {
		return UpscaleOption{Resolution: resolution}, true
	}
	for _, o := range c.Upscale.Options {
		if strings.EqualFold(o.Resolution, resolution) {
			return o, true
		}
	}
	return UpscaleOption{}, false
}
