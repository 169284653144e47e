// Package catalog describes the models the gateway offers and the limits the
// submitter enforces for each of them.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"genstudio/internal/domain"
)

//go:embed models.toml
var defaultCatalog []byte

const defaultMaxOutputs = 10

type ImageModel struct {
	ID                 string   `toml:"id" json:"id"`
	Name               string   `toml:"name" json:"name"`
	MaxReferenceImages int      `toml:"max_reference_images" json:"maxReferenceImages"`
	Ratios             []string `toml:"ratios" json:"ratios"`
	Resolutions        []string `toml:"resolutions" json:"resolutions"`
	Transparency       bool     `toml:"transparency" json:"transparency,omitempty"`
}

// VideoOption is one duration/quality tier. Mode is the kling quality mode and
// Model, when set, replaces the model id sent to the provider.
type VideoOption struct {
	Seconds string `toml:"seconds" json:"seconds"`
	Quality string `toml:"quality" json:"quality"`
	Mode    string `toml:"mode" json:"mode,omitempty"`
	Model   string `toml:"model" json:"model,omitempty"`
}

// DurationText renders the option the way gallery cards show it.
func (o VideoOption) DurationText() string {
	if strings.EqualFold(o.Seconds, "auto") || o.Seconds == "" {
		return "Auto"
	}
	return o.Seconds + "s"
}

type VideoModel struct {
	ID                 string        `toml:"id" json:"id"`
	Name               string        `toml:"name" json:"name"`
	Ratios             []string      `toml:"ratios" json:"ratios"`
	MaxReferenceImages int           `toml:"max_reference_images" json:"maxReferenceImages"`
	SingleOutput       bool          `toml:"single_output" json:"singleOutput,omitempty"`
	PromptOptional     bool          `toml:"prompt_optional" json:"promptOptional,omitempty"`
	Options            []VideoOption `toml:"options" json:"options"`
}

// Option returns the tier at idx, falling back to the first one when idx is
// out of range.
func (m VideoModel) Option(idx int) (VideoOption, int) {
	if idx < 0 || idx >= len(m.Options) {
		idx = 0
	}
	return m.Options[idx], idx
}

type AudioModel struct {
	ID         string `toml:"id" json:"id"`
	Name       string `toml:"name" json:"name"`
	SampleRate int    `toml:"sample_rate" json:"sampleRate"`
}

type MusicModel struct {
	ID   string `toml:"id" json:"id"`
	Name string `toml:"name" json:"name"`
	MV   string `toml:"mv" json:"mv"`
}

type Voice struct {
	ID   string `toml:"id" json:"id"`
	Name string `toml:"name" json:"name"`
}

type Catalog struct {
	MaxOutputs int          `toml:"max_outputs" json:"maxOutputs"`
	Images     []ImageModel `toml:"image" json:"image"`
	Videos     []VideoModel `toml:"video" json:"video"`
	Audio      []AudioModel `toml:"audio" json:"audio"`
	Music      []MusicModel `toml:"music" json:"music"`
	Voices     []Voice      `toml:"voice" json:"voices"`
}

// Model is the capability-independent view of a catalog entry.
type Model struct {
	ID                 string
	Name               string
	Type               domain.AssetType
	MaxReferenceImages int
	SingleOutput       bool
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded models.toml: %v", err))
	}
	return c
}

// Load reads the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if c.MaxOutputs <= 0 {
		c.MaxOutputs = defaultMaxOutputs
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := map[string]bool{}
	check := func(kind, id string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("catalog: %s model without id", kind)
		}
		if seen[id] {
			return fmt.Errorf("catalog: duplicate model id %q", id)
		}
		seen[id] = true
		return nil
	}
	for _, m := range c.Images {
		if err := check("image", m.ID); err != nil {
			return err
		}
	}
	for _, m := range c.Videos {
		if err := check("video", m.ID); err != nil {
			return err
		}
		if len(m.Options) == 0 {
			return fmt.Errorf("catalog: video model %q has no options", m.ID)
		}
	}
	for _, m := range c.Audio {
		if err := check("audio", m.ID); err != nil {
			return err
		}
	}
	for _, m := range c.Music {
		if err := check("music", m.ID); err != nil {
			return err
		}
	}
	if len(c.Images)+len(c.Videos)+len(c.Audio)+len(c.Music) == 0 {
		return errors.New("catalog: no models defined")
	}
	return nil
}

func (c *Catalog) Image(id string) (ImageModel, bool) {
	for _, m := range c.Images {
		if m.ID == id {
			return m, true
		}
	}
	return ImageModel{}, false
}

func (c *Catalog) Video(id string) (VideoModel, bool) {
	for _, m := range c.Videos {
		if m.ID == id {
			return m, true
		}
	}
	return VideoModel{}, false
}

func (c *Catalog) AudioModel(id string) (AudioModel, bool) {
	for _, m := range c.Audio {
		if m.ID == id {
			return m, true
		}
	}
	return AudioModel{}, false
}

func (c *Catalog) MusicModel(id string) (MusicModel, bool) {
	for _, m := range c.Music {
		if m.ID == id {
			return m, true
		}
	}
	return MusicModel{}, false
}

// VoiceName returns the display name of a voice, or the id itself.
func (c *Catalog) VoiceName(id string) string {
	for _, v := range c.Voices {
		if v.ID == id {
			return v.Name
		}
	}
	return id
}

// DefaultModel returns the first model offered for a capability.
func (c *Catalog) DefaultModel(t domain.AssetType) string {
	switch t {
	case domain.AssetTypeImage:
		if len(c.Images) > 0 {
			return c.Images[0].ID
		}
	case domain.AssetTypeVideo:
		if len(c.Videos) > 0 {
			return c.Videos[0].ID
		}
	case domain.AssetTypeAudio:
		if len(c.Audio) > 0 {
			return c.Audio[0].ID
		}
	case domain.AssetTypeMusic:
		if len(c.Music) > 0 {
			return c.Music[0].ID
		}
	}
	return ""
}

// Resolve looks a model up within a capability. Unknown ids yield a
// ValidationError.
func (c *Catalog) Resolve(t domain.AssetType, id string) (Model, error) {
	switch t {
	case domain.AssetTypeImage:
		if m, ok := c.Image(id); ok {
			return Model{ID: m.ID, Name: m.Name, Type: t, MaxReferenceImages: m.MaxReferenceImages}, nil
		}
	case domain.AssetTypeVideo:
		if m, ok := c.Video(id); ok {
			return Model{ID: m.ID, Name: m.Name, Type: t, MaxReferenceImages: m.MaxReferenceImages, SingleOutput: m.SingleOutput}, nil
		}
	case domain.AssetTypeAudio:
		if m, ok := c.AudioModel(id); ok {
			return Model{ID: m.ID, Name: m.Name, Type: t, SingleOutput: true}, nil
		}
	case domain.AssetTypeMusic:
		if m, ok := c.MusicModel(id); ok {
			return Model{ID: m.ID, Name: m.Name, Type: t, SingleOutput: true}, nil
		}
	default:
		return Model{}, domain.Invalid("type", "unsupported capability %q", t)
	}
	return Model{}, domain.Invalid("modelId", "model %q is not available for %s", id, t)
}
