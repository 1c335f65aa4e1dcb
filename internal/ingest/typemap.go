package ingest

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/JonMunkholm/catalog/internal/catalog"
	"gopkg.in/yaml.v3"
)

//go:embed linkmap.yaml
var defaultLinkMaps []byte

// TypeMap maps a source kind's type to the type of a created counterpart.
type TypeMap struct {
	Default string            `yaml:"default"`
	Map     map[string]string `yaml:"map"`
}

// Lookup returns the counterpart type for src, or the default.
func (m TypeMap) Lookup(src string) string {
	if t, ok := m.Map[catalog.NormalizeEnum(src)]; ok {
		return t
	}
	return m.Default
}

func (m TypeMap) check(name string, legal []string) error {
	ok := func(v string) bool {
		for _, l := range legal {
			if v == l {
				return true
			}
		}
		return false
	}
	if !ok(m.Default) {
		return fmt.Errorf("%s: default %q is not a legal type", name, m.Default)
	}
	for from, to := range m.Map {
		if !ok(to) {
			return fmt.Errorf("%s: %s maps to %q, which is not a legal type", name, from, to)
		}
	}
	return nil
}

// LinkMaps holds the type map of every link.
type LinkMaps struct {
	UploadToContent TypeMap `yaml:"upload_to_content"`
	MediaToUpload   TypeMap `yaml:"media_to_upload"`
}

// DefaultLinkMaps returns the built-in type maps.
func DefaultLinkMaps() LinkMaps {
	m, err := parseLinkMaps(defaultLinkMaps, LinkMaps{})
	if err != nil {
		panic(fmt.Sprintf("built-in link maps: %v", err))
	}
	return m
}

// LoadLinkMaps returns the built-in type maps overlaid with the file at
// path. An empty path returns the built-ins.
func LoadLinkMaps(path string) (LinkMaps, error) {
	base := DefaultLinkMaps()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return LinkMaps{}, fmt.Errorf("read link maps: %w", err)
	}
	return parseLinkMaps(data, base)
}

// parseLinkMaps decodes data on top of base; entries in data win.
func parseLinkMaps(data []byte, base LinkMaps) (LinkMaps, error) {
	var overlay LinkMaps
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return LinkMaps{}, fmt.Errorf("parse link maps: %w", err)
	}

	out := LinkMaps{
		UploadToContent: merge(base.UploadToContent, overlay.UploadToContent),
		MediaToUpload:   merge(base.MediaToUpload, overlay.MediaToUpload),
	}
	if err := out.UploadToContent.check("upload_to_content", catalog.ContentTypes); err != nil {
		return LinkMaps{}, err
	}
	if err := out.MediaToUpload.check("media_to_upload", catalog.UploadTypes); err != nil {
		return LinkMaps{}, err
	}
	return out, nil
}

func merge(base, overlay TypeMap) TypeMap {
	out := TypeMap{Default: base.Default, Map: make(map[string]string, len(base.Map)+len(overlay.Map))}
	if overlay.Default != "" {
		out.Default = catalog.NormalizeEnum(overlay.Default)
	}
	for k, v := range base.Map {
		out.Map[k] = v
	}
	for k, v := range overlay.Map {
		out.Map[catalog.NormalizeEnum(k)] = catalog.NormalizeEnum(v)
	}
	return out
}
