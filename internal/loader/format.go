package loader

import (
	"net/url"
	"path"
	"strings"
)

// Format names a manifest layout.
type Format string

const (
	// FormatLayers is a layer-list manifest, as written by layered model exporters.
	FormatLayers Format = "layers-model"
	// FormatGraph is a flat op-graph manifest.
	FormatGraph Format = "graph-model"
)

// FormatOrder returns the decode order for a locator: a .json suffix means the
// layered format is tried first, anything else starts with the graph format.
func FormatOrder(u *url.URL) []Format {
	if strings.EqualFold(path.Ext(u.Path), ".json") {
		return []Format{FormatLayers, FormatGraph}
	}
	return []Format{FormatGraph, FormatLayers}
}
