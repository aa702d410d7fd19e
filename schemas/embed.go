// Package schemas embeds the JSON Schemas of the viewer protocol.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS
