// Package templates embeds the default workspace configuration, phase
// catalog and starter draft.
package templates

import "embed"

//go:embed config.yaml catalog.yaml draft.yaml
var FS embed.FS
