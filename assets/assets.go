// Package assets embeds the static files shipped inside the binary.
package assets

import "embed"

//go:embed templates/*
var EmbedTemplates embed.FS
