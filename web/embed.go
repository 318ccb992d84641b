package web

import "embed"

// TemplatesFS embeds the terminal templates the views render with.
//
//go:embed templates/*.tmpl
var TemplatesFS embed.FS
