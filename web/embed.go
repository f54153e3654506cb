// Package web embeds the HTML templates and static assets served by
// cmd/orcamento.
package web

import "embed"

// TemplatesFS holds the page and its htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds css and js.
//
//go:embed static/*
var StaticFS embed.FS
