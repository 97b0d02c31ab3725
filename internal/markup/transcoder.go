// Package markup converts between the XML dialect and the HTML shown on the
// rich-text editing surface.
//
// Both directions run a cascade: an explicit tree transform, then the
// legacy tag scanner, then the unchanged input. Every result records which
// step produced it, so callers can tell an exact round trip from a guess.
package markup

import (
	"fmt"
	"log/slog"

	"github.com/starford/xmledit/internal/fidelity"
)

// Mode selects the first step of the cascade.
type Mode string

const (
	ModeTree     Mode = "tree"
	ModeLegacy   Mode = "legacy"
	ModeIdentity Mode = "identity"
)

// Result is the output of one conversion.
type Result struct {
	Output   string         `json:"output"`
	Fidelity fidelity.Level `json:"fidelity"`
	Mode     Mode           `json:"mode"`
}

// Transcoder converts documents in both directions. It is safe for
// concurrent use.
type Transcoder struct {
	mode   Mode
	logger *slog.Logger
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithMode forces the first cascade step. ModeLegacy skips the tree
// transform.
func WithMode(m Mode) Option {
	return func(t *Transcoder) {
		if m == ModeLegacy {
			t.mode = ModeLegacy
		}
	}
}

// WithLogger sets the logger used to report degraded conversions.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transcoder) {
		t.logger = l
	}
}

// New creates a Transcoder running the tree transform first.
func New(opts ...Option) *Transcoder {
	t := &Transcoder{mode: ModeTree, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// XMLToMarkup renders an XML document for the editing surface.
func (t *Transcoder) XMLToMarkup(xml string) Result {
	return t.run("xml_to_markup", xml, xmlToMarkupTree, xmlToMarkupLegacy)
}

// MarkupToXML converts editing-surface markup back to the XML dialect.
func (t *Transcoder) MarkupToXML(markup string) Result {
	return t.run("markup_to_xml", markup, markupToXMLTree, markupToXMLLegacy)
}

type treeFunc func(string) (string, fidelity.Level, error)

func (t *Transcoder) run(op, in string, tree treeFunc, legacy func(string) string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("markup: conversion panicked, returning input",
				slog.String("op", op),
				slog.String("panic", fmt.Sprint(r)))
			res = Result{Output: in, Fidelity: fidelity.Fallback, Mode: ModeIdentity}
		}
	}()

	if t.mode == ModeTree {
		out, level, err := tree(in)
		if err == nil {
			return Result{Output: out, Fidelity: level, Mode: ModeTree}
		}
		t.logger.Debug("markup: tree transform failed, using legacy scan",
			slog.String("op", op),
			slog.String("error", err.Error()))
	}

	return Result{Output: legacy(in), Fidelity: fidelity.Heuristic, Mode: ModeLegacy}
}
