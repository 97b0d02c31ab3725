package parser

import (
	"testing"
)

func TestParseDocument_Product(t *testing.T) {
	input := []byte(`<?xml version="1.0"?>
<product manualCode="MC-42"><title> Engine Manual </title>
<topicRef ref="t1.xml"/><topicRef ref="t2.xml"/><topicRef/></product>`)
	s := ParseDocument(input, "index.xml")
	if s.Kind != KindIndex {
		t.Fatalf("kind = %q, want index", s.Kind)
	}
	if s.Title != "Engine Manual" {
		t.Errorf("title = %q", s.Title)
	}
	if s.Subtype != "MC-42" {
		t.Errorf("subtype = %q, want MC-42", s.Subtype)
	}
	if len(s.References) != 2 || s.References[0] != "t1.xml" || s.References[1] != "t2.xml" {
		t.Errorf("references = %v", s.References)
	}
}

func TestParseDocument_TopicDefaults(t *testing.T) {
	s := ParseDocument([]byte(`<topic><sectionRef ref="s1.xml"/></topic>`), "t.xml")
	if s.Kind != KindTopic {
		t.Fatalf("kind = %q, want topic", s.Kind)
	}
	if s.Title != "Untitled Topic" {
		t.Errorf("title = %q", s.Title)
	}
	if s.Subtype != "chapter" {
		t.Errorf("subtype = %q, want chapter", s.Subtype)
	}
	if len(s.References) != 1 || s.References[0] != "s1.xml" {
		t.Errorf("references = %v", s.References)
	}
}

func TestParseDocument_SectionTitleFromFirstParagraph(t *testing.T) {
	s := ParseDocument([]byte(`<section type="procedure"><para>Check the <bold>oil</bold>.</para><para>Second</para></section>`), "s.xml")
	if s.Kind != KindSection || s.Subtype != "procedure" {
		t.Fatalf("kind/subtype = %q/%q", s.Kind, s.Subtype)
	}
	if s.Title != "Check the oil." {
		t.Errorf("title = %q", s.Title)
	}

	s = ParseDocument([]byte(`<section><paragraph>Alt</paragraph></section>`), "s2.xml")
	if s.Title != "Alt" || s.Subtype != "definition" {
		t.Errorf("title/subtype = %q/%q", s.Title, s.Subtype)
	}

	s = ParseDocument([]byte(`<section/>`), "s3.xml")
	if s.Title != "Untitled Section" {
		t.Errorf("title = %q", s.Title)
	}
}

func TestParseDocument_UnknownAndError(t *testing.T) {
	s := ParseDocument([]byte(`<glossary><term/></glossary>`), "g.xml")
	if s.Kind != KindUnknown || s.Title != "glossary Document" {
		t.Errorf("unknown = %q/%q", s.Kind, s.Title)
	}

	s = ParseDocument([]byte(`<topic><title>x</topic>`), "bad.xml")
	if s.Kind != KindError {
		t.Fatalf("kind = %q, want error", s.Kind)
	}
	if s.Title != "Error: bad.xml" || s.Error == "" {
		t.Errorf("error summary = %+v", s)
	}
	if s.References == nil {
		t.Error("references should be an empty slice")
	}
}

func TestParseDocument_Text(t *testing.T) {
	s := ParseDocument([]byte("<topic><title>A</title>\n  <para>b  c</para></topic>"), "t.xml")
	if s.Text != "A b c" {
		t.Errorf("text = %q", s.Text)
	}
}

func TestSort(t *testing.T) {
	list := []*Summary{
		{Filename: "u", Kind: KindUnknown, Title: "a"},
		{Filename: "e", Kind: KindError, Title: "a"},
		{Filename: "s", Kind: KindSection, Title: "a"},
		{Filename: "t2", Kind: KindTopic, Title: "b"},
		{Filename: "t1", Kind: KindTopic, Title: "a"},
		{Filename: "i", Kind: KindIndex, Title: "z"},
	}
	Sort(list)
	want := []string{"i", "t1", "t2", "s", "e", "u"}
	for i, s := range list {
		if s.Filename != want[i] {
			t.Fatalf("order[%d] = %q, want %q (full order %v)", i, s.Filename, want[i], names(list))
		}
	}
}

func names(list []*Summary) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Filename
	}
	return out
}
