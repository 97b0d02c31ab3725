package mcpserver

// DialectContract describes the XML vocabulary documents in the samples
// directory use. LLM consumers should read it before producing XML.
const DialectContract = `# xmledit Document Dialect

Documents are UTF-8 XML files with a ` + "`.xml`" + ` extension. Each file has exactly
one root element, which decides its kind in the catalog.

## Document kinds

| root | kind | title | subtype |
|---|---|---|---|
| ` + "`product`" + ` | index | first ` + "`title`" + ` | ` + "`manualCode`" + ` attribute |
| ` + "`topic`" + ` | topic | first ` + "`title`" + ` | ` + "`type`" + ` attribute, default chapter |
| ` + "`section`" + ` | section | first ` + "`para`" + ` or ` + "`paragraph`" + ` | ` + "`type`" + ` attribute, default definition |

Any other root is listed as unknown; files that are not well formed are listed as errors.

## Cross references

- A product lists its topics with ` + "`<topicRef ref=\"topic.xml\"/>`" + `.
- A topic lists its sections with ` + "`<sectionRef ref=\"section.xml\"/>`" + `.
- ` + "`ref`" + ` is a path relative to the referencing file's directory.

## Body elements

- ` + "`title`" + ` heading, ` + "`para`" + ` / ` + "`paragraph`" + ` paragraph
- ` + "`bold`" + `, ` + "`italic`" + ` inline emphasis
- ` + "`list type=\"ordered|unordered\"`" + ` with ` + "`item`" + ` children
- ` + "`frontMatter`" + ` document header
- ` + "`revisionMetadata`" + `, ` + "`revisionDate`" + `, ` + "`revisionComment`" + ` editorial metadata

Elements outside this list are kept verbatim by the editor.

## Revision history

Revisions live in a ` + "`Revisions`" + ` container, the first child of the root:

` + "```" + `xml
<Revisions>
  <Revision>
    <RevisionNumber>1.1</RevisionNumber>
    <RevisionDate>2025-01-31</RevisionDate>
    <RevisionComment>Added safety warnings.</RevisionComment>
  </Revision>
</Revisions>
` + "```" + `

## Rules

1. Never edit or remove existing ` + "`Revision`" + ` entries; use the insert_revision tool to add one.
2. Revision numbers are ` + "`major.minor`" + `; each new revision increments the minor part.
3. Dates are ` + "`YYYY-MM-DD`" + `.
4. Escape ` + "`&`, `<` and `>`" + ` in text content.
5. Validate with validate_xml before writing a document.
`
