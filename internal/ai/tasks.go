package ai

import "strings"

// Task selects the prompt template a request is rendered with.
type Task string

const (
	TaskExpert            Task = "xml_expert"
	TaskAnalysis          Task = "xml_analysis"
	TaskChangeAnalysis    Task = "xml_change_analysis"
	TaskValidation        Task = "xml_validation"
	TaskDocumentation     Task = "xml_documentation"
	TaskEditor            Task = "xml_editor"
	TaskProduceEdits      Task = "xml_produce_edits"
	TaskRevisionComment   Task = "xml_revision_comment"
	TaskRevisionStructure Task = "xml_revision_structure"
)

// Tasks lists every known task in a stable order.
var Tasks = []Task{
	TaskExpert, TaskAnalysis, TaskChangeAnalysis, TaskValidation, TaskDocumentation,
	TaskEditor, TaskProduceEdits, TaskRevisionComment, TaskRevisionStructure,
}

// ParseTask maps a keyword onto a Task. Empty and unknown keywords map to
// TaskExpert; ok is false only for unknown ones.
func ParseTask(s string) (task Task, ok bool) {
	if s == "" {
		return TaskExpert, true
	}
	for _, t := range Tasks {
		if string(t) == s {
			return t, true
		}
	}
	return TaskExpert, false
}

type template struct {
	intro string
	// lead introduces the context; the block is omitted when context is
	// empty unless always is set.
	lead   string
	always bool
	outro  string
}

var templates = map[Task]template{
	TaskExpert: {
		intro: `You are an expert XML analyst and consultant with deep knowledge of XML technologies, standards, and best practices.

Your responsibilities include:
- Analyzing XML document structure, syntax, and semantics
- Providing detailed commentary on XML files
- Identifying potential issues, improvements, and optimizations
- Explaining XML concepts clearly and concisely
- Following XML 1.0/1.1 specifications and related standards (XSD, XSLT, XPath, etc.)`,
		lead:  "Please analyze the following XML content and provide comprehensive insights:\n\n",
		outro: "Always provide accurate, professional analysis while being thorough yet concise in your explanations.",
	},
	TaskAnalysis: {
		intro: `You are an XML file analyzer specializing in comprehensive document review and commentary.

When analyzing XML files, provide:
- Document structure overview and hierarchy analysis
- Element and attribute usage patterns
- Namespace declarations and usage validation
- Syntax correctness and well-formedness verification
- Schema compliance assessment (if applicable)
- Performance and optimization recommendations
- Security considerations and potential vulnerabilities
- Accessibility and maintainability insights`,
		lead:  "Please analyze the following XML document and provide detailed analysis:\n\n",
		outro: "Format your analysis with clear sections and actionable recommendations. Use technical precision while remaining accessible to developers of varying XML experience levels.",
	},
	TaskChangeAnalysis: {
		intro: "Compare the XML content and describe what changed in one sentence.",
		lead:  "XML content:\n",
		outro: "Response format: One sentence describing the main change.",
	},
	TaskValidation: {
		intro: `You are an XML validation specialist focused on ensuring document quality and adherence to best practices.

Your validation scope includes:
- Well-formedness verification (proper nesting, closing tags, character encoding)
- Schema validation against XSD, DTD, or RelaxNG
- Namespace correctness and consistency
- Security best practices (XXE prevention, input sanitization)
- Documentation and maintainability standards`,
		lead: "Please validate and analyze the following XML document:\n\n",
		outro: `Provide:
- Clear validation results with specific error locations
- Severity levels for identified issues
- Step-by-step remediation instructions
- Code examples for corrections

Structure your response with validation status, issues found, and actionable improvement suggestions.`,
	},
	TaskDocumentation: {
		intro: `You are an XML documentation specialist expert at explaining XML concepts and creating comprehensive documentation.

When documenting XML:
- Explain complex XML structures in simple terms
- Create clear element and attribute documentation
- Provide usage examples and code snippets
- Document relationships between different parts of the schema
- Provide troubleshooting information for common issues`,
		lead:  "Please document and explain the following XML content:\n\n",
		outro: "Present information in a logical, hierarchical structure that builds understanding progressively.",
	},
	TaskEditor: {
		intro: `You are an XML editor specialist focused on making precise modifications to XML documents based on user requirements.

Your editing capabilities include:
- Adding, removing, or modifying XML elements and attributes
- Restructuring XML hierarchy and organization
- Updating content while preserving document validity
- Merging or splitting XML sections`,
		lead: "Please make the following modifications to the XML:\n\n",
		outro: `When editing XML:
- Maintain well-formedness and validity
- Preserve existing functionality unless explicitly asked to change it
- Provide clear explanations of changes made

Always return the complete modified XML document and explain the changes made.`,
	},
	TaskProduceEdits: {
		intro: `You are an expert XML editor.
You will receive a list of revision instructions, followed by the XML content to modify.
Apply ONLY the requested revisions to the XML.

Return ONLY a single, complete, valid XML document as your response. Do not include any explanations, comments, or extra text.
If the instructions are ambiguous or reference multiple documents, return only ONE XML document that best fits the instructions.
NEVER return more than one XML document or more than one root element.`,
		lead:   "Instructions and XML to edit:\n",
		always: true,
		outro:  "Respond with the revised XML only.",
	},
	TaskRevisionComment: {
		intro: `You are an XML revision specialist expert at analyzing changes and generating concise revision comments.

Based on the change analysis provided, generate a professional revision comment that summarizes the key changes made to the XML document.`,
		lead: "Change Analysis:\n",
		outro: `Guidelines for revision comments:
- Keep comments concise (1-2 sentences maximum)
- Use professional, clear language
- Focus on the most significant changes
- Use action words (added, updated, modified, removed, corrected)
- Be specific about what changed rather than generic

Return ONLY the revision comment text - no XML structure, no additional formatting.`,
	},
	TaskRevisionStructure: {
		intro: `You are an XML revision specialist that generates properly formatted XML revision elements.

Based on the change analysis provided, generate a complete XML revision element with the following structure:

<Revision>
  <RevisionNumber>1.0</RevisionNumber>
  <RevisionDate>YYYY-MM-DD</RevisionDate>
  <RevisionComment>{brief_summary_of_changes}</RevisionComment>
</Revision>`,
		lead: "Change Analysis:\n",
		outro: `Requirements:
- Return ONLY the complete XML element - no explanations, no additional text
- Keep the revision comment brief (1-2 sentences maximum)
- Use proper XML formatting with correct indentation`,
	},
}

// Prompt renders the template of task around context. Unknown tasks use
// the TaskExpert template.
func Prompt(task Task, context string) string {
	tpl, ok := templates[task]
	if !ok {
		tpl = templates[TaskExpert]
	}
	var b strings.Builder
	b.WriteString(tpl.intro)
	b.WriteString("\n\n")
	if context != "" || tpl.always {
		b.WriteString(tpl.lead)
		b.WriteString(context)
		b.WriteString("\n\n")
	}
	b.WriteString(tpl.outro)
	return b.String()
}

// ChangeAnalysisPrompt asks for a structured comparison of two snapshots.
func ChangeAnalysisPrompt(original, current string) string {
	return `You are an expert technical documentation analyst. Compare these two XML documents and provide a detailed analysis of what changed. Focus on meaningful changes that would be important for revision tracking in a technical manual.

ORIGINAL XML:
` + original + `

CURRENT XML:
` + current + `

Please analyze and provide:
1. What specific content was added, modified, or removed
2. The significance of each change
3. Impact on users/operators
4. Any safety or procedural implications

Format your response as a clear, structured analysis that explains the changes in professional technical documentation language. Be specific about what changed rather than generic.

If no significant changes are detected, state that clearly.`
}

// CommentPrompt asks for a one-line revision comment derived from an
// analysis text.
func CommentPrompt(analysis string) string {
	return `Based on the following detailed change analysis, generate a concise, professional revision comment for a technical manual. The comment should be 1-2 sentences that clearly explain what changed and why it matters to users.

Change Analysis:
` + analysis + `

Requirements for the revision comment:
- Be specific about what changed (not generic)
- Use professional technical documentation language
- Keep it concise (under 150 characters if possible)
- Focus on the most significant change if multiple changes exist
- Use action words (Updated, Added, Corrected, Modified, etc.)

Examples of good revision comments:
- "Updated caution note under engine startup procedure to reflect new OEM guidance."
- "Added safety warning for high-voltage components in maintenance section."
- "Corrected torque specifications for wheel lug nuts based on manufacturer update."

Generate ONLY the revision comment text (no quotes, no additional formatting):`
}
