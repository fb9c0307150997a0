package driven

// PromptStore provides access to prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
// Templates use {placeholder} markers that the prompt assembler replaces.
const (
	// PromptSystem is the fixed instruction describing the assistant's role
	// and behavioural constraints. No placeholders.
	PromptSystem = "system"

	// PromptRAG is the retrieval-augmented body.
	// Placeholders: {context}, {history}, {question}.
	PromptRAG = "rag"

	// PromptSymptoms is the stateless symptom request.
	// Placeholder: {symptoms}.
	PromptSymptoms = "symptoms"
)
