package chat

// BuildPrompt combines the whole document text and the question. Nothing is
// truncated; very long documents are sent as they are.
func BuildPrompt(documentText, question string) string {
	return "Context from PDF:\n" + documentText + "\n\nQuestion: " + question
}
