package vault

import "strings"

// DefaultMaxChunkChars bounds chunk size so each embedding covers a coherent
// passage rather than a whole document.
const DefaultMaxChunkChars = 1500

// ChunkText splits text on paragraph boundaries, accumulating paragraphs into
// chunks of at most maxChars. A single paragraph longer than maxChars becomes
// its own oversized chunk; splitting mid-paragraph hurts retrieval more than
// an occasional long embedding input.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder

	for _, p := range paragraphs {
		if current.Len()+len(p) < maxChars {
			current.WriteString(p)
			current.WriteString("\n\n")
			continue
		}
		if current.Len() > 0 {
			if chunk := strings.TrimSpace(current.String()); chunk != "" {
				chunks = append(chunks, chunk)
			}
			current.Reset()
		}
		current.WriteString(p)
		current.WriteString("\n\n")
	}
	if current.Len() > 0 {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
