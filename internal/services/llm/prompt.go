package llm

import (
	"fmt"
	"strings"
)

const translationPromptTemplate = `You translate subtitle and transcript lines.
%s
Translate the user's text into %s.
Keep the meaning, tone, and line length close to the original. Do not add
notes, quotes, or explanations. Keep names, numbers, and symbols as written.
Respond with JSON only: {"translation": "<translated text>"}`

func translationPrompt(source, target string) string {
	source = strings.TrimSpace(source)
	sourceLine := fmt.Sprintf("The input is written in %s.", source)
	if source == "" || strings.EqualFold(source, "auto") {
		sourceLine = "Detect the input language yourself."
	}
	return fmt.Sprintf(translationPromptTemplate, sourceLine, target)
}
