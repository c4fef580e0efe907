package prompts

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed file_summary.md
var fileSummaryPromptTemplate string

//go:embed commit_summary.md
var commitSummaryPromptTemplate string

//go:embed answer.md
var answerPromptTemplate string

// UnknownAnswer is the reply the model is told to give when the retrieved
// context does not cover the question.
const UnknownAnswer = "I'm sorry, but I don't know the answer."

func BuildFileSummaryPrompt(filePath, language, content string) string {
	lang := ""
	if language != "" {
		lang = "The file is written in " + language + "."
	}
	return fmt.Sprintf(strings.TrimSpace(fileSummaryPromptTemplate), filePath, lang, content)
}

func BuildCommitSummaryPrompt(diff string) string {
	return fmt.Sprintf(strings.TrimSpace(commitSummaryPromptTemplate), diff)
}

func BuildAnswerPrompt(contextBlock, question string) string {
	return fmt.Sprintf(strings.TrimSpace(answerPromptTemplate), contextBlock, question, UnknownAnswer)
}
