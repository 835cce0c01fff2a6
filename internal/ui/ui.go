// Package ui holds the interactive prompts.
package ui

import (
	"github.com/AlecAivazis/survey/v2"
)

// Confirm asks a yes/no question and returns the answer, defaulting to no.
// A prompt failure (closed stdin, interrupt) counts as no.
func Confirm(message string) bool {
	answer := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return false
	}
	return answer
}

// Always is the confirm function installed by --yes.
func Always(string) bool {
	return true
}
