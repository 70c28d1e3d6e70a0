package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

var errPromptAborted = errors.New("prompt aborted")

// promptToken asks for the group token on the terminal without echoing it.
func promptToken(ctx context.Context) (string, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	var token string
	prompt := &survey.Password{
		Message: "Group token:",
		Help:    "Token used to query the search API on behalf of your group.",
	}
	if err := survey.AskOne(prompt, &token, survey.WithValidator(survey.Required)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", errPromptAborted
		}
		return "", fmt.Errorf("prompt token: %w", err)
	}
	return token, nil
}
