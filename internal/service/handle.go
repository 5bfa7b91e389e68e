package service

import (
	"context"
	"errors"
	"strings"

	"newslens/internal/domain"
)

// Input is one user action: the URL fields, whether the build button was
// pressed, and the question field.
type Input struct {
	URLs     []string
	Build    bool
	Question string
	// Progress, if set, receives build progress as it happens.
	Progress func(string)
}

// Output is everything a surface needs to render after an action.
type Output struct {
	Progress []string
	Warnings []string
	Answer   string
	Sources  []string
}

// Handle runs the action described by in. Errors are reported as warnings.
func (c *Controller) Handle(ctx context.Context, s *Session, in Input) Output {
	var out Output
	if in.Build {
		warnings, err := c.Build(ctx, s, in.URLs, func(msg string) {
			out.Progress = append(out.Progress, msg)
			if in.Progress != nil {
				in.Progress(msg)
			}
		})
		for _, w := range warnings {
			out.Warnings = append(out.Warnings, w.Error())
		}
		if err != nil {
			out.Warnings = append(out.Warnings, Message(err))
		}
	}
	if strings.TrimSpace(in.Question) != "" {
		answer, err := c.Ask(ctx, s, in.Question)
		if err != nil {
			out.Warnings = append(out.Warnings, Message(err))
		}
		out.Answer = answer.Text
		out.Sources = answer.Sources
	}
	return out
}

// Message renders an action error for display.
func Message(err error) string {
	switch {
	case errors.Is(err, domain.ErrIndexWrite):
		return "Error: " + err.Error()
	case errors.Is(err, domain.ErrIndexNotReady):
		return NotReadyMessage
	case errors.Is(err, ErrNoURLs):
		return "Please enter at least one URL."
	case errors.Is(err, ErrTooManyURLs):
		return "At most 3 URLs can be processed at once."
	case errors.Is(err, ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, context.Canceled):
		return "Canceled."
	}
	return "Error: " + err.Error()
}
