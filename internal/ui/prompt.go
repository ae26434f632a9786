package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// PromptTheme returns the fieldshift theme for prompts
func PromptTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary)

	t.Focused.Description = lipgloss.NewStyle().
		Foreground(ColorMuted)

	t.Focused.SelectSelector = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		SetString("> ")

	t.Focused.SelectedOption = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)

	t.Focused.UnselectedOption = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888"))

	return t
}

// Confirm prompts for yes/no confirmation
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue

	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		WithTheme(PromptTheme()).
		Run()

	return result, err
}

// Input prompts for text input
func Input(title, placeholder string, validator func(string) error) (string, error) {
	var result string

	input := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&result)

	if validator != nil {
		input = input.Validate(validator)
	}

	err := input.WithTheme(PromptTheme()).Run()
	return result, err
}

// ValidateQualifier rejects anything that is not Table.Field.
func ValidateQualifier(s string) error {
	parts := strings.Split(s, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.New("use the form Table.Field")
	}
	return nil
}

// RewriteDetails collects the inputs of a field rewrite: the same four
// entries the original desktop dialog asked for.
type RewriteDetails struct {
	Path  string
	Old   string
	New   string
	Model string
}

// RewriteForm prompts for rewrite details interactively.
func RewriteForm(defaults *RewriteDetails) (*RewriteDetails, error) {
	if defaults == nil {
		defaults = &RewriteDetails{Model: "Model.pbix"}
	}

	details := &RewriteDetails{}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Filepath").
				Description("A .pbix file, or a directory to rewrite recursively").
				Value(&details.Path).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("a path is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("Old field").
				Placeholder("Sales.Qty").
				Value(&details.Old).
				Validate(ValidateQualifier),

			huh.NewInput().
				Title("New field").
				Placeholder("Orders.Count").
				Value(&details.New).
				Validate(ValidateQualifier),

			huh.NewInput().
				Title("Model filename").
				Description("Skipped when walking a directory").
				Placeholder(defaults.Model).
				Value(&details.Model),
		),
	).WithTheme(PromptTheme())

	if err := form.Run(); err != nil {
		return nil, err
	}

	if details.Model == "" {
		details.Model = defaults.Model
	}

	return details, nil
}
