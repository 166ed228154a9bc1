package repl

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// stylePrompt renders prompt in bold cyan for the colour profile w
// supports. NO_COLOR and non-terminals get the plain text back.
func stylePrompt(w io.Writer, prompt string) string {
	output := termenv.NewOutput(w)
	renderer := lipgloss.NewRenderer(w)
	renderer.SetColorProfile(output.EnvColorProfile())

	return renderer.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("6")).
		Render(prompt)
}
