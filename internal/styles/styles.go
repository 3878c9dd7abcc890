package styles

import (
	"os"

	"github.com/muesli/termenv"
)

var (
	stdout = termenv.NewOutput(os.Stdout)
	stderr = termenv.NewOutput(os.Stderr)

	ERROR = func(s string) string {
		return stderr.String(s).
			Foreground(stderr.Color("9")).
			String()
	}
	WARNING = func(s string) string {
		return stderr.String(s).
			Foreground(stderr.Color("11")).
			String()
	}
	DETAIL = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("8")).
			String()
	}
)

// typeColors maps completion item types to ANSI colors.
var typeColors = map[string]string{
	"alias":      "13",
	"command":    "12",
	"executable": "12",
	"argument":   "14",
	"file":       "7",
	"directory":  "10",
	"keyword":    "11",
	"builtin":    "11",
	"history":    "6",
	"snippet":    "5",
	"prediction": "3",
}

// Label colors a completion label by its item type. Unknown types are bold.
func Label(s string, itemType string) string {
	styled := stdout.String(s)
	if color, ok := typeColors[itemType]; ok {
		return styled.Foreground(stdout.Color(color)).String()
	}
	return styled.Bold().String()
}
