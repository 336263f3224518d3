package ui

import "strings"

const (
	reset       = "\033[0m"
	bold        = "\033[1m"
	skyBlue     = "\033[38;5;117m"
	outlineGray = "\033[38;5;244m"
	beeYellow   = "\033[38;5;226m"
	honeyOrange = "\033[38;5;214m"
	bodyAmber   = "\033[38;5;178m"
	mint        = "\033[38;5;121m"
	cobalt      = "\033[38;5;33m"
	deepIndigo  = "\033[38;5;61m"
	fuchsia     = "\033[38;5;177m"
	flame       = "\033[38;5;208m"
)

// Banner renders the colored proctop wordmark.
func Banner() string {
	var b strings.Builder

	wordmarkLetters := [][]string{
		{"██████╗  ", "██╔══██╗ ", "██████╔╝ ", "██╔═══╝  ", "██║      ", "╚═╝      "},
		{"██████╗  ", "██╔══██╗ ", "██████╔╝ ", "██╔══██╗ ", "██║  ██║ ", "╚═╝  ╚═╝ "},
		{" ██████╗ ", "██╔═████╗", "██║██╔██║", "████╔╝██║", "╚██████╔╝", " ╚═════╝ "},
		{" ██████╗ ", "██╔════╝ ", "██║      ", "██║      ", "╚██████╗ ", " ╚═════╝ "},
		{"████████╗", "╚══██╔══╝", "   ██║   ", "   ██║   ", "   ██║   ", "   ╚═╝   "},
		{" ██████╗ ", "██╔═████╗", "██║██╔██║", "████╔╝██║", "╚██████╔╝", " ╚═════╝ "},
		{"██████╗  ", "██╔══██╗ ", "██████╔╝ ", "██╔═══╝  ", "██║      ", "╚═╝      "},
	}
	wordmarkGradient := []string{flame, honeyOrange, beeYellow, mint, cobalt, deepIndigo, fuchsia}
	wordmarkRows := make([]string, len(wordmarkLetters[0]))
	for i, letter := range wordmarkLetters {
		color := wordmarkGradient[i%len(wordmarkGradient)]
		for row := 0; row < len(letter); row++ {
			wordmarkRows[row] += color + letter[row] + "  "
		}
	}
	for _, line := range wordmarkRows {
		b.WriteString(bold + line + reset + "\n")
	}

	b.WriteString("\n")
	b.WriteString(bold + flame + "proctop" + reset + "  •  live process lens\n\n")

	return b.String()
}
