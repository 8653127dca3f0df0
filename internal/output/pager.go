package output

import (
	"os"
	"os/exec"
	"strings"
)

// ShouldPage reports whether content is taller than termHeight and stdout
// is a terminal.
func ShouldPage(content string, termHeight int) bool {
	if !isTerminal() {
		return false
	}
	return strings.Count(content, "\n") > termHeight
}

// Page pipes content through $PAGER, or less.
func Page(content string) error {
	pager := os.Getenv("PAGER")
	if pager == "" {
		pager = "less"
	}
	cmd := exec.Command(pager)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Show prints content, paging it when it would not fit the terminal.
func Show(content string) error {
	if ShouldPage(content, 40) {
		if err := Page(content); err == nil {
			return nil
		}
	}
	_, err := os.Stdout.WriteString(content)
	return err
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
