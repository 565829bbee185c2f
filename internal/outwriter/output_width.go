package outwriter

import (
	"os"

	"github.com/huangsam/reposcore/internal/contract"
	"golang.org/x/term"
)

// GetMaxTableNameWidth calculates the maximum width for repository names in table output
// based on terminal width and table configuration.
func GetMaxTableNameWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80
		} else {
			termWidth = detectedWidth
		}
	}

	// Rank + Language + Score + Label with borders/padding
	baseWidth := 40

	// The ten scored signals
	if cfg.Detail {
		baseWidth += 100
	}

	// Table borders, separators, and padding
	baseWidth += 20

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
