package tools

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// DefaultCharLimits bounds the output of each command before it reaches
// the model.
var DefaultCharLimits = map[string]int{
	"readFile":      50000,
	"executeShell":  30000,
	"searchFiles":   20000,
	"google":        20000,
	"browseWebsite": 20000,
	"messageAgent":  20000,
}

// DefaultTruncationModes selects the truncation mode per command.
var DefaultTruncationModes = map[string]TruncationMode{
	"readFile":      TruncateHeadTail,
	"executeShell":  TruncateHeadTail,
	"searchFiles":   TruncateTail,
	"google":        TruncateHeadTail,
	"browseWebsite": TruncateHeadTail,
	"messageAgent":  TruncateHeadTail,
}

// DefaultLineLimits caps line counts after character truncation.
var DefaultLineLimits = map[string]int{
	"executeShell": 256,
	"searchFiles":  500,
}

const fallbackCharLimit = 30000

// TruncateOutput shortens output to maxChars.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	removed := len(output) - maxChars

	if mode == TruncateTail {
		return fmt.Sprintf("[WARNING: Output was truncated. First %d characters were removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	}
	half := maxChars / 2
	return output[:half] +
		fmt.Sprintf("\n\n[WARNING: Output was truncated. %d characters were removed from the middle. "+
			"If you need to see specific parts, run the command again with more targeted arguments.]\n\n", removed) +
		output[len(output)-half:]
}

// TruncateLines keeps the first and last lines of output.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// Truncate applies the character limit and then the line limit configured
// for command.
func Truncate(output, command string) string {
	maxChars, ok := DefaultCharLimits[command]
	if !ok {
		maxChars = fallbackCharLimit
	}
	mode, ok := DefaultTruncationModes[command]
	if !ok {
		mode = TruncateHeadTail
	}
	result := TruncateOutput(output, maxChars, mode)
	if maxLines := DefaultLineLimits[command]; maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}
	return result
}
