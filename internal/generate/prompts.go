package generate

import _ "embed"

var (
	//go:embed prompts/quick_v1.txt
	promptQuick string
	//go:embed prompts/deep_v1.txt
	promptDeep string
	//go:embed prompts/from_scratch_v1.txt
	promptFromScratch string
)

// PromptTemplate returns the system prompt for a generation mode and whether
// the mode was recognized. Unknown modes fall back to the quick prompt.
func PromptTemplate(mode string) (string, bool) {
	switch mode {
	case "QUICK":
		return promptQuick, true
	case "DEEP":
		return promptDeep, true
	case "FROM_SCRATCH":
		return promptFromScratch, true
	default:
		return promptQuick, false
	}
}
