package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/matcher.txt
	matcherRaw string

	//go:embed template/synthesizer.txt
	synthesizerRaw string

	//go:embed template/direct.txt
	directRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router      string
	Matcher     string
	Synthesizer string
	Direct      string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to
// call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:      strings.TrimSpace(routerRaw),
		Matcher:     strings.TrimSpace(matcherRaw),
		Synthesizer: strings.TrimSpace(synthesizerRaw),
		Direct:      strings.TrimSpace(directRaw),
	}
}
