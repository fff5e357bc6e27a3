package classifier

import (
	"regexp"
	"strings"
)

// Fast-path pattern tables for knowledge-base commands. Removal is checked
// before addition: a sentence carrying both cues is treated as a removal.

var addPrefixes = []string{
	"remember", "note:", "note that", "add to knowledge base",
	"save that", "record that", "keep in mind", "update:",
	"don't forget", "log that", "mark that",
}

var removePrefixes = []string{
	"remove from knowledge base", "delete from knowledge base",
	"remove from kb", "delete from kb",
	"remove the note about", "delete the note about",
	"take out the part about", "remove the entry about",
}

var (
	removePattern = regexp.MustCompile(
		`(?i)(remove|delete|take out|clear|drop|get rid of)\b.*(knowledge base|kb|from it|from the kb|note about|entry about|info about|information about)`)

	thirdPersonPattern = regexp.MustCompile(
		`(?i)^(he|she|they|client|this client)\s+(mentioned|said|told|prefers?|wants?|needs?|is |has |just )`)

	leadingPronoun = regexp.MustCompile(`(?i)^(he|she|they|client|this client)\s+`)

	removeVerbPrefix = regexp.MustCompile(
		`(?i)^(update the knowledge base and |update the kb and |update kb and )?(remove|delete|take out|clear|drop|get rid of)\s+`)

	removeSuffix = regexp.MustCompile(`(?i)\s*(from (the )?(knowledge base|kb|it))\.?$`)
)

func isKnowledgeRemove(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range removePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return removePattern.MatchString(lower)
}

func isKnowledgeAdd(text string) bool {
	if isKnowledgeRemove(text) {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range addPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return thirdPersonPattern.MatchString(lower)
}

// extractAddEntries returns the entry text for an addition command: the
// remainder after the matched prefix, or the whole sentence with a leading
// pronoun clause stripped. Empty extraction returns nil so the caller falls
// through to the reasoning router.
func extractAddEntries(text string) []string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, prefix := range addPrefixes {
		if strings.HasPrefix(lower, prefix) {
			remainder := strings.TrimSpace(trimmed[len(prefix):])
			remainder = strings.TrimSpace(strings.TrimPrefix(remainder, ":"))
			if remainder != "" {
				return []string{remainder}
			}
			break
		}
	}
	cleaned := strings.TrimSpace(leadingPronoun.ReplaceAllString(trimmed, ""))
	if cleaned == "" {
		return nil
	}
	return []string{cleaned}
}

// extractRemoveKeywords strips the removal scaffolding (verb prefix, KB
// suffix) and returns what is left as a single keyword phrase.
func extractRemoveKeywords(text string) []string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, prefix := range removePrefixes {
		if strings.HasPrefix(lower, prefix) {
			remainder := strings.TrimSpace(trimmed[len(prefix):])
			remainder = strings.TrimSpace(strings.TrimPrefix(remainder, ":"))
			if remainder != "" {
				return []string{remainder}
			}
			break
		}
	}
	cleaned := removeVerbPrefix.ReplaceAllString(trimmed, "")
	cleaned = strings.TrimSpace(removeSuffix.ReplaceAllString(cleaned, ""))
	if cleaned == "" {
		return nil
	}
	return []string{cleaned}
}
