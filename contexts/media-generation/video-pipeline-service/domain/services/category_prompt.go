package services

import "strings"

var categoryEnhancements = map[string]string{
	"electronics": "Add focus on technical specifications and modern, clean lighting.",
	"clothing":    "Emphasize fabric textures, draping, and natural movement.",
	"furniture":   "Highlight craftsmanship, materials, and how it fits into a room setting.",
	"jewelry":     "Use macro shots and dramatic lighting to capture sparkle and detail.",
	"food":        "Showcase texture, color, and presentation with warm, appetizing lighting.",
}

// EnhanceForCategory appends the category's camera/lighting hint once.
// Unknown categories leave the prompt untouched.
func EnhanceForCategory(promptText string, category string) string {
	enhancement, ok := categoryEnhancements[strings.ToLower(strings.TrimSpace(category))]
	if !ok || strings.Contains(promptText, enhancement) {
		return promptText
	}
	return strings.TrimSpace(promptText) + " " + enhancement
}
