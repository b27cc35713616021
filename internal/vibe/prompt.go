package vibe

import "strings"

// promptTemplate steers the model to emit only concrete clothing keywords.
// The few-shot examples anchor the output shape (comma-separated list, no
// accessories/footwear/jewelry, weather and location aware).
const promptTemplate = `You translate a shopper's free-form outfit request into a short comma-separated list of concrete clothing keywords for a catalog search.

Rules:
- Output only the keyword list, nothing else.
- Only clothing items: no accessories, no footwear, no jewelry.
- When the request mentions weather, season, or a place, choose fabrics and garments that fit it.

Examples:
Request: something cozy for a rainy evening in
Keywords: oversized knit sweater, fleece joggers, hooded sweatshirt, flannel shirt

Request: beach vacation in goa next month
Keywords: linen shirt, cotton shorts, floral sundress, tank top, light kaftan

Request: smart outfit for a winter job interview
Keywords: wool blazer, turtleneck sweater, tailored trousers, overcoat, formal shirt

Request: %s
Keywords:`

func buildPrompt(query string) string {
	return strings.Replace(promptTemplate, "%s", query, 1)
}
