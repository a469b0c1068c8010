package openai

// assistantInstructions configures the reusable tagging assistant. Keep
// prompt text centralized here so it is easy to tweak without hunting
// through call sites.
const assistantInstructions = `I'll provide several articles, unrelated and not bound.
I want you to provide a list of tags for each article.
Better to have as few tags (topics) as possible, but as the number of articles is potentially infinite it may not be possible.`

// threadSeedInstructions are the two fixed framing messages a new
// conversation thread is created with. They establish the batched
// request/response shape every subsequent submission relies on.
var threadSeedInstructions = []string{
	`All upcoming requests will be one or more articles, a json-formatted map with 1 or more entries. I want to have a list of tags for each article. Each tag must be a string without any space, so use underscores or camelCase, but the same format for all tags. Good to have 5 tags per article, maximum is 10. Reuse tags as much as possible (if applicable). For the next message I don't want any output, just analyse it and get tags. If an article's text contains only a link it does not have any tags (put null). All tags must be in english.`,
	`For all upcoming messages provide lists of tags. The request will be json, where the key is the id of an article and the value is the text of that article. The response must be json as well, where the key is the id of an article and the value is the tags you chose for it.`,
}
