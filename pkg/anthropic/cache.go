package anthropic

// BuildCachedSystemBlocks wraps text in a single system block with a 1-hour
// cache breakpoint, so repeated calls in one run reuse the prompt prefix.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "1h"},
		},
	}
}
