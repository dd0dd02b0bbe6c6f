package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

var encodingOnce = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

// CountTokens estimates the token count of text. When the encoding cannot
// be loaded it falls back to the rough four-characters-per-token heuristic.
func CountTokens(text string) int {
	enc, err := encodingOnce()
	if err != nil {
		log.Debug().Err(err).Msg("llm: token encoding unavailable, using heuristic")
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateRequestTokens sums the token counts of a request's prompt parts.
func EstimateRequestTokens(req *CompletionRequest) int {
	total := CountTokens(req.SystemPrompt)
	for _, m := range req.Messages {
		total += CountTokens(m.Content)
	}
	return total
}
