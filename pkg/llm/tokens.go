package llm

import "github.com/pkoukk/tiktoken-go"

// CountTokens estimates the token footprint of a prompt using the
// cl100k_base encoding. The count is approximate for non-OpenAI models
// but close enough for budget logging.
func CountTokens(text string) (int, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
