package tokenizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer is injected into both the chunker and the cost estimates so the
// two always agree on what a token is. Window sizes and overlap figures are
// only meaningful relative to one tokenizer.
type Tokenizer interface {
	Name() string
	Encode(text string) []string
	Count(text string) int
}

// DefaultEncoding is the reference tokenizer. It matches the OpenAI
// embedding and chat models this system is normally run against.
const DefaultEncoding = "cl100k_base"

// Tiktoken wraps a BPE encoding from tiktoken-go.
type Tiktoken struct {
	name string
	tke  *tiktoken.Tiktoken
}

func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{name: encoding, tke: tke}, nil
}

func (t *Tiktoken) Name() string { return t.name }

// Encode returns the decoded text of each BPE token so the chunker can
// reassemble windows by joining them back.
func (t *Tiktoken) Encode(text string) []string {
	ids := t.tke.Encode(text, nil, nil)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.tke.Decode([]int{id})
	}
	return out
}

func (t *Tiktoken) Count(text string) int {
	return len(t.tke.Encode(text, nil, nil))
}

// wordRe matches unicode words, keeping apostrophes inside them.
var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+|[^\s\p{L}\p{N}]`)

// Words is the offline fallback: whitespace-delimited word tokens. Counts
// run roughly 25% lower than BPE counts for English prose, which is close
// enough for chunk sizing when no encoding file is available.
type Words struct{}

func NewWords() *Words { return &Words{} }

func (w *Words) Name() string { return "words" }

func (w *Words) Encode(text string) []string {
	var out []string
	rest := text
	for {
		loc := wordRe.FindStringIndex(rest)
		if loc == nil {
			if rest != "" && strings.TrimSpace(rest) == "" && len(out) > 0 {
				out[len(out)-1] += rest
			}
			break
		}
		// fold leading whitespace into the token so joining tokens
		// reproduces the original text exactly
		out = append(out, rest[:loc[1]])
		rest = rest[loc[1]:]
	}
	return out
}

func (w *Words) Count(text string) int {
	return len(wordRe.FindAllString(text, -1))
}
