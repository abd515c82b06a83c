package processor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xhad/wissen/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int // in runes
	ChunkOverlap int // in runes
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}

	return Processor{
		config: config,
	}
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   p.Chunk(doc.Content),
		})
	}

	return processed, nil
}

var (
	// narrow and non-breaking spaces show up between value and unit in data sheets
	unitSpace      = `[\s\x{00A0}\x{2009}\x{202F}]*`
	mgPerLitre     = regexp.MustCompile(`(?i)mg` + unitSpace + `/` + unitSpace + `l\b`)
	newtonPerMM2   = regexp.MustCompile(`N` + unitSpace + `/` + unitSpace + `mm²`)
	hyphenatedWrap = regexp.MustCompile(`-\n\s*`)

	charReplacer = strings.NewReplacer(
		"\u00ad", "", // soft hyphen
		"\u2011", "-", // non-breaking hyphen
		"\u00a0", " ",
	)
)

// Preprocess normalizes units and undoes hyphenation from extracted
// data sheet text. Case and line breaks are kept.
func Preprocess(text string) string {
	if text == "" {
		return text
	}
	text = charReplacer.Replace(text)
	text = mgPerLitre.ReplaceAllString(text, "mg/l")
	text = newtonPerMM2.ReplaceAllString(text, "N/mm²")
	text = hyphenatedWrap.ReplaceAllString(text, "")
	return text
}

func cleanText(text string) string {
	text = Preprocess(text)
	// Replace multiple spaces with single space
	return strings.Join(strings.Fields(text), " ")
}

// Chunk cleans text and splits it into chunks of at most ChunkSize runes.
// Chunks break between sentences where possible and consecutive chunks
// share up to ChunkOverlap runes.
func (p *Processor) Chunk(text string) []string {
	text = cleanText(text)
	if text == "" {
		return nil
	}

	var chunks []string
	current := strings.Builder{}
	size := 0

	for _, piece := range p.pieces(text) {
		n := utf8.RuneCountInString(piece)

		if size > 0 && size+1+n > p.config.ChunkSize {
			chunk := current.String()
			chunks = append(chunks, chunk)
			current.Reset()
			size = 0

			// Start new chunk with overlap
			if tail := overlapTail(chunk, p.config.ChunkOverlap); tail != "" {
				if tn := utf8.RuneCountInString(tail); tn+1+n <= p.config.ChunkSize {
					current.WriteString(tail)
					size = tn
				}
			}
		}

		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(piece)
		size += n
	}

	if size > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// pieces returns the sentences of text, with sentences longer than a
// chunk split at word boundaries.
func (p *Processor) pieces(text string) []string {
	var out []string
	for _, sentence := range splitIntoSentences(text) {
		if utf8.RuneCountInString(sentence) <= p.config.ChunkSize {
			out = append(out, sentence)
			continue
		}
		out = append(out, splitLong(sentence, p.config.ChunkSize)...)
	}
	return out
}

// splitIntoSentences expects whitespace-collapsed text.
func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				sentences = append(sentences, text[start:i+1])
				start = i + 2
			}
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func splitLong(sentence string, limit int) []string {
	var out []string
	current := strings.Builder{}
	size := 0

	for _, word := range strings.Fields(sentence) {
		runes := []rune(word)
		for len(runes) > limit {
			if size > 0 {
				out = append(out, current.String())
				current.Reset()
				size = 0
			}
			out = append(out, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(runes) == 0 {
			continue
		}

		if size > 0 && size+1+len(runes) > limit {
			out = append(out, current.String())
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(string(runes))
		size += len(runes)
	}

	if size > 0 {
		out = append(out, current.String())
	}
	return out
}

// overlapTail returns the last n runes of chunk, starting at a word boundary.
func overlapTail(chunk string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(chunk)
	if len(runes) <= n {
		return ""
	}
	tail := string(runes[len(runes)-n:])
	if i := strings.IndexByte(tail, ' '); i >= 0 {
		tail = tail[i+1:]
	}
	return tail
}
