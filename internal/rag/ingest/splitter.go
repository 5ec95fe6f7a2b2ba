package ingest

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
)

// chunk ids live in their own namespace so they never collide with document ids
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docqa:chunk"))

type SplitOptions struct {
	Strategy       string
	ChunkSize      int
	Overlap        int
	EmbeddingModel string
}

func (o SplitOptions) validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.Overlap < 0 || o.Overlap >= o.ChunkSize {
		return fmt.Errorf("overlap must be within [0, %d), got %d", o.ChunkSize, o.Overlap)
	}
	switch o.Strategy {
	case "", config.StrategyFixed, config.StrategyRecursive:
		return nil
	default:
		return fmt.Errorf("unknown split strategy %q", o.Strategy)
	}
}

type span struct {
	text   string
	offset int //in runes
}

// Split cuts every page into chunks. Chunks never cross page boundaries and
// GlobalOrder follows page order, then offset.
func Split(doc commonModels.Document, pages []commonModels.PageUnit, opts SplitOptions) ([]commonModels.DocChunk, error) {
	if err := opts.validate(); err != nil {
		return nil, ragErrors.Config("split", err)
	}

	var allChunks []commonModels.DocChunk
	for _, page := range pages {
		var spans []span
		var err error
		if opts.Strategy == config.StrategyRecursive {
			spans, err = splitRecursive(page.Text, opts.ChunkSize, opts.Overlap)
		} else {
			spans = splitFixed(page.Text, opts.ChunkSize, opts.Overlap)
		}
		if err != nil {
			return nil, ragErrors.Ingest("split", fmt.Errorf("page %d: %w", page.PageNum, err))
		}

		for i, s := range spans {
			allChunks = append(allChunks, commonModels.DocChunk{
				ChunkId:        chunkID(doc.Checksum, page.PageNum, i, s.offset),
				DocId:          doc.Id,
				DocName:        doc.Name,
				Chunk:          s.text,
				PageNum:        page.PageNum,
				ChunkPageOrder: i,
				GlobalOrder:    len(allChunks),
				Offset:         s.offset,
				EmbeddingModel: opts.EmbeddingModel,
			})
		}
	}
	logger.Debug("split document", "doc", doc.Name, "pages", len(pages), "chunks", len(allChunks))
	return allChunks, nil
}

// splitFixed is a sliding window over runes: each cut steps back overlap runes.
func splitFixed(text string, size, overlap int) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []span{{text: text}}
	}

	step := size - overlap
	var spans []span
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		spans = append(spans, span{text: string(runes[start:end]), offset: start})
		if end == len(runes) {
			break
		}
	}
	return spans
}

func splitRecursive(text string, size, overlap int) ([]span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	spans := make([]span, 0, len(parts))
	byteCursor := 0
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		offset := -1
		if idx := strings.Index(text[byteCursor:], part); idx >= 0 {
			offset = utf8.RuneCountInString(text[:byteCursor+idx])
			byteCursor += idx
		}
		spans = append(spans, span{text: part, offset: offset})
	}
	return spans, nil
}

func chunkID(checksum string, page, order, offset int) string {
	key := fmt.Sprintf("%s:%d:%d:%d", checksum, page, order, offset)
	return uuid.NewHash(sha256.New(), chunkNamespace, []byte(key), 5).String()
}
