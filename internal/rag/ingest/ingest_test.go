package ingest

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
)

func TestGetDocType(t *testing.T) {
	tests := []struct {
		path     string
		expected commonModels.DocType
	}{
		{"test.pdf", commonModels.PDF},
		{"DOC.DOCX", commonModels.DOCX},
		{"notes.txt", commonModels.TXT},
		{"letter.rtf", commonModels.RTF},
		{"sheet.odt", commonModels.ODT},
		{"image.png", commonModels.ERR},
		{"noext", commonModels.ERR},
	}

	for _, tt := range tests {
		if got := getDocType(tt.path); got != tt.expected {
			t.Errorf("getDocType(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func testDoc() commonModels.Document {
	return commonModels.Document{Id: "doc-1", Name: "abap.pdf", Checksum: "abc123"}
}

func fixed(size, overlap int) SplitOptions {
	return SplitOptions{Strategy: config.StrategyFixed, ChunkSize: size, Overlap: overlap, EmbeddingModel: "test-model"}
}

// rebuild joins the chunks of one page, dropping the declared overlap from each successor
func rebuild(chunks []commonModels.DocChunk, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c.Chunk)
		if i > 0 {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func randomText(r *rand.Rand, n int) string {
	alphabet := []rune("abcdefghij klmnop\nqrstuvwxyz ÄÖÜß日本語.")
	out := make([]rune, n)
	for i := range out {
		out[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(out)
}

func TestSplitFixed_LosslessAndExactOverlap(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	params := []struct{ size, overlap int }{
		{1000, 200}, {10, 0}, {10, 9}, {7, 3}, {1, 0}, {50, 25},
	}

	for _, p := range params {
		for _, length := range []int{1, 9, 10, 11, 99, 1000, 2500} {
			text := randomText(r, length)
			if strings.TrimSpace(text) == "" {
				continue
			}
			page := commonModels.PageUnit{PageNum: 1, Text: text}
			chunks, err := Split(testDoc(), []commonModels.PageUnit{page}, fixed(p.size, p.overlap))
			if err != nil {
				t.Fatalf("Split(%d,%d): %v", p.size, p.overlap, err)
			}

			if got := rebuild(chunks, p.overlap); got != text {
				t.Fatalf("size=%d overlap=%d len=%d: reconstruction mismatch", p.size, p.overlap, length)
			}

			for i, c := range chunks {
				if n := utf8.RuneCountInString(c.Chunk); n > p.size {
					t.Errorf("chunk %d has %d runes, limit %d", i, n, p.size)
				}
				if i == 0 {
					continue
				}
				prev := []rune(chunks[i-1].Chunk)
				cur := []rune(c.Chunk)
				if string(prev[len(prev)-p.overlap:]) != string(cur[:p.overlap]) {
					t.Errorf("size=%d overlap=%d: chunks %d and %d do not share exactly %d runes", p.size, p.overlap, i-1, i, p.overlap)
				}
				if c.Offset != chunks[i-1].Offset+p.size-p.overlap {
					t.Errorf("unexpected offset %d after %d", c.Offset, chunks[i-1].Offset)
				}
			}
		}
	}
}

func TestSplit_EdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		pages []commonModels.PageUnit
		want  int
	}{
		{"short page yields one chunk", []commonModels.PageUnit{{PageNum: 1, Text: "Page one content."}}, 1},
		{"exactly chunk size", []commonModels.PageUnit{{PageNum: 1, Text: strings.Repeat("x", 20)}}, 1},
		{"empty page yields nothing", []commonModels.PageUnit{{PageNum: 1, Text: ""}}, 0},
		{"whitespace page yields nothing", []commonModels.PageUnit{{PageNum: 1, Text: " \n\t "}}, 0},
		{"one per short page", []commonModels.PageUnit{{PageNum: 1, Text: "a"}, {PageNum: 2, Text: ""}, {PageNum: 3, Text: "c"}}, 2},
		// step 15 over 50 runes: [0,20) [15,35) [30,50)
		{"window count", []commonModels.PageUnit{{PageNum: 1, Text: strings.Repeat("y", 50)}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(testDoc(), tt.pages, fixed(20, 5))
			if err != nil {
				t.Fatalf("Split failed: %v", err)
			}
			if len(chunks) != tt.want {
				t.Errorf("got %d chunks, want %d", len(chunks), tt.want)
			}
		})
	}
}

func TestSplit_Metadata(t *testing.T) {
	pages := []commonModels.PageUnit{
		{PageNum: 1, Text: strings.Repeat("a", 30)},
		{PageNum: 2, Text: "second page"},
	}
	chunks, err := Split(testDoc(), pages, fixed(20, 5))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	seen := map[string]bool{}
	for i, c := range chunks {
		if c.GlobalOrder != i {
			t.Errorf("chunk %d has global order %d", i, c.GlobalOrder)
		}
		if c.DocId != "doc-1" || c.DocName != "abap.pdf" || c.EmbeddingModel != "test-model" {
			t.Errorf("metadata mismatch in chunk %d: %+v", i, c)
		}
		if seen[c.ChunkId] {
			t.Errorf("duplicate chunk id %s", c.ChunkId)
		}
		seen[c.ChunkId] = true
	}
	if chunks[2].PageNum != 2 || chunks[2].ChunkPageOrder != 0 {
		t.Errorf("page metadata wrong: %+v", chunks[2])
	}
	if chunks[1].ChunkPageOrder != 1 {
		t.Errorf("expected page order 1, got %d", chunks[1].ChunkPageOrder)
	}
}

func TestSplit_DeterministicIds(t *testing.T) {
	pages := []commonModels.PageUnit{{PageNum: 1, Text: strings.Repeat("determinism ", 20)}}
	first, err := Split(testDoc(), pages, fixed(40, 10))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Split(testDoc(), pages, fixed(40, 10))
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i].ChunkId != second[i].ChunkId {
			t.Fatalf("chunk %d id changed between runs", i)
		}
	}

	other := testDoc()
	other.Checksum = "different"
	third, err := Split(other, pages, fixed(40, 10))
	if err != nil {
		t.Fatal(err)
	}
	if third[0].ChunkId == first[0].ChunkId {
		t.Error("different documents must not share chunk ids")
	}
}

func TestSplit_InvalidOptions(t *testing.T) {
	pages := []commonModels.PageUnit{{PageNum: 1, Text: "text"}}
	for _, opts := range []SplitOptions{
		fixed(0, 0),
		fixed(-5, 0),
		fixed(10, -1),
		fixed(10, 10),
		{Strategy: "semantic", ChunkSize: 10, Overlap: 1},
	} {
		_, err := Split(testDoc(), pages, opts)
		if !ragErrors.IsConfig(err) {
			t.Errorf("opts %+v: expected config error, got %v", opts, err)
		}
	}
}

func TestSplitRecursive(t *testing.T) {
	text := "First paragraph about purchase orders.\n\nSecond paragraph. It mentions ME21N twice: ME21N.\nA new line here.\n\nThird paragraph is short."
	opts := SplitOptions{Strategy: config.StrategyRecursive, ChunkSize: 40, Overlap: 10}

	chunks, err := Split(testDoc(), []commonModels.PageUnit{{PageNum: 4, Text: text}}, opts)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	var joined strings.Builder
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c.Chunk); n > opts.ChunkSize {
			t.Errorf("chunk exceeds limit: %d runes %q", n, c.Chunk)
		}
		if c.PageNum != 4 {
			t.Errorf("wrong page %d", c.PageNum)
		}
		if c.Offset >= 0 && !strings.HasPrefix(string([]rune(text)[c.Offset:]), c.Chunk) {
			t.Errorf("offset %d does not point at chunk %q", c.Offset, c.Chunk)
		}
		joined.WriteString(c.Chunk)
	}
	if !strings.Contains(joined.String(), "ME21N") {
		t.Error("recursive split lost content")
	}
}

func TestLoad_TextDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("ABAP notes\nSE38 opens the ABAP editor."), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, pages, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Name != "notes.txt" || doc.ContentType != commonModels.TXT || doc.Checksum == "" {
		t.Errorf("unexpected document %+v", doc)
	}
	if len(pages) != 1 || pages[0].PageNum != 1 || !strings.Contains(pages[0].Text, "SE38") {
		t.Errorf("unexpected pages %+v", pages)
	}

	again, _, err := Load(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Id != doc.Id {
		t.Error("document id must be stable for identical content")
	}
}

func TestLoad_PDFPagesInOrder(t *testing.T) {
	doc, pages, err := Load(context.Background(), filepath.Join("testdata", "notes.pdf"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Name != "notes.pdf" || doc.ContentType != commonModels.PDF {
		t.Errorf("unexpected document %+v", doc)
	}

	want := []string{"Introduction to SAP MM.", "purchase order is ME21N.", "ABAP uses SE38."}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d: %+v", len(want), len(pages), pages)
	}
	for i, page := range pages {
		if page.PageNum != i+1 {
			t.Errorf("page %d numbered %d", i+1, page.PageNum)
		}
		if !strings.Contains(page.Text, want[i]) {
			t.Errorf("page %d text %q does not contain %q", i+1, page.Text, want[i])
		}
	}
}

func TestLoad_Failures(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("   \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	corrupt := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(corrupt, []byte("definitely not a pdf"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.pdf")},
		{"unsupported", filepath.Join(dir, "image.png")},
		{"no text", empty},
		{"corrupt pdf", corrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(context.Background(), tt.path)
			if !ragErrors.IsIngest(err) {
				t.Fatalf("expected ingest error, got %v", err)
			}
		})
	}

	_, _, err := Load(context.Background(), filepath.Join(dir, "missing.pdf"))
	if !errors.Is(err, ragErrors.ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}
