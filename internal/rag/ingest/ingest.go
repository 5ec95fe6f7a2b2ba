package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/google/uuid"
)

var logger = logger_i.NewLogger("Document Ingestion")

// per page extraction budget, a broken content stream can spin forever
const pageExtractTimeout = 10 * time.Second

func getDocType(docPath string) commonModels.DocType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return commonModels.PDF
	case ".docx":
		return commonModels.DOCX
	case ".odt":
		return commonModels.ODT
	case ".rtf":
		return commonModels.RTF
	case ".txt", ".md":
		return commonModels.TXT
	default:
		return commonModels.ERR
	}
}

// Load reads the document at path and extracts its pages in source order.
// Pages that fail to extract are skipped; a document with no text at all is an error.
func Load(ctx context.Context, path string) (commonModels.Document, []commonModels.PageUnit, error) {
	log := logger.With("path", path)

	docType := getDocType(path)
	if docType == commonModels.ERR {
		return commonModels.Document{}, nil, ragErrors.Ingest("load", fmt.Errorf("unsupported document type %q", filepath.Ext(path)))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ragErrors.ErrDocumentNotFound, path)
		}
		return commonModels.Document{}, nil, ragErrors.Ingest("read document", err)
	}

	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])
	doc := commonModels.Document{
		Id:          uuid.NewSHA1(uuid.NameSpaceURL, []byte("docqa:"+checksum)).String(),
		Name:        filepath.Base(path),
		Path:        path,
		Checksum:    checksum,
		LoadedAt:    time.Now().UTC(),
		ContentType: docType,
		Content:     content,
	}

	log.Debug("extracting text", "type", docType, "bytes", len(content))
	pages, err := extractText(ctx, doc)
	if err != nil {
		return doc, nil, ragErrors.Ingest("extract text", err)
	}

	nonEmpty := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return doc, nil, ragErrors.Ingest("extract text", fmt.Errorf("%s has no extractable text", doc.Name))
	}

	log.Info("document loaded", "pages", len(pages), "nonEmptyPages", nonEmpty)
	return doc, pages, nil
}

func extractText(ctx context.Context, doc commonModels.Document) ([]commonModels.PageUnit, error) {
	switch doc.ContentType {
	case commonModels.PDF:
		return extractPDF(ctx, doc.Content)
	case commonModels.DOCX, commonModels.ODT, commonModels.RTF, commonModels.TXT:
		return extractDocxTxtRtf(doc.Path)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", doc.ContentType)
	}
}
