package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

var errExtractTimeout = errors.New("page extraction timed out")

func extractPDF(ctx context.Context, content []byte) ([]commonModels.PageUnit, error) {
	f, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		logger.Error("failed opening of pdf file", "error", err)
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []commonModels.PageUnit
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := f.Page(i)
		if page.V.IsNull() {
			logger.Debug("extractPDF", "page value is null", i)
			continue
		}

		text, err := protectExtract(ctx, page, pageExtractTimeout)
		if err != nil {
			// keep going, one bad page should not sink the document
			logger.Warn("Error parsing page content", "page", i, "error", err)
			continue
		}

		pages = append(pages, commonModels.PageUnit{
			PageNum: i,
			Text:    text,
		})
	}
	return pages, nil
}

// extractDocxTxtRtf reads .odt, .docx, .rtf or plaintext files as a single page.
func extractDocxTxtRtf(path string) ([]commonModels.PageUnit, error) {
	text, err := cat.File(path)
	if err != nil {
		logger.Error("Error extracting content from doc", "error", err)
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	//these formats carry no reliable page breaks
	return []commonModels.PageUnit{
		{
			PageNum: 1,
			Text:    text,
		},
	}, nil
}

func protectExtract(ctx context.Context, page pdf.Page, timeout time.Duration) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("malformed page: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", errExtractTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
