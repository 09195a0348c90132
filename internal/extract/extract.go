package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"docqa/internal/models"
)

// Pages with less text than this are almost always scanned images or cover
// pages; indexing them only produces junk chunks. PDF only.
const minPDFPageChars = 50

// File extracts a document from the given path. The page structure depends
// on the format: PDFs keep their real pages, spreadsheets map one sheet to
// one page, presentations one slide to one page, flat formats come back as
// a single page.
func File(path string) (models.Document, error) {
	var (
		pages []models.PageText
		err   error
	)
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		pages, err = extractPDF(path)
	case ".docx":
		pages, err = extractDOCX(path)
	case ".pptx":
		pages, err = extractPPTX(path)
	case ".xlsx":
		pages, err = extractXLSX(path)
	case ".ods":
		pages, err = extractODS(path)
	case ".md", ".markdown":
		pages, err = extractMarkdown(path)
	case ".txt":
		pages, err = extractText(path)
	default:
		err = fmt.Errorf("unsupported file format: %s", ext)
	}
	filename := filepath.Base(path)
	if err != nil {
		return models.Document{}, &models.ExtractionError{Filename: filename, Err: err}
	}
	if len(pages) == 0 {
		return models.Document{}, &models.ExtractionError{
			Filename: filename,
			Err:      fmt.Errorf("no text content found (scanned or empty file?)"),
		}
	}

	doc := models.Document{
		ID:       documentID(filename, pages),
		Filename: filename,
		Pages:    pages,
	}
	log.Debug().Str("file", filename).Int("pages", len(pages)).Str("doc_id", doc.ID).Msg("extracted document")
	return doc, nil
}

func extractPDF(path string) ([]models.PageText, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var pages []models.PageText
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Str("file", path).Int("page", i).Err(err).Msg("skipping unreadable page")
			continue
		}
		if len(strings.TrimSpace(text)) < minPDFPageChars {
			continue
		}
		pages = append(pages, models.PageText{PageNumber: i, Text: cleanText(text)})
	}
	return pages, nil
}

func extractDOCX(path string) ([]models.PageText, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := cleanText(r.Editable().GetContent())
	if content == "" {
		return nil, nil
	}
	// DOCX carries no page information
	return []models.PageText{{PageNumber: 1, Text: content}}, nil
}

func extractXLSX(path string) ([]models.PageText, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, err
	}

	var pages []models.PageText
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString("Sheet: " + sheet.Name + "\n")
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		body := cleanText(text.String())
		if body == "" {
			continue
		}
		pages = append(pages, models.PageText{PageNumber: sheetNum + 1, Text: body})
	}
	return pages, nil
}

func extractODS(path string) ([]models.PageText, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.PageText
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString("Sheet: " + sheetName + "\n")
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		body := cleanText(text.String())
		if body == "" {
			continue
		}
		pages = append(pages, models.PageText{PageNumber: sheetNum + 1, Text: body})
	}
	return pages, nil
}

func extractText(path string) ([]models.PageText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := cleanText(string(data))
	if content == "" {
		return nil, nil
	}
	return []models.PageText{{PageNumber: 1, Text: content}}, nil
}

var multiBlank = regexp.MustCompile(`\n{3,}`)

// cleanText strips the usual extraction artifacts: stacked blank lines,
// per-line layout padding and soft hyphens that break words mid-way.
func cleanText(text string) string {
	text = multiBlank.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = strings.ReplaceAll(text, "­", "")
	return strings.TrimSpace(text)
}

// documentID hashes filename plus page content, so the same file ingested
// twice (or from another directory) resolves to the same document and
// re-indexing stays an upsert.
func documentID(filename string, pages []models.PageText) string {
	h := sha256.New()
	h.Write([]byte(filename))
	for _, p := range pages {
		fmt.Fprintf(h, "\x00%d\x00%s", p.PageNumber, p.Text)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
