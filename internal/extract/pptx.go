package extract

import (
	"archive/zip"
	"io"
	"sort"
	"strconv"
	"strings"

	"docqa/internal/models"
)

// extractPPTX reads slide XML straight out of the zip container, one slide
// per page. Visible slide text lives in <a:t> runs; everything else in the
// markup is layout.
func extractPPTX(path string) ([]models.PageText, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var pages []models.PageText
	for _, file := range r.File {
		slide, ok := slideNumber(file.Name)
		if !ok {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		body := cleanText(slideText(string(data)))
		if body == "" {
			continue
		}
		pages = append(pages, models.PageText{PageNumber: slide, Text: body})
	}
	// Zip entry order is not slide order (slide10 files before slide2).
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	return pages, nil
}

// slideNumber parses N out of ppt/slides/slideN.xml.
func slideNumber(name string) (int, bool) {
	const prefix = "ppt/slides/slide"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".xml") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".xml"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// slideText collects the contents of every <a:t> element in slide markup.
func slideText(xml string) string {
	var b strings.Builder
	parts := strings.Split(xml, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		end := strings.Index(part, "</a:t>")
		if end < 0 {
			continue
		}
		b.WriteString(part[:end])
		b.WriteString(" ")
	}
	return b.String()
}
