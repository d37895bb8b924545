package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Lllllllleong/pathwayflow/internal/models"
)

// DiscoverDocuments scans the page-image directory for pathway folders and
// builds the document batch. Each subfolder holds pgN.png page images; page 1
// is the title slide and is excluded from extraction. Folders with fewer than
// two page images are skipped, since there is nothing to extract once the
// title page is removed.
func DiscoverDocuments(inputDir string) ([]models.Document, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read page image directory %s: %w", inputDir, err)
	}

	var docs []models.Document
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		pages, total, err := listPageImages(filepath.Join(inputDir, name))
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", name, err)
		}
		if total < 2 {
			slog.Warn("Not enough pages, skipping document.", "document", name, "pageImages", total)
			continue
		}
		docs = append(docs, models.Document{Name: name, Pages: pages})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// listPageImages returns the content pages of one pathway folder ordered by
// page number, plus the total image count before the title page is excluded.
func listPageImages(dir string) ([]models.PageImage, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read pathway folder %s: %w", dir, err)
	}

	var pages []models.PageImage
	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		number, ok := parsePageNumber(entry.Name())
		if !ok {
			continue
		}
		total++
		if number == 1 {
			continue // title slide
		}
		pages = append(pages, models.PageImage{
			Number: number,
			Path:   filepath.Join(dir, entry.Name()),
		})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, total, nil
}

// parsePageNumber extracts N from a pgN.png filename.
func parsePageNumber(filename string) (int, bool) {
	base := strings.ToLower(filename)
	if !strings.HasPrefix(base, "pg") || !strings.HasSuffix(base, ".png") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(base, "pg"), ".png"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// imageMIMEType maps a page-image path to its media type.
func imageMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
