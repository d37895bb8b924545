package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePathwayFolder(t *testing.T, root, name string, files ...string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("img"), 0o644))
	}
}

func TestDiscoverDocuments(t *testing.T) {
	root := t.TempDir()
	writePathwayFolder(t, root, "b_pathway", "pg1.png", "pg2.png", "pg3.png", "notes.txt")
	writePathwayFolder(t, root, "a_pathway", "pg1.png", "pg2.png")
	// Only a title slide: nothing left to extract.
	writePathwayFolder(t, root, "title_only", "pg1.png")
	writePathwayFolder(t, root, "empty_folder")
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.pdf"), []byte("pdf"), 0o644))

	docs, err := DiscoverDocuments(root)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "a_pathway", docs[0].Name)
	require.Len(t, docs[0].Pages, 1)
	assert.Equal(t, 2, docs[0].Pages[0].Number)

	assert.Equal(t, "b_pathway", docs[1].Name)
	require.Len(t, docs[1].Pages, 2)
	assert.Equal(t, 2, docs[1].Pages[0].Number)
	assert.Equal(t, 3, docs[1].Pages[1].Number)
}

func TestDiscoverDocumentsNumericPageOrder(t *testing.T) {
	root := t.TempDir()
	writePathwayFolder(t, root, "long_pathway",
		"pg1.png", "pg10.png", "pg2.png", "pg11.png", "pg3.png")

	docs, err := DiscoverDocuments(root)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	var numbers []int
	for _, p := range docs[0].Pages {
		numbers = append(numbers, p.Number)
	}
	assert.Equal(t, []int{2, 3, 10, 11}, numbers)
}

func TestDiscoverDocumentsMissingDir(t *testing.T) {
	_, err := DiscoverDocuments(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestParsePageNumber(t *testing.T) {
	cases := []struct {
		filename string
		number   int
		ok       bool
	}{
		{"pg1.png", 1, true},
		{"pg42.png", 42, true},
		{"PG7.PNG", 7, true},
		{"pg0.png", 0, false},
		{"pg-3.png", 0, false},
		{"page2.png", 0, false},
		{"pg2.jpg", 0, false},
		{"pg.png", 0, false},
	}
	for _, tc := range cases {
		n, ok := parsePageNumber(tc.filename)
		assert.Equal(t, tc.ok, ok, tc.filename)
		if tc.ok {
			assert.Equal(t, tc.number, n, tc.filename)
		}
	}
}

func TestImageMIMEType(t *testing.T) {
	assert.Equal(t, "image/png", imageMIMEType("/x/pg2.png"))
	assert.Equal(t, "image/jpeg", imageMIMEType("/x/pg2.JPG"))
	assert.Equal(t, "image/webp", imageMIMEType("/x/pg2.webp"))
	assert.Equal(t, "image/jpeg", imageMIMEType("/x/pg2.unknown"))
}
