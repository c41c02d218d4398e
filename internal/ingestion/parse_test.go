package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     string
	}{
		{name: "txt extension", filename: "posting.txt", content: "<html>", want: MimeTypePlain},
		{name: "markdown extension", filename: "POSTING.MD", want: MimeTypeMarkdown},
		{name: "htm extension", filename: "posting.htm", want: MimeTypeHTML},
		{name: "sniffed html", filename: "posting", content: "<!DOCTYPE html><html><body>x</body></html>", want: MimeTypeHTML},
		{name: "sniffed text", filename: "", content: "Acme Corp has 500 employees.", want: MimeTypePlain},
		{name: "sniffed pdf", filename: "posting.bin", content: "%PDF-1.7", want: "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMimeType(tt.filename, []byte(tt.content)))
		})
	}
}

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		mimeType string
		want     string
	}{
		{name: "plain", content: "Acme   Corp\r\nhas 500 employees.", mimeType: "text/plain", want: "Acme Corp\nhas 500 employees."},
		{name: "plain with charset", content: "Acme Corp", mimeType: "text/plain; charset=utf-8", want: "Acme Corp"},
		{name: "markdown", content: "# Acme\n\n\n\n- Go", mimeType: "text/markdown", want: "# Acme\n\n- Go"},
		{name: "html", content: "<p>Acme Corp</p><p>Globex</p>", mimeType: "TEXT/HTML", want: "Acme Corp\n\nGlobex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDocument([]byte(tt.content), tt.mimeType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDocument_Unsupported(t *testing.T) {
	_, err := ParseDocument([]byte("%PDF-1.7"), "application/pdf")

	var unsupported *UnsupportedMimeTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "application/pdf", unsupported.MimeType)
	assert.Contains(t, err.Error(), MimeTypeHTML)
}

func TestParseDocument_InvalidUTF8(t *testing.T) {
	_, err := ParseDocument([]byte{0xff, 0xfe, 'a'}, MimeTypePlain)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	doc, err := Parse(readFixture(t, "sample_job_greenhouse.html"), "", "https://boards.greenhouse.io/acme/jobs/1", 0)
	require.NoError(t, err)

	assert.Contains(t, doc.Text, "Acme Corp has 500 employees.")
	assert.Equal(t, MimeTypeHTML, doc.Metadata.MimeType)
	assert.Equal(t, string(PlatformGreenhouse), doc.Metadata.Platform)
	assert.Equal(t, computeHash(doc.Text), doc.Metadata.Hash)
	assert.Greater(t, doc.Metadata.Bytes, len(doc.Text))
}

func TestParse_TooLarge(t *testing.T) {
	_, err := Parse([]byte("0123456789"), MimeTypePlain, "", 5)

	var tooLarge *FileTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.EqualValues(t, 10, tooLarge.Size)
	assert.EqualValues(t, 5, tooLarge.Limit)
}

func TestLoadFile(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "sample_job_markdown.md"), MaxBytes(DefaultMaxFileSizeMB))
	require.NoError(t, err)

	assert.Equal(t, MimeTypeMarkdown, doc.Metadata.MimeType)
	assert.Contains(t, doc.Text, "Salary: $150,000 - $190,000")
	assert.Empty(t, doc.Metadata.Platform)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile("/nonexistent/posting.txt", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")

	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))
	_, err = LoadFile(path, 1024)
	var tooLarge *FileTooLargeError
	assert.ErrorAs(t, err, &tooLarge)
}

func TestMaxBytes(t *testing.T) {
	assert.EqualValues(t, 10<<20, MaxBytes(10))
	assert.Zero(t, MaxBytes(0))
	assert.Zero(t, MaxBytes(-1))
}
