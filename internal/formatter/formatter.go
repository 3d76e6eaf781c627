// package formatter exports a session journal to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

// Journal is one listening session and its entries in creation order.
type Journal struct {
	SessionID string               `json:"session_id"`
	Persona   string               `json:"persona,omitempty"`
	Catalog   string               `json:"catalog"`
	StartedAt time.Time            `json:"started_at"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
	Entries   []models.LedgerEntry `json:"entries"`
}

// Played returns the entries that reached the transport, in play order.
func (j *Journal) Played() []models.LedgerEntry {
	return lo.Filter(j.Entries, func(e models.LedgerEntry, _ int) bool {
		return e.Status == models.Played || e.Status == models.Playing
	})
}

// Counts returns how many played entries each contributor added.
func (j *Journal) Counts() map[models.Contributor]int {
	return lo.CountValuesBy(j.Played(), func(e models.LedgerEntry) models.Contributor {
		return e.ContributedBy
	})
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// ExportToCSV converts a Journal to CSV format with columns: Position, Title, Artist, Duration, ContributedBy, Status,
// Rationale, ItemID
func ExportToCSV(j *Journal) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Duration", "ContributedBy", "Status", "Rationale", "ItemID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, entry := range j.Entries {
		record := []string{
			strconv.Itoa(i + 1),
			entry.Item.Title,
			entry.Item.Artist,
			strconv.Itoa(int(entry.Item.Duration.Seconds())),
			string(entry.ContributedBy),
			string(entry.Status),
			entry.Rationale,
			entry.Item.ID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Journal to Markdown format with optional cover image
func ExportToMarkdown(j *Journal, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Session %s\n\n", j.StartedAt.Format("2006-01-02 15:04")))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	if j.Persona != "" {
		buf.WriteString(fmt.Sprintf("**Persona**: %s\n\n", j.Persona))
	}

	counts := j.Counts()
	buf.WriteString(fmt.Sprintf("**Catalog**: %s\n", j.Catalog))
	buf.WriteString(fmt.Sprintf("**Played**: %d (%d human, %d automated)\n\n",
		len(j.Played()), counts[models.Human], counts[models.Automated]))

	buf.WriteString("## Tracks\n\n")
	for i, entry := range j.Played() {
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s] _%s_\n",
			i+1, entry.Item.Artist, entry.Item.Title, formatDuration(entry.Item.Duration), entry.ContributedBy))
		if entry.Rationale != "" {
			buf.WriteString(fmt.Sprintf("   > %s\n", entry.Rationale))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Journal to plain text format
func ExportToText(j *Journal) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Session: %s\n", j.SessionID))
	if j.Persona != "" {
		buf.WriteString(fmt.Sprintf("Persona: %s\n", j.Persona))
	}
	buf.WriteString(fmt.Sprintf("Entries: %d\n\n", len(j.Entries)))

	for i, entry := range j.Entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%s, %s)\n", i+1, entry.Item.Artist, entry.Item.Title, entry.ContributedBy, entry.Status))
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToJSON renders the whole journal, entries included.
func ToJSON(j *Journal) ([]byte, error) {
	return shared.MarshalJSON(j, true)
}

// WriteCSVExport writes {base}.csv, defaulting base to the session ID.
func WriteCSVExport(j *Journal, baseFilepath string) (string, error) {
	if baseFilepath == "" {
		baseFilepath = j.SessionID
	}

	csvData, err := ExportToCSV(j)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	file := baseFilepath + ".csv"
	if err := os.WriteFile(file, csvData, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return file, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a journal to Markdown format in a dedicated directory.
//
// Directory name defaults to the session ID. The artwork of the first played entry, if any, is downloaded
// as the cover when withCover is set; a failed download only drops the cover.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(j *Journal, outputDir string, withCover bool) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = j.SessionID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if first, ok := lo.Find(j.Played(), func(e models.LedgerEntry) bool { return e.Item.Artwork != "" }); ok && withCover {
		imageData, err := DownloadImage(first.Item.Artwork)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(j, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a journal to plain text format.
//
// Defaults to {session ID}.txt as the filename.
func WriteTextExport(j *Journal, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.txt", j.SessionID)
	}

	textData, err := ExportToText(j)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
