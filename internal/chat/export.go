package chat

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/markdown"
)

// Export formats for transcript snapshots.
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

const timestampLayout = "2006-01-02 15:04:05"

// utf8BOM keeps Excel from mangling non-ASCII transcript text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Export writes turns to w in the named format.
func Export(w io.Writer, format, title string, turns []Turn) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, turns)
	case FormatMarkdown, "md":
		return WriteMarkdown(w, title, turns)
	case FormatHTML:
		return WriteHTML(w, title, turns)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// ExportFilename returns the default export filename for a format, e.g.
// history_log_2026-08-25_14-03-05.csv.
func ExportFilename(format string, now time.Time) string {
	ext := format
	switch format {
	case FormatMarkdown, "md":
		ext = "md"
	case FormatHTML:
		ext = "html"
	default:
		ext = "csv"
	}
	return fmt.Sprintf("history_log_%s.%s", now.Format("2006-01-02_15-04-05"), ext)
}

// WriteCSV writes Role,Message,Timestamp rows with a UTF-8 BOM.
func WriteCSV(w io.Writer, turns []Turn) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Role", "Message", "Timestamp"}); err != nil {
		return err
	}
	for _, t := range turns {
		if err := cw.Write([]string{string(t.Role), t.Text, t.Timestamp.Format(timestampLayout)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMarkdown writes the transcript as a markdown document.
func WriteMarkdown(w io.Writer, title string, turns []Turn) error {
	_, err := io.WriteString(w, transcriptMarkdown(title, turns))
	return err
}

// WriteHTML renders the markdown transcript to a standalone HTML page.
func WriteHTML(w io.Writer, title string, turns []Turn) error {
	body := markdown.Render(transcriptMarkdown(title, turns))
	if _, err := fmt.Fprintf(w, htmlHeader, title); err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	_, err := io.WriteString(w, htmlFooter)
	return err
}

func transcriptMarkdown(title string, turns []Turn) string {
	var b strings.Builder
	if title == "" {
		title = "Conversation"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, t := range turns {
		label := "User"
		if t.Role == ai.RoleModel {
			label = "Model"
		}
		fmt.Fprintf(&b, "## %s — %s\n\n%s\n\n", label, t.Timestamp.Format(timestampLayout), t.Text)
	}
	return b.String()
}

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: .25rem; }
pre { overflow-x: auto; padding: .75rem; border-radius: 4px; }
</style>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`
