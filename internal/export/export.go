package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/wrnotes/internal/notebook"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// Format is an export file format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
)

// ParseFormat accepts a format name or a common alias of it.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	case "docx", "word":
		return FormatDOCX, nil
	}
	return "", &weread.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q", s)}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "text/markdown; charset=utf-8"
}

// Document is a rendered export ready to be written or served.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Render writes a book's notes in the given format.
func Render(b *notebook.BookNotes, f Format) (*Document, error) {
	var (
		body []byte
		err  error
	)
	switch f {
	case FormatMarkdown:
		body = Markdown(b)
	case FormatHTML:
		body, err = HTML(b)
	case FormatDOCX:
		body, err = DOCX(b)
	default:
		return nil, &weread.ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q", f)}
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}
	return &Document{
		Filename:    Filename(b.BookTitle, b.BookID, f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}-]+`)
	dashes      = regexp.MustCompile(`-+`)
)

// Filename builds a file name from the book title, falling back to the id.
// Letters of any script survive; everything else collapses into dashes.
func Filename(title, bookID string, f Format) string {
	s := slug(title)
	if s == "" {
		s = slug(bookID)
	}
	if s == "" {
		s = "notes"
	}
	return s + "." + string(f)
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "-")
	s = dashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if r := []rune(s); len(r) > 50 {
		s = strings.Trim(string(r[:50]), "-")
	}
	return s
}
