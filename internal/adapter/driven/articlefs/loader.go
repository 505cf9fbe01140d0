// Package articlefs loads local article files (Markdown, plain text, HTML)
// and converts them to publishable HTML.
package articlefs

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/unicode/norm"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

const (
	textDigestRunes = 100
	htmlDigestRunes = 64
	noDigest        = "无摘要"
)

// Compile-time interface satisfaction check.
var _ driven.ArticleLoader = (*Loader)(nil)

// Loader implements driven.ArticleLoader.
type Loader struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewLoader creates a Loader. Markdown is rendered with GitHub-flavoured
// extensions and footnotes. Fenced code is highlighted with inline styles
// because the platform strips class-based CSS. Raw HTML embedded in Markdown
// is kept but sanitised, with inline styles and <section> allowed.
func NewLoader() *Loader {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("section", "span")
	policy.AllowAttrs("style", "class").Globally()

	return &Loader{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
					highlighting.WithFormatOptions(chromahtml.WithClasses(false)),
				),
			),
			goldmark.WithRendererOptions(goldhtml.WithUnsafe()),
		),
		sanitizer: policy,
	}
}

// Load reads path and converts it according to its extension.
func (l *Loader) Load(path string) (model.Article, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Article{}, fmt.Errorf("read article %q: %w", path, err)
	}
	content := string(raw)

	var a model.Article
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		a, err = l.loadMarkdown(content)
	case ".txt":
		a = loadText(content)
	default:
		a, err = loadHTML(content)
	}
	if err != nil {
		return model.Article{}, fmt.Errorf("load article %q: %w", path, err)
	}

	a.Path = path
	if a.Title == "" {
		a.Title = TitleFromFileName(path)
	}
	if a.Digest == "" {
		a.Digest = noDigest
	}
	// Draft limits count code points, so decomposed accents would cost double.
	a.Title = norm.NFC.String(a.Title)
	a.Digest = norm.NFC.String(a.Digest)
	return a, nil
}

// TitleFromFileName derives a title from a file name; underscores stand for
// the "|" separator, which is not allowed in file names on every platform.
func TitleFromFileName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(stem, "_", "|")
}

func (l *Loader) loadMarkdown(content string) (model.Article, error) {
	var buf bytes.Buffer
	if err := l.md.Convert([]byte(content), &buf); err != nil {
		return model.Article{}, fmt.Errorf("render markdown: %w", err)
	}

	var title string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(line[2:])
			break
		}
	}

	var body []string
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			body = append(body, line)
		}
		if len(body) >= 3 {
			break
		}
	}

	return model.Article{
		Title:  title,
		Digest: lineDigest(body),
		HTML:   l.sanitizer.Sanitize(buf.String()),
	}, nil
}

func loadText(content string) model.Article {
	lines := strings.Split(strings.TrimSpace(content), "\n")

	var title string
	if len(lines) > 0 {
		title = strings.TrimSpace(lines[0])
	}

	var body []string
	for _, line := range lines[1:] {
		if line = strings.TrimSpace(line); line != "" {
			body = append(body, line)
		}
	}
	if len(body) > 3 {
		body = body[:3]
	}

	return model.Article{
		Title:  title,
		Digest: lineDigest(body),
		HTML:   TextToHTML(content),
	}
}

// TextToHTML wraps each non-empty line in <p> and turns blank lines into <br>.
func TextToHTML(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			out = append(out, "<br>")
			continue
		}
		out = append(out, "<p>"+html.EscapeString(line)+"</p>")
	}
	return strings.Join(out, "\n")
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func loadHTML(content string) (model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return model.Article{}, fmt.Errorf("parse html: %w", err)
	}

	title := collapse(doc.Find("title").First().Text())
	if title == "" {
		title = collapse(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, head").Remove()
	text := collapse(doc.Text())

	digest := text
	if model.TruncateRunes(text, htmlDigestRunes) != text {
		digest = model.TruncateRunes(text, htmlDigestRunes) + "..."
	}

	return model.Article{Title: title, Digest: digest, HTML: content}, nil
}

func lineDigest(lines []string) string {
	if len(lines) == 0 {
		return noDigest
	}
	return model.TruncateRunes(strings.Join(lines, " "), textDigestRunes) + "..."
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
