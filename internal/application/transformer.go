package application

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
	"github.com/iniwap/AIWriteX/internal/metrics"
)

const (
	indentStyle         = "text-indent: 2em;"
	minIndentRunes      = 30
	indentAncestorDepth = 5
)

var (
	indentSkipPrefixes = []string{"/", "●", "-", ">", "•", "*", "1.", "2.", "3.", "4.", "5.", "#"}

	indentSkipTags = map[string]bool{
		"li": true, "blockquote": true, "th": true, "td": true, "figcaption": true,
		"pre": true, "code": true, "dt": true, "dd": true, "button": true, "a": true,
	}

	backgroundURL = regexp.MustCompile(`(?i)background(?:-image)?\s*:[^;]*?url\(\s*(?:'|"|&#39;|&#34;|&quot;)?([^'"()]+?)(?:'|"|&#39;|&#34;|&quot;)?\s*\)`)

	// newlineRun is a whitespace run containing a line break.
	newlineRun = regexp.MustCompile(`[ \t\f]*[\r\n][ \t\r\n\f]*`)

	// preserveTags keep their text verbatim.
	preserveTags = map[string]bool{
		"pre": true, "code": true, "textarea": true, "script": true, "style": true,
	}

	blockTags = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
		"dd": true, "details": true, "div": true, "dl": true, "dt": true, "fieldset": true,
		"figcaption": true, "figure": true, "footer": true, "form": true, "h1": true,
		"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "head": true,
		"header": true, "hr": true, "html": true, "li": true, "link": true, "main": true,
		"meta": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true,
		"style": true, "summary": true, "table": true, "tbody": true, "td": true,
		"tfoot": true, "th": true, "thead": true, "title": true, "tr": true, "ul": true,
	}
)

const htmlSpace = " \t\r\n\f"

// imageUploader is the subset of driven.Platform the asset rewrite needs.
type imageUploader interface {
	UploadImage(ctx context.Context, asset model.ImageAsset, tier model.VerificationTier) (model.UploadedMedia, error)
}

// Transformer turns article HTML into a body the platform renders cleanly.
// The stages must run in order: NormalizeStructure, InjectIndent,
// RewriteAssets, Compact.
type Transformer struct {
	resolver driven.AssetResolver
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewTransformer creates a Transformer resolving in-body images with resolver.
func NewTransformer(resolver driven.AssetResolver, rec metrics.Recorder, logger *slog.Logger) *Transformer {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{resolver: resolver, metrics: rec, logger: logger}
}

// RewriteReport lists what happened to each in-body image reference.
type RewriteReport struct {
	// Replaced maps a reference to the number of occurrences substituted.
	Replaced map[string]int
	// Skipped maps a reference to the reason it was left in place.
	Skipped map[string]error
}

// NormalizeStructure retags every <div> as <section>, keeping attributes and
// children. The platform editor strips or restyles divs.
func NormalizeStructure(content string) string {
	return editDocument(content, "normalize structure", func(doc *goquery.Document) {
		doc.Find("div").Each(func(_ int, s *goquery.Selection) {
			n := s.Nodes[0]
			n.Data = "section"
			n.DataAtom = atom.Section
		})
	})
}

// InjectIndent gives body paragraphs a two-character first-line indent.
// Short paragraphs, paragraphs that look like list items or comments, and
// paragraphs inside lists, quotes, tables, code, links, centred or flex
// layouts and decorated cards are left alone.
func InjectIndent(content string) string {
	return editDocument(content, "inject indent", func(doc *goquery.Document) {
		doc.Find("p").Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if utf8.RuneCountInString(text) < minIndentRunes {
				return
			}
			for _, prefix := range indentSkipPrefixes {
				if strings.HasPrefix(text, prefix) {
					return
				}
			}

			n := s.Nodes[0]
			if indentDisqualified(n) {
				return
			}

			style := attr(n, "style")
			if strings.Contains(strings.ToLower(style), "text-indent") {
				return
			}
			setAttr(n, "style", strings.TrimSpace(indentStyle+" "+style))
		})
	})
}

// indentDisqualified checks n and its nearest element ancestors.
func indentDisqualified(n *xhtml.Node) bool {
	for depth, cur := 0, n; depth <= indentAncestorDepth && cur != nil; depth, cur = depth+1, cur.Parent {
		if cur.Type != xhtml.ElementNode {
			break
		}
		if indentSkipTags[cur.Data] {
			return true
		}

		style := strings.ToLower(attr(cur, "style"))
		if style == "" {
			continue
		}
		if strings.Contains(style, "text-align") &&
			(strings.Contains(style, "center") || strings.Contains(style, "right")) {
			return true
		}
		if strings.Contains(style, "display") &&
			(strings.Contains(style, "flex") || strings.Contains(style, "grid") || strings.Contains(style, "inline-block")) {
			return true
		}
		if strings.Contains(style, "background") || strings.Contains(style, "border") || strings.Contains(style, "box-shadow") {
			return true
		}
	}
	return false
}

// ExtractImageRefs returns the distinct image references in content in
// document order: <img> src, srcset candidates, data-src and data-image, and
// CSS background urls in style attributes and <style> blocks. Inline data:
// URIs are ignored.
func ExtractImageRefs(content string) []string {
	root, _, err := parseHTML(content)
	if err != nil {
		return nil
	}
	doc := goquery.NewDocumentFromNode(root)

	seen := make(map[string]bool)
	var refs []string
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || seen[ref] || strings.HasPrefix(strings.ToLower(ref), "data:") {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	addCSS := func(css string) {
		for _, m := range backgroundURL.FindAllStringSubmatch(css, -1) {
			add(html.UnescapeString(m[1]))
		}
	}

	doc.Find("img, [style], style").Each(func(_ int, s *goquery.Selection) {
		n := s.Nodes[0]
		if n.Data == "img" {
			add(attr(n, "src"))
			for _, candidate := range strings.Split(attr(n, "srcset"), ",") {
				if fields := strings.Fields(candidate); len(fields) > 0 {
					add(fields[0])
				}
			}
			add(attr(n, "data-src"))
			add(attr(n, "data-image"))
		}
		addCSS(attr(n, "style"))
		if n.Data == "style" {
			addCSS(s.Text())
		}
	})
	return refs
}

// RewriteAssets uploads every in-body image and substitutes each literal
// occurrence of its reference with the hosted URL. A reference that fails to
// resolve or upload is logged and left as it is, including where a shorter
// reference that did upload is a prefix of it.
//
// Body images always go through the URL-returning material upload, whatever
// the account tier, since permanent media carries no public URL.
func (t *Transformer) RewriteAssets(ctx context.Context, content string, up imageUploader) (string, RewriteReport) {
	report := RewriteReport{Replaced: map[string]int{}, Skipped: map[string]error{}}

	refs := ExtractImageRefs(content)
	if len(refs) == 0 {
		return content, report
	}
	sort.SliceStable(refs, func(i, j int) bool { return len(refs[i]) > len(refs[j]) })

	hosted := make(map[string]string, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			report.Skipped[ref] = err
			continue
		}

		u, err := t.upload(ctx, ref, up)
		if err != nil {
			t.logger.Warn("in-body image skipped", "ref", ref, "error", err)
			t.metrics.IncAssetRewrite(false)
			report.Skipped[ref] = err
			continue
		}
		t.metrics.IncAssetRewrite(true)
		hosted[ref] = html.EscapeString(u)
		report.Replaced[ref] = 0
	}
	if len(hosted) == 0 {
		return content, report
	}

	// One pass over every form of every reference, skipped ones included, so
	// an occurrence is always claimed by the longest reference spelled there.
	formRef := make(map[string]string)
	var forms []string
	for _, ref := range refs {
		for _, form := range literalForms(ref) {
			if _, ok := formRef[form]; !ok {
				formRef[form] = ref
				forms = append(forms, form)
			}
		}
	}
	sort.SliceStable(forms, func(i, j int) bool { return len(forms[i]) > len(forms[j]) })
	quoted := make([]string, len(forms))
	for i, form := range forms {
		quoted[i] = regexp.QuoteMeta(form)
	}
	pattern := regexp.MustCompile(strings.Join(quoted, "|"))

	content = pattern.ReplaceAllStringFunc(content, func(match string) string {
		ref := formRef[match]
		replacement, ok := hosted[ref]
		if !ok {
			return match
		}
		report.Replaced[ref]++
		return replacement
	})
	return content, report
}

func (t *Transformer) upload(ctx context.Context, ref string, up imageUploader) (string, error) {
	asset, err := t.resolver.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	media, err := up.UploadImage(ctx, asset, model.TierUnverified)
	if err != nil {
		return "", err
	}
	if media.URL == "" {
		return "", fmt.Errorf("upload %q: %w: url", ref, model.ErrMissingField)
	}
	return media.URL, nil
}

// literalForms is how ref may appear in the body: as rendered attribute text
// (entity-escaped) and verbatim.
func literalForms(ref string) []string {
	escaped := html.EscapeString(ref)
	if escaped == ref {
		return []string{ref}
	}
	return []string{escaped, ref}
}

// Compact strips comments and the whitespace source formatting leaves around
// block elements. Whitespace inside text is kept except that a run spanning a
// line break becomes one space. Text inside <pre> and the other preserveTags
// elements is copied untouched.
func Compact(content string) string {
	if content == "" {
		return content
	}

	toks, err := tokenize(content)
	if err != nil {
		slog.Warn("html tokenize failed, keeping original markup", "stage", "compact", "error", err)
		return content
	}

	var b strings.Builder
	b.Grow(len(content))
	preserve := 0
	for i, tok := range toks {
		switch tok.typ {
		case xhtml.StartTagToken:
			if preserveTags[tok.name] {
				preserve++
			}
		case xhtml.EndTagToken:
			if preserveTags[tok.name] && preserve > 0 {
				preserve--
			}
		case xhtml.TextToken:
			if preserve == 0 {
				b.WriteString(compactText(tok.raw, breaksAt(toks, i-1), breaksAt(toks, i+1)))
				continue
			}
		}
		b.WriteString(tok.raw)
	}
	return b.String()
}

type htmlToken struct {
	typ  xhtml.TokenType
	raw  string
	name string
}

// tokenize splits content into raw tokens with comments dropped and the text
// either side of a comment joined.
func tokenize(content string) ([]htmlToken, error) {
	z := xhtml.NewTokenizer(strings.NewReader(content))
	var toks []htmlToken
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, err
			}
			return toks, nil
		case xhtml.CommentToken:
			continue
		}

		// Raw before TagName: TagName lowercases the buffer in place.
		tok := htmlToken{typ: tt, raw: string(z.Raw())}
		switch tt {
		case xhtml.StartTagToken, xhtml.EndTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tok.name = string(name)
		case xhtml.TextToken:
			if n := len(toks); n > 0 && toks[n-1].typ == xhtml.TextToken {
				toks[n-1].raw += tok.raw
				continue
			}
		}
		toks = append(toks, tok)
	}
}

// breaksAt reports whether a line box boundary sits at token i. Positions
// past either end of the document count.
func breaksAt(toks []htmlToken, i int) bool {
	if i < 0 || i >= len(toks) {
		return true
	}
	switch toks[i].typ {
	case xhtml.DoctypeToken:
		return true
	case xhtml.StartTagToken, xhtml.EndTagToken, xhtml.SelfClosingTagToken:
		return blockTags[toks[i].name]
	}
	return false
}

// compactText trims the formatting whitespace of one text run. before and
// after say whether a line box boundary sits on that side.
func compactText(s string, before, after bool) string {
	if strings.Trim(s, htmlSpace) == "" {
		switch {
		case before || after:
			return ""
		case strings.ContainsAny(s, "\r\n"):
			return " "
		}
		return s
	}

	rest := strings.TrimLeft(s, htmlSpace)
	lead := s[:len(s)-len(rest)]
	core := strings.TrimRight(rest, htmlSpace)
	trail := rest[len(core):]

	return edgeSpace(lead, before) + newlineRun.ReplaceAllString(core, " ") + edgeSpace(trail, after)
}

// edgeSpace keeps ws unless it spans a line break, which collapses to one
// space or, next to a boundary, to nothing.
func edgeSpace(ws string, boundary bool) string {
	if !strings.ContainsAny(ws, "\r\n") {
		return ws
	}
	if boundary {
		return ""
	}
	return " "
}

// editDocument parses content, applies edit and renders it back. Parse or
// render failures leave content unchanged.
func editDocument(content, stage string, edit func(doc *goquery.Document)) string {
	if strings.TrimSpace(content) == "" {
		return content
	}

	root, isFragment, err := parseHTML(content)
	if err != nil {
		slog.Warn("html parse failed, keeping original markup", "stage", stage, "error", err)
		return content
	}

	edit(goquery.NewDocumentFromNode(root))

	out, err := renderHTML(root, isFragment)
	if err != nil {
		slog.Warn("html render failed, keeping original markup", "stage", stage, "error", err)
		return content
	}
	return out
}
