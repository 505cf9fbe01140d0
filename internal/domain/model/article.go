package model

// Platform limits on draft fields, counted in Unicode code points.
const (
	MaxTitleRunes  = 64
	MaxDigestRunes = 120
)

// Article is a local article after loading: HTML body plus the metadata
// extracted from it.
type Article struct {
	Path   string
	Title  string
	Digest string
	HTML   string
}

// ArticleDraft is the payload of a single draft/add article entry.
type ArticleDraft struct {
	Title        string
	Author       string
	Digest       string
	Content      string
	ThumbMediaID string
}

// NewArticleDraft builds a draft, truncating Title and Digest to the platform limits.
func NewArticleDraft(title, author, digest, content, thumbMediaID string) ArticleDraft {
	return ArticleDraft{
		Title:        TruncateRunes(title, MaxTitleRunes),
		Author:       author,
		Digest:       TruncateRunes(digest, MaxDigestRunes),
		Content:      content,
		ThumbMediaID: thumbMediaID,
	}
}

// TruncateRunes cuts s to at most n code points without splitting a multi-byte character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
