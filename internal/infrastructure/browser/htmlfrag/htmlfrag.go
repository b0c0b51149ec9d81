// Package htmlfrag strips page HTML down to what a model needs to locate
// elements and splits the result into size-bounded fragments.
package htmlfrag

import (
	"errors"
	"strings"

	"commerce-agent/internal/domain/entity"

	"golang.org/x/net/html"
)

var ErrNoBody = errors.New("document has no body")

type Config struct {
	TagsToRemove  []string
	AttrsToRemove []string
	// KeepAttrs survive the data-*/aria-*/on* prefix filter.
	KeepAttrs       []string
	MaxFragmentSize int
	MaxFragments    int
}

func DefaultConfig() Config {
	return Config{
		TagsToRemove: []string{
			"script", "style", "noscript", "svg", "iframe",
			"link", "meta", "head", "title", "template",
		},
		AttrsToRemove: []string{
			"style", "srcset", "sizes", "loading", "decoding", "fetchpriority", "tabindex",
		},
		KeepAttrs:       []string{"aria-label", "data-testid", "data-test", "data-automation-id"},
		MaxFragmentSize: 24_000,
		MaxFragments:    12,
	}
}

// Clean parses rawHTML and returns its cleaned <body> node.
func Clean(rawHTML string, cfg Config) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	body := findBody(doc)
	if body == nil {
		return nil, ErrNoBody
	}
	cleanNode(body, cfg)
	return body, nil
}

// CleanString is Clean rendered back to markup.
func CleanString(rawHTML string, cfg Config) (string, error) {
	body, err := Clean(rawHTML, cfg)
	if err != nil {
		return "", err
	}
	return render(body), nil
}

// Split cleans rawHTML and cuts the body into fragments no larger than
// cfg.MaxFragmentSize. Elements too large for one fragment are split along
// their children; leaf content that still does not fit is truncated.
func Split(frameID int, rawHTML string, cfg Config) ([]entity.HTMLFragment, error) {
	body, err := Clean(rawHTML, cfg)
	if err != nil {
		return nil, err
	}

	s := &splitter{max: cfg.MaxFragmentSize}
	if s.max <= 0 {
		s.max = DefaultConfig().MaxFragmentSize
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		s.add(c)
	}
	s.flush()

	if cfg.MaxFragments > 0 && len(s.parts) > cfg.MaxFragments {
		s.parts = s.parts[:cfg.MaxFragments]
	}

	out := make([]entity.HTMLFragment, len(s.parts))
	for i, p := range s.parts {
		out[i] = entity.HTMLFragment{
			FrameID: frameID,
			Index:   i,
			Content: p.content,
			Text:    p.text,
		}
	}
	return out, nil
}

type part struct {
	content string
	text    string
}

type splitter struct {
	max   int
	parts []part
	html  strings.Builder
	text  strings.Builder
}

func (s *splitter) add(n *html.Node) {
	rendered := render(n)
	if len(rendered) > s.max && hasElementChild(n) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			s.add(c)
		}
		return
	}
	if len(rendered) > s.max {
		rendered = rendered[:s.max]
	}
	if s.html.Len()+len(rendered) > s.max {
		s.flush()
	}
	s.html.WriteString(rendered)

	if t := Text(n); t != "" {
		if s.text.Len() > 0 {
			s.text.WriteByte(' ')
		}
		s.text.WriteString(t)
	}
}

func (s *splitter) flush() {
	if strings.TrimSpace(s.html.String()) == "" {
		s.html.Reset()
		s.text.Reset()
		return
	}
	s.parts = append(s.parts, part{content: s.html.String(), text: s.text.String()})
	s.html.Reset()
	s.text.Reset()
}

// Text returns the visible text under n with whitespace collapsed.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func cleanNode(n *html.Node, cfg Config) {
	switch n.Type {
	case html.CommentNode:
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" && n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	case html.ElementNode:
	default:
		return
	}

	if isOneOf(n.Data, cfg.TagsToRemove...) {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return
	}

	n.Attr = filterAttributes(n.Attr, cfg)

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		cleanNode(c, cfg)
		c = next
	}
}

func filterAttributes(attrs []html.Attribute, cfg Config) []html.Attribute {
	var kept []html.Attribute
	for _, attr := range attrs {
		if shouldRemoveAttr(attr.Key, cfg) {
			continue
		}
		kept = append(kept, attr)
	}
	return kept
}

func shouldRemoveAttr(key string, cfg Config) bool {
	if isOneOf(key, cfg.KeepAttrs...) {
		return false
	}
	if isOneOf(key, cfg.AttrsToRemove...) {
		return true
	}
	return strings.HasPrefix(key, "data-") || strings.HasPrefix(key, "aria-") || strings.HasPrefix(key, "on")
}

func hasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

func render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
