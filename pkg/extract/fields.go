package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html"
)

// Match は要素の選択条件です。空のフィールドは条件に含めません。
type Match struct {
	Tag      string         // "h1" や "span, div" などの CSS セレクター
	Class    *regexp.Regexp // class 属性に対する部分一致
	Itemprop string         // itemprop 属性の完全一致
}

// Find は root 配下で条件に一致する要素を文書順に返します。
func (m Match) Find(root *goquery.Selection) *goquery.Selection {
	tag := m.Tag
	if tag == "" {
		tag = "*"
	}
	sel := root.Find(tag)
	if m.Class == nil && m.Itemprop == "" {
		return sel
	}
	return sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
		if m.Class != nil {
			class, ok := el.Attr("class")
			if !ok || !m.Class.MatchString(class) {
				return false
			}
		}
		if m.Itemprop != "" && el.AttrOr("itemprop", "") != m.Itemprop {
			return false
		}
		return true
	})
}

// FindByClass は tag のうち class 属性が re に一致する要素を返します。
func FindByClass(root *goquery.Selection, tag string, re *regexp.Regexp) *goquery.Selection {
	return Match{Tag: tag, Class: re}.Find(root)
}

// MetaAttribute は <meta> の content を返します。Key は "property" または "name" です。
type MetaAttribute struct {
	Key   string
	Value string
}

func (m MetaAttribute) Extract(root *goquery.Selection) string {
	var value string
	root.Find("meta").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.AttrOr(m.Key, "") != m.Value {
			return true
		}
		value = strings.TrimSpace(el.AttrOr("content", ""))
		return value == ""
	})
	return value
}

// ElementText は条件に一致する最初の空でない要素のテキストを返します。
// Remove が指定されている場合はその部分文字列を取り除きます。
type ElementText struct {
	Match
	Remove string
}

func (e ElementText) Extract(root *goquery.Selection) string {
	var value string
	e.Find(root).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		value = NodeText(el)
		if e.Remove != "" {
			value = strings.TrimSpace(strings.ReplaceAll(value, e.Remove, ""))
		}
		return value == ""
	})
	return value
}

// StructuredAttribute は属性値を優先し、属性がなければ要素のテキストを返します。
// 例: <time datetime="...">
type StructuredAttribute struct {
	Match
	Attr string
}

func (s StructuredAttribute) Extract(root *goquery.Selection) string {
	var value string
	s.Find(root).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		value = strings.TrimSpace(el.AttrOr(s.Attr, ""))
		if value == "" {
			value = NodeText(el)
		}
		return value == ""
	})
	return value
}

// Chain は優先順に並んだ抽出器です。最初の空でない結果を採用します。
type Chain []FieldExtractor

func (c Chain) Extract(root *goquery.Selection) string {
	for _, fe := range c {
		if v := fe.Extract(root); v != "" {
			return v
		}
	}
	return ""
}

// NodeText は選択範囲のテキストノードを前後の空白を除いて半角スペースで連結します。
func NodeText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return textUtils.NormalizeText(strings.Join(parts, " "))
}
