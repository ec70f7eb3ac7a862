package types

import (
	"fmt"
	"strings"
)

// Section はサイトのコンテンツ区分（ニュース、ストーリー、コラムなど）を表します。
type Section string

const (
	SectionNews          Section = "news"
	SectionStories       Section = "stories"
	SectionOpinions      Section = "opinions"
	SectionNeuroprofiles Section = "neuroprofiles"
	SectionReviews       Section = "reviews"
	SectionChecklists    Section = "checklists"

	// ContentTypeUnknown はセクションを判定できなかった記事の content_type です。
	ContentTypeUnknown = "unknown"
)

// sectionPaths は各セクションのベースパスです。opinions は /columns/ 配下にあります。
var sectionPaths = map[Section]string{
	SectionNews:          "/news/",
	SectionStories:       "/stories/",
	SectionOpinions:      "/columns/",
	SectionNeuroprofiles: "/neuro/",
	SectionReviews:       "/reviews/",
	SectionChecklists:    "/checklists/",
}

// AllSections は巡回順に並んだ全セクションを返します。
func AllSections() []Section {
	return []Section{
		SectionNews,
		SectionStories,
		SectionOpinions,
		SectionNeuroprofiles,
		SectionReviews,
		SectionChecklists,
	}
}

// Path はセクションのベースパス（先頭と末尾にスラッシュ付き）を返します。
func (s Section) Path() string {
	return sectionPaths[s]
}

func (s Section) String() string {
	return string(s)
}

// ParseSection は文字列をセクションに変換します。
func ParseSection(name string) (Section, error) {
	s := Section(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := sectionPaths[s]; !ok {
		return "", fmt.Errorf("未知のセクションです: %q", name)
	}
	return s, nil
}

// Site は巡回対象サイトの静的な設定です。
type Site struct {
	BaseURL     string // 例: https://rb.ru
	TitleSuffix string // <title> から取り除くサイト名の接尾辞
}

// DefaultSite は rb.ru の設定を返します。
func DefaultSite() Site {
	return Site{
		BaseURL:     "https://rb.ru",
		TitleSuffix: " | RB.RU",
	}
}

// SectionURL はセクションの一覧ページ URL を返します。
func (s Site) SectionURL(section Section) string {
	return strings.TrimRight(s.BaseURL, "/") + section.Path()
}

// PageURL は一覧ページの N ページ目の URL を返します。1 ページ目はパラメータなしです。
func (s Site) PageURL(section Section, page int) string {
	if page <= 1 {
		return s.SectionURL(section)
	}
	return fmt.Sprintf("%s?page=%d", s.SectionURL(section), page)
}
