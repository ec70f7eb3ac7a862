package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-news-harvest/pkg/entities"
	"github.com/shouni/go-news-harvest/pkg/types"
)

// ErrParse はページ解析中の予期しない失敗を示します。記事は破棄されます。
var ErrParse = errors.New("ページの解析に失敗しました")

const (
	// strippedSelectors は本文抽出前に取り除く要素です。
	strippedSelectors = "script, style, nav, footer, header, aside, form"
	// chromeSelectors はサイト全体のナビゲーション領域です。
	chromeSelectors = "header, nav, footer, aside"
)

var (
	titleClass       = regexp.MustCompile(`(?i)title|heading|article`)
	authorLinkClass  = regexp.MustCompile(`(?i)author|writer|journalist`)
	authorClass      = regexp.MustCompile(`(?i)author`)
	dateClass        = regexp.MustCompile(`(?i)date|time`)
	descriptionClass = regexp.MustCompile(`(?i)description|excerpt|lead`)
	contentDivClass  = regexp.MustCompile(`(?i)content|article|text|body|post`)
	contentSecClass  = regexp.MustCompile(`(?i)content|article`)
	tagClass         = regexp.MustCompile(`(?i)tag`)
	tagListClass     = regexp.MustCompile(`(?i)tags|tag-list|tag-cloud`)
	metaTagProperty  = regexp.MustCompile(`(?i)article:tag|og:tag`)
	breadcrumbClass  = regexp.MustCompile(`(?i)breadcrumb`)
	newsClass        = regexp.MustCompile(`(?i)news`)
	storyClass       = regexp.MustCompile(`(?i)story`)
	opinionClass     = regexp.MustCompile(`(?i)opinion|column`)
)

// commonTags はどの記事にも付くサイト共通のタグです。本文内で見つかっても採用しません。
var commonTags = map[string]struct{}{
	"Тренды": {}, "Деньги": {}, "Бизнес": {}, "Россия": {}, "Технологии": {},
	"Маркетплейсы": {}, "Стартапы": {}, "Искусственный интеллект": {},
	"IT": {}, "Личное": {},
}

// Parser は goquery.Document と URL から Article を組み立てます。
type Parser struct {
	site        types.Site
	entities    *entities.Extractor
	now         func() time.Time
	readability bool

	title       FieldExtractor
	author      FieldExtractor
	date        FieldExtractor
	description FieldExtractor
}

// ParserOption は Parser の設定を行うための関数型です。
type ParserOption func(*Parser)

// WithSite は対象サイト（タイトル接尾辞など）を設定します。
func WithSite(site types.Site) ParserOption {
	return func(p *Parser) {
		p.site = site
	}
}

// WithEntityExtractor は言及抽出器を差し替えます。
func WithEntityExtractor(e *entities.Extractor) ParserOption {
	return func(p *Parser) {
		if e != nil {
			p.entities = e
		}
	}
}

// WithClock は scraped_at に使う時刻関数を差し替えます。
func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithReadabilityFallback は構造から本文が取れない場合の readability 補完を切り替えます。
func WithReadabilityFallback(enabled bool) ParserOption {
	return func(p *Parser) {
		p.readability = enabled
	}
}

// NewParser は新しい Parser を生成します。
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		site:        types.DefaultSite(),
		now:         time.Now,
		readability: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.entities == nil {
		p.entities = entities.New()
	}

	p.title = Chain{
		MetaAttribute{Key: "property", Value: "og:title"},
		ElementText{Match: Match{Tag: "h1", Class: titleClass}},
		ElementText{Match: Match{Tag: "h1"}},
		ElementText{Match: Match{Tag: "title"}, Remove: p.site.TitleSuffix},
	}
	p.author = Chain{
		ElementText{Match: Match{Tag: "a", Class: authorLinkClass}},
		ElementText{Match: Match{Tag: "span", Class: authorClass}},
		ElementText{Match: Match{Tag: "div", Class: authorClass}},
		MetaAttribute{Key: "property", Value: "article:author"},
		ElementText{Match: Match{Tag: "span", Itemprop: "author"}},
		ElementText{Match: Match{Tag: "div", Itemprop: "author"}},
	}
	p.date = Chain{
		StructuredAttribute{Match: Match{Tag: "time"}, Attr: "datetime"},
		StructuredAttribute{Match: Match{Tag: "span", Class: dateClass}, Attr: "datetime"},
		StructuredAttribute{Match: Match{Tag: "div", Class: dateClass}, Attr: "datetime"},
		MetaAttribute{Key: "property", Value: "article:published_time"},
		StructuredAttribute{Match: Match{Tag: "span", Itemprop: "datePublished"}, Attr: "datetime"},
	}
	p.description = Chain{
		MetaAttribute{Key: "property", Value: "og:description"},
		MetaAttribute{Key: "name", Value: "description"},
		ElementText{Match: Match{Tag: "div", Class: descriptionClass}},
	}
	return p
}

// Parse はページを Article に変換します。
// 解析中のパニックは ErrParse を包んだエラーに変換されます。
func (p *Parser) Parse(pageURL string, doc *goquery.Document) (article *types.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			article = nil
			err = fmt.Errorf("%w: %s: %v", ErrParse, pageURL, r)
		}
	}()
	if doc == nil {
		return nil, fmt.Errorf("%w: %s: ドキュメントが nil です", ErrParse, pageURL)
	}

	root := doc.Selection
	article = &types.Article{
		URL:         pageURL,
		Title:       textUtils.CleanStringFromEmojis(p.title.Extract(root)),
		ContentType: DetectContentType(pageURL, doc),
		Author:      p.author.Extract(root),
		Date:        p.date.Extract(root),
		Description: p.description.Extract(root),
		Text:        MainText(doc),
		Tags:        Tags(doc),
		Categories:  Categories(doc),
		ScrapedAt:   p.now(),
	}

	if p.readability && (article.Text == "" || article.Author == "") {
		p.applyReadability(pageURL, doc, article)
	}

	fullText := article.Text + " " + article.Description + " " + article.Title
	mentions := p.entities.Extract(fullText)
	article.Money = mentions.Money
	article.Companies = mentions.Companies
	article.People = mentions.People

	return article, nil
}

// applyReadability は readability の結果で空の本文と著者を補完します。
func (p *Parser) applyReadability(pageURL string, doc *goquery.Document, article *types.Article) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	rendered, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return
	}
	ra, err := readability.FromReader(strings.NewReader(rendered), parsedURL)
	if err != nil {
		return
	}
	if article.Text == "" {
		article.Text = textUtils.NormalizeText(ra.TextContent)
	}
	if article.Author == "" {
		article.Author = strings.TrimSpace(ra.Byline)
	}
}

// DetectContentType は URL と class 名のヒントからセクションを判定します。
func DetectContentType(pageURL string, doc *goquery.Document) string {
	lower := strings.ToLower(pageURL)
	if strings.Contains(lower, "/columns/") {
		return string(types.SectionOpinions)
	}
	for _, s := range types.AllSections() {
		if strings.Contains(lower, strings.ReplaceAll(s.Path(), "/", "")) {
			return string(s)
		}
	}

	root := doc.Selection
	switch {
	case FindByClass(root, "div", newsClass).Length() > 0:
		return string(types.SectionNews)
	case FindByClass(root, "div", storyClass).Length() > 0:
		return string(types.SectionStories)
	case FindByClass(root, "div", opinionClass).Length() > 0:
		return string(types.SectionOpinions)
	}
	return types.ContentTypeUnknown
}

// contentContainer は記事本文を含む最初の構造的コンテナを返します。
func contentContainer(doc *goquery.Document, withFallbacks bool) *goquery.Selection {
	root := doc.Selection
	candidates := []func() *goquery.Selection{
		func() *goquery.Selection { return root.Find("article") },
		func() *goquery.Selection { return FindByClass(root, "div", contentDivClass) },
		func() *goquery.Selection { return root.Find("main") },
	}
	if withFallbacks {
		candidates = append(candidates,
			func() *goquery.Selection { return Match{Tag: "div", Itemprop: "articleBody"}.Find(root) },
			func() *goquery.Selection { return FindByClass(root, "section", contentSecClass) },
		)
	}
	for _, find := range candidates {
		if sel := find().First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// MainText は本文コンテナのテキストを返します。元のドキュメントは変更しません。
func MainText(doc *goquery.Document) string {
	container := contentContainer(doc, true)
	if container == nil {
		return ""
	}
	clone := container.Clone()
	clone.Find(strippedSelectors).Remove()
	return NodeText(clone)
}

// Tags は記事固有のタグを集め、重複を除いてソートして返します。
// サイト全体のナビゲーション（header/nav/footer/aside）配下の要素は対象外です。
func Tags(doc *goquery.Document) []string {
	root := doc.Selection
	set := make(map[string]struct{})
	// 絵文字は除き、空白は正規化する
	add := func(tag string) {
		if tag = textUtils.CleanStringFromEmojis(tag); tag != "" {
			set[tag] = struct{}{}
		}
	}

	// 1. メタタグ
	root.Find("meta").Each(func(_ int, el *goquery.Selection) {
		if metaTagProperty.MatchString(el.AttrOr("property", "")) {
			add(el.AttrOr("content", ""))
		}
	})

	// 2. 本文コンテナ内の tag クラス要素
	if container := contentContainer(doc, false); container != nil && !underChrome(container) {
		FindByClass(container, "a, span, div, li", tagClass).Each(func(_ int, el *goquery.Selection) {
			if underChrome(el) {
				return
			}
			text := NodeText(el)
			if _, common := commonTags[text]; !common {
				add(text)
			}
		})
	}

	// 3. タグ専用ブロック
	if section := tagsSection(root); section != nil && !underChrome(section) {
		FindByClass(section, "a, span, li", tagClass).Each(func(_ int, el *goquery.Selection) {
			add(NodeText(el))
		})
	}

	// 4. data-tag 属性または rel="tag"
	root.Find("[data-tag], [rel]").Each(func(_ int, el *goquery.Selection) {
		dataTag, hasDataTag := el.Attr("data-tag")
		if !hasDataTag && !tagClass.MatchString(el.AttrOr("rel", "")) {
			return
		}
		if underChrome(el) {
			return
		}
		if dataTag != "" {
			add(dataTag)
			return
		}
		add(NodeText(el))
	})

	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

func tagsSection(root *goquery.Selection) *goquery.Selection {
	for _, sel := range []*goquery.Selection{
		FindByClass(root, "section", tagClass),
		FindByClass(root, "div", tagListClass),
		FindByClass(root, "ul", tagClass),
	} {
		if sel.Length() > 0 {
			return sel.First()
		}
	}
	return nil
}

func underChrome(sel *goquery.Selection) bool {
	return sel.ParentsFiltered(chromeSelectors).Length() > 0
}

// Categories はパンくずリストのリンクテキストを文書順に返し、article:section を末尾に加えます。
func Categories(doc *goquery.Document) []string {
	root := doc.Selection
	categories := make([]string, 0)

	for _, tag := range []string{"nav", "div", "ol"} {
		crumbs := FindByClass(root, tag, breadcrumbClass).First()
		if crumbs.Length() == 0 {
			continue
		}
		crumbs.Find("a").Each(func(_ int, a *goquery.Selection) {
			if text := NodeText(a); text != "" {
				categories = append(categories, text)
			}
		})
		break
	}

	if section := (MetaAttribute{Key: "property", Value: "article:section"}).Extract(root); section != "" {
		categories = append(categories, section)
	}
	return categories
}
