// Package entities は記事本文から金額・企業名・人名の言及をパターンで抽出します。
// すべての抽出は決定的で、状態を持ちません。
package entities

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// MaxPeople は人名の最大件数です。
const MaxPeople = 10

// ws は Unicode の空白（ノーブレークスペースを含む）に一致します。
const ws = `[\s\p{Z}]`

var (
	// "220 млн ₽" / "1,5 млн рублей"
	amountFirstPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)` + ws + `*(млн|млрд|тыс\.?)` + ws + `*([₽$€]|руб(?:лей|ля|ль|\.)?|доллар(?:ов|а)?|евро)`)
	// "$15 млн"
	symbolFirstPattern = regexp.MustCompile(`(?i)([₽$€])` + ws + `*(\d+(?:[.,]\d+)?)` + ws + `*(млн|млрд|тыс\.?)`)

	quotedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`«([А-ЯЁA-Z][А-Яа-яёA-Za-z0-9.\s\p{Z}]{2,40}?)»`),
		regexp.MustCompile(`"([А-ЯЁA-Z][А-Яа-яёA-Za-z0-9.\s\p{Z}]{2,40}?)"`),
	}
	contextPattern = regexp.MustCompile(`(?i)(?:` +
		`компани(?:я|и|ей|ю|ям|ями)|` +
		`стартап(?:а|у|ом|ы|ов|ам|ами)?|` +
		`проект(?:а|у|ом|ы|ов|ам|ами)?|` +
		`сервис(?:а|у|ом|ы|ов|ам|ами)?|` +
		`банк(?:а|у|ом|и|ов|ам|ами)?|` +
		`оператор(?:а|у|ом|ы|ов|ам|ами)?|` +
		`бренд(?:а|у|ом|ы|ов|ам|ами)?|` +
		`платформ(?:а|ы|е|у|ой|ам|ами)?|` +
		`экосистем(?:а|ы|е|у|ой|ам|ами)?)` +
		ws + `+([А-ЯЁA-Z][А-Яа-яёA-Za-z0-9.\s\p{Z}]{2,35}?)(?:` + ws + `|,|\.|$|—|–|:|;|\(|\))`)
	techPattern   = regexp.MustCompile(`\b([A-Z]\d+(?:` + ws + `+[A-Z][a-z]+)*)\b`)
	dottedPattern = regexp.MustCompile(`([А-ЯЁA-Z][А-Яа-яёA-Za-z]+\.(?:[А-ЯЁA-Z][а-яёa-z]+)+)`)
	personPattern = regexp.MustCompile(`([А-ЯЁ][а-яё]+)` + ws + `+([А-ЯЁ][а-яё]+)`)

	inflectedWord     = regexp.MustCompile(`^[а-яё]+(?:ых|их|ому|ему|ой|ей|ая|ое|ую)$`)
	commonAdjective   = regexp.MustCompile(`^(?:серых|черных|белых|новых|старых)`)
	adjectiveSuffix   = regexp.MustCompile(`(?:ых|их|ому|ему|ой|ей|ая|ое|ую|ем|им)$`)
	prepositionPrefix = regexp.MustCompile(`^(?:при|про|для|над|под|без|от|до|из|к|с|о|об|на|по|за)\s`)
	geoPrefix         = regexp.MustCompile(`^(?:росси|москв|петербург|санкт)`)
	genericPrefix     = regexp.MustCompile(`^(?:рынок|решение|требование|выбор|при)`)
	personGeoPrefix   = regexp.MustCompile(`^(?:северн|южн|восточн|западн|российск|московск)`)
)

// Mentions は 1 つのテキストから抽出された言及の一覧です。
type Mentions struct {
	Money     []types.Money
	Companies []string
	People    []string
}

// Extractor は既知企業の辞書を保持する抽出器です。生成後は読み取り専用です。
type Extractor struct {
	companies     []string
	lowered       []string
	abbreviations []string
}

// Option は Extractor の設定を行うための関数型です。
type Option func(*Extractor)

// WithCompanies は既知企業の辞書を差し替えます。
func WithCompanies(names ...string) Option {
	return func(e *Extractor) {
		e.companies = names
	}
}

// New は KnownCompanies を辞書とする Extractor を生成します。
func New(opts ...Option) *Extractor {
	e := &Extractor{companies: KnownCompanies}
	for _, opt := range opts {
		opt(e)
	}

	e.lowered = make([]string, len(e.companies))
	for i, c := range e.companies {
		e.lowered[i] = strings.ToLower(c)
		// 短い大文字の略称は大文字小文字を区別して別途照合する
		if utf8.RuneCountInString(c) <= 5 && isUpperWord(c) {
			e.abbreviations = append(e.abbreviations, c)
		}
	}
	return e
}

// Extract は金額・企業名・人名をまとめて抽出します。
func (e *Extractor) Extract(text string) Mentions {
	return Mentions{
		Money:     Money(text),
		Companies: e.Companies(text),
		People:    People(text),
	}
}

// Money はテキスト中の金額表現を抽出します。
// 重複はマッチした元の部分文字列（小文字化）で判定します。
func Money(text string) []types.Money {
	result := make([]types.Money, 0)
	seen := make(map[string]struct{})

	add := func(m types.Money) {
		if m.Amount == "" || m.Multiplier == "" {
			return
		}
		key := strings.ToLower(m.Original)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		result = append(result, m)
	}

	for _, g := range amountFirstPattern.FindAllStringSubmatch(text, -1) {
		add(types.Money{
			Amount:     normalizeAmount(g[1]),
			Multiplier: normalizeMultiplier(g[2]),
			Currency:   normalizeCurrency(g[3]),
			Original:   g[0],
		})
	}
	for _, g := range symbolFirstPattern.FindAllStringSubmatch(text, -1) {
		add(types.Money{
			Amount:     normalizeAmount(g[2]),
			Multiplier: normalizeMultiplier(g[3]),
			Currency:   normalizeCurrency(g[1]),
			Original:   g[0],
		})
	}
	return result
}

func normalizeAmount(s string) string {
	return strings.ReplaceAll(s, ",", ".")
}

func normalizeMultiplier(s string) string {
	s = strings.TrimRight(strings.ToLower(s), ".")
	switch {
	case strings.Contains(s, "тыс"):
		return "тыс"
	case strings.Contains(s, "млрд"):
		return "млрд"
	case strings.Contains(s, "млн"):
		return "млн"
	}
	return s
}

func normalizeCurrency(s string) string {
	lower := strings.ToLower(s)
	switch {
	case lower == "₽" || strings.HasPrefix(lower, "руб"):
		return "₽"
	case lower == "$" || strings.HasPrefix(lower, "доллар"):
		return "$"
	case lower == "€" || lower == "евро":
		return "€"
	}
	return lower
}

// Companies は辞書照合と複数のヒューリスティックで企業名を抽出し、ソート済みで返します。
func (e *Extractor) Companies(text string) []string {
	candidates := make(map[string]struct{})
	add := func(c string) {
		candidates[c] = struct{}{}
	}

	// 1. 辞書（単語境界での完全一致）
	lower := strings.ToLower(text)
	for i, c := range e.lowered {
		if containsWord(lower, c) {
			add(e.companies[i])
		}
	}

	// 2. 引用符で囲まれた名前
	for _, re := range quotedPatterns {
		for _, g := range re.FindAllStringSubmatch(text, -1) {
			q := strings.TrimSpace(g[1])
			ql := strings.ToLower(q)
			if utf8.RuneCountInString(q) >= 2 && startsUpper(q) &&
				!inflectedWord.MatchString(ql) && !commonAdjective.MatchString(ql) {
				add(q)
			}
		}
	}

	// 3. 「компания / стартап / банк ...」に続く名前
	for _, g := range contextPattern.FindAllStringSubmatch(text, -1) {
		c := strings.Join(strings.Fields(g[1]), " ")
		cl := strings.ToLower(c)
		n := utf8.RuneCountInString(c)
		if n >= 2 && n <= 40 && startsUpper(c) &&
			!adjectiveSuffix.MatchString(cl) && !prepositionPrefix.MatchString(cl) {
			add(c)
		}
	}

	// 4. 英字+数字のブランド（T2, T2 AdTech）
	for _, m := range findTechBrands(text) {
		add(m)
	}

	// 5. 辞書中の短い略称（МТС, ВТБ）
	for _, c := range e.abbreviations {
		if containsWord(text, c) {
			add(c)
		}
	}

	// 6. ドット区切りのサブブランド（Яндекс.Еда）
	for _, loc := range findAllBounded(dottedPattern, text) {
		if m := text[loc[2]:loc[3]]; utf8.RuneCountInString(m) >= 5 {
			add(m)
		}
	}

	result := make([]string, 0, len(candidates))
	for c := range candidates {
		c = strings.TrimSpace(c)
		if acceptCompany(c) {
			result = append(result, c)
		}
	}
	slices.Sort(result)
	return slices.Compact(result)
}

// acceptCompany は全候補に共通の最終フィルタです。
func acceptCompany(c string) bool {
	n := utf8.RuneCountInString(c)
	if n < 3 || n > 50 || !startsUpper(c) {
		return false
	}
	cl := strings.ToLower(c)
	return !adjectiveSuffix.MatchString(cl) &&
		!prepositionPrefix.MatchString(cl) &&
		!geoPrefix.MatchString(cl) &&
		!genericPrefix.MatchString(cl)
}

// People は「Имя Фамилия」形式の人名を抽出します。
// 出現順で重複を除き、先頭の MaxPeople 件を返します。
func People(text string) []string {
	result := make([]string, 0)
	seen := make(map[string]struct{})

	for _, loc := range findAllBounded(personPattern, text) {
		first, last := text[loc[2]:loc[3]], text[loc[4]:loc[5]]
		if !personToken(first) || !personToken(last) {
			continue
		}
		name := first + " " + last
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
		if len(result) == MaxPeople {
			break
		}
	}
	return result
}

func personToken(tok string) bool {
	if utf8.RuneCountInString(tok) <= 2 {
		return false
	}
	lower := strings.ToLower(tok)
	if _, ok := notPeople[lower]; ok {
		return false
	}
	for _, suffix := range []string{"ый", "ая", "ое", "ие", "ой", "ей"} {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return !personGeoPrefix.MatchString(lower)
}

// isWordRune は正規表現の \w に相当する文字かを Unicode で判定します。
func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// atWordBoundary は s[start:end] の前後が単語文字でないことを確認します。
func atWordBoundary(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// containsWord は word が単語境界付きで s に含まれるかを返します。
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		if atWordBoundary(s, start, start+len(word)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

// findAllBounded は単語境界を満たすマッチの添字をすべて返します。
// 境界を満たさない場合は次の文字から探索を再開します。
func findAllBounded(re *regexp.Regexp, s string) [][]int {
	var out [][]int
	for pos := 0; pos < len(s); {
		loc := re.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		if loc[1] > loc[0] && atWordBoundary(s, loc[0], loc[1]) {
			out = append(out, loc)
			pos = loc[1]
			continue
		}
		_, size := utf8.DecodeRuneInString(s[loc[0]:])
		pos = loc[0] + max(size, 1)
	}
	return out
}

// findTechBrands は techPattern のマッチを返します。
// 末尾の語がキリル文字に接する場合は語単位で後ろから削ります（R2 Pro Maxы → R2 Pro）。
func findTechBrands(s string) []string {
	var out []string
	for pos := 0; pos < len(s); {
		loc := techPattern.FindStringIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := loc[0]+pos, loc[1]+pos
		for end > start && !atWordBoundary(s, start, end) {
			i := strings.LastIndexFunc(s[start:end], isSpaceRune)
			if i < 0 {
				end = start
				break
			}
			end = start + len(strings.TrimRightFunc(s[start:start+i], isSpaceRune))
		}
		if end > start {
			out = append(out, s[start:end])
			pos = end
			continue
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		pos = start + max(size, 1)
	}
	return out
}

func isSpaceRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Z, r)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// isUpperWord は英字・キリル文字をひとつ以上含み、すべて大文字であるかを返します。
func isUpperWord(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
