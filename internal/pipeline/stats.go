package pipeline

import (
	"sort"

	"github.com/shouni/go-news-harvest/pkg/types"
)

// DefaultTopN は統計で表示する上位企業の件数です。
const DefaultTopN = 5

// Count は名前と出現数の組です。
type Count struct {
	Name string
	N    int
}

// Stats はコーパスの集計結果です。
type Stats struct {
	Articles          int
	WithCompanies     int
	WithMoney         int
	WithPeople        int
	DistinctCompanies int
	TopCompanies      []Count
	ByContentType     []Count
}

// Share は n がコーパス全体に占める割合（%）です。
func (s Stats) Share(n int) float64 {
	if s.Articles == 0 {
		return 0
	}
	return float64(n) * 100 / float64(s.Articles)
}

// ComputeStats はコーパスを集計します。企業は言及された記事数で数え、上位 topN 件を返します。
func ComputeStats(articles []types.Article, topN int) Stats {
	s := Stats{Articles: len(articles)}
	companies := make(map[string]int)
	contentTypes := make(map[string]int)

	for _, a := range articles {
		if len(a.Companies) > 0 {
			s.WithCompanies++
		}
		if len(a.Money) > 0 {
			s.WithMoney++
		}
		if len(a.People) > 0 {
			s.WithPeople++
		}
		for _, c := range a.Companies {
			companies[c]++
		}
		ct := a.ContentType
		if ct == "" {
			ct = types.ContentTypeUnknown
		}
		contentTypes[ct]++
	}

	s.DistinctCompanies = len(companies)
	s.TopCompanies = ranked(companies)
	if topN > 0 && len(s.TopCompanies) > topN {
		s.TopCompanies = s.TopCompanies[:topN]
	}
	s.ByContentType = ranked(contentTypes)
	return s
}

// ranked は出現数の降順、同数なら名前の昇順に並べます。
func ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Name < out[j].Name
	})
	return out
}
