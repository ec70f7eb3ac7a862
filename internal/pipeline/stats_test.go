package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/go-news-harvest/pkg/types"
)

func TestComputeStats(t *testing.T) {
	articles := []types.Article{
		{ContentType: "news", Companies: []string{"Яндекс", "Сбербанк"}, Money: []types.Money{{Amount: "1"}}},
		{ContentType: "news", Companies: []string{"Яндекс"}, People: []string{"Иван Петров"}},
		{ContentType: "stories", Companies: []string{"МТС", "Ozon", "Авито", "VK"}},
		{ContentType: ""},
	}

	s := ComputeStats(articles, 3)

	assert.Equal(t, 4, s.Articles)
	assert.Equal(t, 3, s.WithCompanies)
	assert.Equal(t, 1, s.WithMoney)
	assert.Equal(t, 1, s.WithPeople)
	assert.Equal(t, 6, s.DistinctCompanies)
	assert.Equal(t, []Count{{"Яндекс", 2}, {"Ozon", 1}, {"VK", 1}}, s.TopCompanies)
	assert.Equal(t, []Count{{"news", 2}, {"stories", 1}, {"unknown", 1}}, s.ByContentType)
	assert.InDelta(t, 75.0, s.Share(s.WithCompanies), 0.001)
}

func TestComputeStats_Empty(t *testing.T) {
	s := ComputeStats(nil, DefaultTopN)

	assert.Zero(t, s.Articles)
	assert.Empty(t, s.TopCompanies)
	assert.Zero(t, s.Share(0))
}
