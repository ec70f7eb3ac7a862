package entities

// KnownCompanies は辞書照合に使う既知の企業・ブランド名です。
var KnownCompanies = []string{
	// ロシア企業
	"Яндекс", "Тинькофф", "Сбер", "ВТБ", "Альфа-Банк", "МТС", "Мегафон",
	"Tele2", "T2", "Ozon", "Wildberries", "Авито", "Юла", "Деливери", "Яндекс.Еда",
	"Сбербанк", "Райффайзен", "Газпром", "Лукойл", "Роснефть", "T2 AdTech",
	"Яндекс.Музыка", "Яндекс.Такси", "Яндекс.Маркет", "Яндекс.Директ",
	// IT・テクノロジー
	"Apple", "Tesla", "Google", "Microsoft", "Amazon", "Meta", "Facebook",
	"Netflix", "Uber", "Airbnb", "Twitter", "X", "LinkedIn", "Instagram",
	"WhatsApp", "Telegram", "Spotify", "Adobe", "Oracle", "IBM", "Intel",
	"Nvidia", "Samsung", "Sony", "LG", "Huawei", "Xiaomi", "Alibaba",
	"Tencent", "Baidu", "PayPal", "Visa", "Mastercard", "Stripe",
	// 金融
	"Goldman Sachs", "JPMorgan", "Morgan Stanley", "Citigroup", "Bank of America",
	"Wells Fargo", "Deutsche Bank", "HSBC", "Barclays", "Credit Suisse",
	// 自動車
	"BMW", "Mercedes-Benz", "Audi", "Volkswagen", "Toyota", "Honda", "Nissan",
	"Ford", "General Motors", "Volvo", "Porsche", "Ferrari", "Lamborghini",
	// 小売・マーケットプレイス
	"eBay", "Shopify", "Walmart", "Target", "Costco", "IKEA", "Zara",
	"H&M", "Nike", "Adidas", "Puma", "Uniqlo",
	// メディア・エンタメ
	"Disney", "Warner Bros", "Universal", "Paramount", "HBO", "Hulu",
	"YouTube", "TikTok", "Snapchat", "Pinterest", "Reddit",
	// その他
	"Coca-Cola", "Pepsi", "McDonald's", "Starbucks", "KFC", "Subway",
	"Nestle", "Unilever", "Procter & Gamble", "Johnson & Johnson",
}

// notPeople は人名の候補から除外する語（小文字）です。
var notPeople = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"республика", "корея", "яблоко", "яндекс", "россия", "москва",
		"российский", "московский", "российская", "московская",
		"северная", "южная", "восточная", "западная",
		"компания", "компании", "компаний", "компанию",
		"оператор", "операторы", "операторов",
		"банк", "банка", "банку", "банки", "банков",
		"рынок", "рынка", "рынке", "рынком",
		"решение", "решения", "решений",
		"требование", "требования", "требований",
		"выбор", "выбора", "выбору",
		"при", "про", "для", "над", "под", "без",
		"новый", "новая", "новое", "новые",
		"старый", "старая", "старое", "старые",
	} {
		notPeople[w] = struct{}{}
	}
}
