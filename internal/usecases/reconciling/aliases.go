package reconciling

// Column is a canonical column of the destination fact table.
type Column string

const (
	ColCampaignID   Column = "campaign_id"
	ColCampaignName Column = "campaign_name"
	ColDate         Column = "date"
	ColViews        Column = "views"
	ColClicks       Column = "clicks"
	ColCTR          Column = "ctr"
	ColExpense      Column = "expense"
	ColAvgBid       Column = "avrg_bid"
	ColOrders       Column = "orders"
	ColRevenue      Column = "revenue"
)

type columnKind int

const (
	kindText columnKind = iota
	kindInteger
	kindDecimal
	kindDate
)

// columnKinds drives locale normalization and type coercion. Every
// canonical column must appear here.
var columnKinds = map[Column]columnKind{
	ColCampaignID:   kindInteger,
	ColCampaignName: kindText,
	ColDate:         kindDate,
	ColViews:        kindInteger,
	ColClicks:       kindInteger,
	ColCTR:          kindDecimal,
	ColExpense:      kindDecimal,
	ColAvgBid:       kindDecimal,
	ColOrders:       kindInteger,
	ColRevenue:      kindDecimal,
}

// aliasTable maps every known raw export header to exactly one canonical
// column. Report variants differ by generation version and locale, so the
// same concept shows up under several names. A raw header missing from this
// table is an error for the whole file, never a silent drop.
//
// When two raw columns of one file alias to the same canonical column, the
// first non-empty value in column order wins.
var aliasTable = map[string]Column{
	"ID":            ColCampaignID,
	"Идентификатор": ColCampaignID,

	"Название": ColCampaignName,
	"Кампания": ColCampaignName,
	"Campaign": ColCampaignName,

	"Дата": ColDate,
	"День": ColDate,
	"Date": ColDate,
	"Day":  ColDate,

	"Показы": ColViews,
	"Views":  ColViews,

	"Клики":  ColClicks,
	"Clicks": ColClicks,

	"CTR (%)": ColCTR,
	"CTR":     ColCTR,

	"Расход, ₽":            ColExpense,
	"Расход, ₽, с НДС":     ColExpense,
	"Расход (руб., с НДС)": ColExpense,
	"Расход, руб.":         ColExpense,
	"Expense":              ColExpense,

	"Средняя ставка, ₽":      ColAvgBid,
	"Средняя ставка (руб.)":  ColAvgBid,
	"Avg. bid":               ColAvgBid,

	"Заказы, шт.": ColOrders,
	"Заказы":      ColOrders,
	"Количество":  ColOrders,
	"Orders":      ColOrders,

	"Заказы, ₽":      ColRevenue,
	"Выручка, ₽":     ColRevenue,
	"Выручка (руб.)": ColRevenue,
	"Стоимость, ₽":   ColRevenue,
	"Revenue":        ColRevenue,
}
