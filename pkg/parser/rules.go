package parser

// KeywordMapping maps a substring trigger to the canonical name it stands for.
type KeywordMapping struct {
	Keyword string `json:"keyword"`
	Name    string `json:"name"`
}

// CategoryKeywords lists the triggers for one category.
type CategoryKeywords struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// MerchantFallback assigns Category when the merchant name contains any of Contains.
type MerchantFallback struct {
	Contains []string `json:"contains"`
	Category string   `json:"category"`
}

// MerchantPattern is a structural merchant rule. Group selects the submatch
// that holds the name; 0 means the whole match.
type MerchantPattern struct {
	Pattern string `json:"pattern"`
	Group   int    `json:"group"`
}

// Anchor says which calendar fields of a parsed time come from the clock.
type Anchor string

const (
	// AnchorNone keeps the parsed value as is.
	AnchorNone Anchor = ""
	// AnchorYear takes the year from the clock.
	AnchorYear Anchor = "year"
	// AnchorDate takes year, month and day from the clock and zeroes seconds.
	AnchorDate Anchor = "date"
)

// TimeLayout pairs a time pattern with the layout used to parse its match.
type TimeLayout struct {
	Pattern string `json:"pattern"`
	Layout  string `json:"layout"`
	Anchor  Anchor `json:"anchor,omitempty"`
}

// Rules is the complete, swappable configuration of the engine.
// Every list is evaluated in slice order and the first hit wins.
type Rules struct {
	// MaxInputRunes bounds the text handed to the pattern engine.
	MaxInputRunes int `json:"max_input_runes"`

	TimeOnlyPatterns  []string           `json:"time_only_patterns"`
	AmountPatterns    []string           `json:"amount_patterns"`
	MerchantPatterns  []MerchantPattern  `json:"merchant_patterns"`
	MerchantStopWords []string           `json:"merchant_stop_words"`
	MerchantKeywords  []KeywordMapping   `json:"merchant_keywords"`
	Categories        []CategoryKeywords `json:"categories"`
	CategoryFallbacks []MerchantFallback `json:"category_fallbacks"`
	PaymentMethods    []KeywordMapping   `json:"payment_methods"`
	TimeLayouts       []TimeLayout       `json:"time_layouts"`
	Weights           Weights            `json:"weights"`
}

// DefaultMaxInputRunes is the input cap used when Rules.MaxInputRunes is unset.
const DefaultMaxInputRunes = 4096

// word matches one letter, digit or underscore in any script.
const word = `[\p{L}\p{N}_]`

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		MaxInputRunes: DefaultMaxInputRunes,
		TimeOnlyPatterns: []string{
			`^\d{1,2}:\d{2}$`,
			`^\d{1,2}:\d{2}:\d{2}$`,
			`^\d{4}-\d{2}-\d{2}$`,
			`^\d{2}/\d{2}/\d{4}$`,
			`^\d{4}年\d{1,2}月\d{1,2}日$`,
			`^\d{1,2}月\d{1,2}日$`,
		},
		// Each amount pattern captures the magnitude in group 1.
		AmountPatterns: []string{
			`滴滴.*?-?(\d+(?:\.\d{1,2})?)`,
			`出行.*?-?(\d+(?:\.\d{1,2})?)`,
			`-\s*¥?(\d+(?:\.\d{1,2})?)`,
			`¥\s*-?(\d+(?:\.\d{1,2})?)`,
			`-?(\d+(?:\.\d{1,2})?)元`,
			`交易成功.*?-?(\d+(?:\.\d{1,2})?)`,
			`支付成功.*?-?(\d+(?:\.\d{1,2})?)`,
			`消费.*?-?(\d+(?:\.\d{1,2})?)`,
			`金额[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
			`总额[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
			`支付[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
			`收费[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
			`实付[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
			`合计[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
			`-?(\d+(?:\.\d{1,2})?)块`,
			`价格[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
			`费用[：:￥¥]?\s*-?(\d+(?:\.\d{1,2})?)`,
		},
		MerchantPatterns: []MerchantPattern{
			{Pattern: `(滴滴出行|滴滴|出行)`, Group: 1},
			{Pattern: `(特惠快车|快车|专车|出租车)`, Group: 1},
			{Pattern: `(` + word + `{2,10})\s*-?\d+\.\d{2}`, Group: 1},
			{Pattern: `(` + word + `{2,15}(?:\s*[(（].*?[)）])?)\s*-?\d+\.\d{2}`, Group: 1},
			{Pattern: `收款方[：:]?\s*([\p{L}\p{N}_\s]{2,20})`, Group: 1},
			{Pattern: `商户[：:]?\s*([\p{L}\p{N}_\s]{2,20})`, Group: 1},
			{Pattern: `店铺[：:]?\s*([\p{L}\p{N}_\s]{2,20})`, Group: 1},
			{Pattern: `向\s*([\p{L}\p{N}_\s]{2,20})\s*付款`, Group: 1},
			{Pattern: `付款给\s*([\p{L}\p{N}_\s]{2,20})`, Group: 1},
			{Pattern: word + `{2,10}(?:超市|便利店|餐厅|药店|商场|咖啡|奶茶)`, Group: 0},
			{Pattern: `(` + word + `{1,8}(?:超市|便利店|餐厅|药店|商场|咖啡|奶茶))`, Group: 1},
		},
		MerchantStopWords: []string{
			"交易成功", "支付成功", "消费", "金额", "总额", "支付", "收费", "实付", "合计", "价格", "费用",
		},
		MerchantKeywords: []KeywordMapping{
			{Keyword: "滴滴", Name: "滴滴出行"},
			{Keyword: "美团", Name: "美团"},
			{Keyword: "饿了么", Name: "饿了么"},
			{Keyword: "淘宝", Name: "淘宝"},
			{Keyword: "京东", Name: "京东"},
			{Keyword: "支付宝", Name: "支付宝"},
			{Keyword: "微信", Name: "微信支付"},
			{Keyword: "星巴克", Name: "星巴克"},
			{Keyword: "麦当劳", Name: "麦当劳"},
			{Keyword: "肯德基", Name: "肯德基"},
		},
		Categories: []CategoryKeywords{
			{Name: "餐饮", Keywords: []string{
				"美团", "饿了么", "百度外卖", "外卖",
				"餐厅", "饭店", "咖啡", "奶茶", "火锅", "烧烤", "快餐", "美食", "小吃", "食堂",
				"麦当劳", "肯德基", "星巴克", "喜茶", "海底捞", "必胜客",
			}},
			{Name: "交通", Keywords: []string{
				"滴滴", "uber", "出租车", "网约车", "地铁", "公交", "加油站", "停车", "高速", "过路费",
				"机票", "火车票", "汽车票", "船票", "共享单车", "摩拜", "哈啰",
			}},
			{Name: "购物", Keywords: []string{
				"淘宝", "京东", "拼多多", "天猫", "苏宁", "唯品会", "小红书",
				"超市", "便利店", "商场", "专卖店", "百货", "购物", "沃尔玛", "家乐福", "7-11",
			}},
			{Name: "医疗", Keywords: []string{
				"医院", "药店", "诊所", "体检", "牙科", "眼科", "中医", "西医", "挂号", "药费", "医疗",
			}},
			{Name: "娱乐", Keywords: []string{
				"电影院", "KTV", "游戏", "娱乐", "酒吧", "夜店", "网吧", "台球", "密室逃脱", "剧本杀",
			}},
			{Name: "教育", Keywords: []string{
				"学校", "培训", "书店", "教育", "学费", "课程", "辅导", "考试", "报名费",
			}},
			{Name: "住房", Keywords: []string{
				"房租", "物业", "水费", "电费", "燃气费", "宽带", "装修", "家具", "电器维修",
			}},
			{Name: "服饰", Keywords: []string{
				"服装", "鞋子", "帽子", "内衣", "运动装", "正装", "休闲装", "包包", "饰品",
			}},
			{Name: "数码", Keywords: []string{
				"手机", "电脑", "数码", "电子", "苹果", "华为", "小米", "电器", "充电器", "耳机",
			}},
			{Name: "生活服务", Keywords: []string{
				"理发", "美容", "美甲", "按摩", "洗车", "维修", "快递", "洗衣", "家政",
			}},
		},
		CategoryFallbacks: []MerchantFallback{
			{Contains: []string{"超市", "便利店", "商场"}, Category: "购物"},
			{Contains: []string{"餐", "饭", "食"}, Category: "餐饮"},
		},
		PaymentMethods: []KeywordMapping{
			{Keyword: "支付宝", Name: "支付宝"},
			{Keyword: "微信", Name: "微信"},
			{Keyword: "银行卡", Name: "银行卡"},
			{Keyword: "信用卡", Name: "信用卡"},
			{Keyword: "现金", Name: "现金"},
			{Keyword: "余额", Name: "支付宝"},
			{Keyword: "花呗", Name: "支付宝"},
			{Keyword: "零钱", Name: "微信"},
		},
		TimeLayouts: []TimeLayout{
			{Pattern: `\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`, Layout: "2006-01-02 15:04:05"},
			{Pattern: `\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}`, Layout: "2006/01/02 15:04"},
			{Pattern: `\d{2}-\d{2}\s+\d{2}:\d{2}`, Layout: "01-02 15:04", Anchor: AnchorYear},
			{Pattern: `\d{2}:\d{2}`, Layout: "15:04", Anchor: AnchorDate},
		},
		Weights: DefaultWeights(),
	}
}

// WithDefaults fills every unset table from DefaultRules, so an override file
// only needs to name the tables it replaces.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.MaxInputRunes <= 0 {
		r.MaxInputRunes = d.MaxInputRunes
	}
	if len(r.TimeOnlyPatterns) == 0 {
		r.TimeOnlyPatterns = d.TimeOnlyPatterns
	}
	if len(r.AmountPatterns) == 0 {
		r.AmountPatterns = d.AmountPatterns
	}
	if len(r.MerchantPatterns) == 0 {
		r.MerchantPatterns = d.MerchantPatterns
	}
	if len(r.MerchantStopWords) == 0 {
		r.MerchantStopWords = d.MerchantStopWords
	}
	if len(r.MerchantKeywords) == 0 {
		r.MerchantKeywords = d.MerchantKeywords
	}
	if len(r.Categories) == 0 {
		r.Categories = d.Categories
	}
	if len(r.CategoryFallbacks) == 0 {
		r.CategoryFallbacks = d.CategoryFallbacks
	}
	if len(r.PaymentMethods) == 0 {
		r.PaymentMethods = d.PaymentMethods
	}
	if len(r.TimeLayouts) == 0 {
		r.TimeLayouts = d.TimeLayouts
	}
	if r.Weights.IsZero() {
		r.Weights = d.Weights
	}
	return r
}

// CategoryNames returns the category vocabulary in table order.
func (r Rules) CategoryNames() []string {
	names := make([]string, 0, len(r.Categories))
	for _, c := range r.Categories {
		names = append(names, c.Name)
	}
	return names
}
