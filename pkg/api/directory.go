package api

// Category is a user-defined expense category.
type Category struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Account is a user-defined payment account.
type Account struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Directory is the set of categories and accounts expenses are filed under.
type Directory struct {
	Categories []Category `json:"categories"`
	Accounts   []Account  `json:"accounts"`
}

// Fallback names used when nothing more specific is known.
const (
	DefaultCategory = "其他"
	DefaultAccount  = "现金"
)

// DefaultDirectory returns the directory a fresh installation starts with.
func DefaultDirectory() Directory {
	return Directory{
		Categories: []Category{
			{Name: "餐饮", Color: "orange"},
			{Name: "交通", Color: "blue"},
			{Name: "购物", Color: "green"},
			{Name: "娱乐", Color: "purple"},
			{Name: "医疗", Color: "red"},
			{Name: "教育", Color: "indigo"},
			{Name: "住房", Color: "brown"},
			{Name: "服饰", Color: "pink"},
			{Name: "数码", Color: "gray"},
			{Name: DefaultCategory, Color: "secondary"},
		},
		Accounts: []Account{
			{Name: DefaultAccount, Kind: "cash"},
			{Name: "银行卡", Kind: "debit"},
			{Name: "信用卡", Kind: "credit"},
			{Name: "支付宝", Kind: "wallet"},
			{Name: "微信", Kind: "wallet"},
		},
	}
}

// FindCategory returns the category with exactly the given name.
func (d Directory) FindCategory(name string) (*Category, bool) {
	for i := range d.Categories {
		if d.Categories[i].Name == name {
			return &d.Categories[i], true
		}
	}
	return nil, false
}

// FindAccount returns the account with exactly the given name.
func (d Directory) FindAccount(name string) (*Account, bool) {
	for i := range d.Accounts {
		if d.Accounts[i].Name == name {
			return &d.Accounts[i], true
		}
	}
	return nil, false
}

// Match looks up the category and payment method inferred for info by exact
// name. Either result is nil when there is no such entry.
func (d Directory) Match(info ParsedExpenseInfo) (*Category, *Account) {
	var (
		category *Category
		account  *Account
	)
	if info.CategoryName != "" {
		category, _ = d.FindCategory(info.CategoryName)
	}
	if info.PaymentMethod != "" {
		account, _ = d.FindAccount(info.PaymentMethod)
	}
	return category, account
}
