package parser

import "strings"

// inferCategory scans the category tables against the text and merchant
// combined; table order breaks ties. Merchant fallbacks apply only when no
// keyword hits.
func (c *compiled) inferCategory(text, merchant string) string {
	combined := text + " " + merchant
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(combined, kw) {
				return cat.Name
			}
		}
	}

	if merchant == "" {
		return ""
	}
	for _, fb := range c.categoryFallbacks {
		for _, term := range fb.Contains {
			if strings.Contains(merchant, term) {
				return fb.Category
			}
		}
	}
	return ""
}

func (c *compiled) extractPaymentMethod(text string) string {
	for _, p := range c.paymentMethods {
		if strings.Contains(text, p.Keyword) {
			return p.Name
		}
	}
	return ""
}
