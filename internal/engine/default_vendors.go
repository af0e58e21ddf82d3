package engine

// DefaultVendor maps a normalized keyword to a vendor and category. The
// table is the second-pass fallback when no user rule matches; entries are
// ordered from more to less specific so the first hit wins.
type DefaultVendor struct {
	Keyword     string
	Vendor      string
	Category    string
	Subcategory string
}

// DefaultVendors returns the built-in keyword table.
func DefaultVendors() []DefaultVendor {
	return []DefaultVendor{
		// Income
		{Keyword: "payroll", Vendor: "", Category: "Income", Subcategory: "Salary"},
		{Keyword: "direct dep", Vendor: "", Category: "Income", Subcategory: "Salary"},
		{Keyword: "irs treas", Vendor: "IRS", Category: "Income", Subcategory: "Tax Refund"},
		{Keyword: "interest earned", Vendor: "", Category: "Income", Subcategory: "Interest"},

		// Fuel
		{Keyword: "shell oil", Vendor: "Shell", Category: "Auto", Subcategory: "Fuel"},
		{Keyword: "shell", Vendor: "Shell", Category: "Auto", Subcategory: "Fuel"},
		{Keyword: "exxon", Vendor: "Exxon", Category: "Auto", Subcategory: "Fuel"},
		{Keyword: "chevron", Vendor: "Chevron", Category: "Auto", Subcategory: "Fuel"},

		// Groceries
		{Keyword: "whole foods", Vendor: "Whole Foods", Category: "Groceries"},
		{Keyword: "trader joe", Vendor: "Trader Joe's", Category: "Groceries"},
		{Keyword: "kroger", Vendor: "Kroger", Category: "Groceries"},
		{Keyword: "safeway", Vendor: "Safeway", Category: "Groceries"},

		// Dining
		{Keyword: "starbucks", Vendor: "Starbucks", Category: "Dining", Subcategory: "Coffee"},
		{Keyword: "mcdonald", Vendor: "McDonald's", Category: "Dining", Subcategory: "Fast Food"},
		{Keyword: "chipotle", Vendor: "Chipotle", Category: "Dining"},
		{Keyword: "doordash", Vendor: "DoorDash", Category: "Dining", Subcategory: "Delivery"},

		// Shopping
		{Keyword: "amazon", Vendor: "Amazon", Category: "Shopping"},
		{Keyword: "walmart", Vendor: "Walmart", Category: "Shopping"},
		{Keyword: "target", Vendor: "Target", Category: "Shopping"},
		{Keyword: "home depot", Vendor: "Home Depot", Category: "Home", Subcategory: "Improvement"},
		{Keyword: "lowe's", Vendor: "Lowe's", Category: "Home", Subcategory: "Improvement"},

		// Subscriptions and entertainment
		{Keyword: "netflix", Vendor: "Netflix", Category: "Entertainment", Subcategory: "Streaming"},
		{Keyword: "spotify", Vendor: "Spotify", Category: "Entertainment", Subcategory: "Streaming"},
		{Keyword: "hulu", Vendor: "Hulu", Category: "Entertainment", Subcategory: "Streaming"},

		// Transport
		{Keyword: "uber eats", Vendor: "Uber Eats", Category: "Dining", Subcategory: "Delivery"},
		{Keyword: "uber", Vendor: "Uber", Category: "Transportation", Subcategory: "Rideshare"},
		{Keyword: "lyft", Vendor: "Lyft", Category: "Transportation", Subcategory: "Rideshare"},

		// Utilities and telecom
		{Keyword: "comcast", Vendor: "Comcast", Category: "Utilities", Subcategory: "Internet"},
		{Keyword: "verizon", Vendor: "Verizon", Category: "Utilities", Subcategory: "Phone"},
		{Keyword: "at&t", Vendor: "AT&T", Category: "Utilities", Subcategory: "Phone"},
		{Keyword: "city utilities", Vendor: "", Category: "Utilities"},

		// Health
		{Keyword: "cvs", Vendor: "CVS", Category: "Health", Subcategory: "Pharmacy"},
		{Keyword: "walgreens", Vendor: "Walgreens", Category: "Health", Subcategory: "Pharmacy"},

		// Travel
		{Keyword: "delta air", Vendor: "Delta", Category: "Travel", Subcategory: "Flights"},
		{Keyword: "united airlines", Vendor: "United", Category: "Travel", Subcategory: "Flights"},
		{Keyword: "airbnb", Vendor: "Airbnb", Category: "Travel", Subcategory: "Lodging"},
		{Keyword: "marriott", Vendor: "Marriott", Category: "Travel", Subcategory: "Lodging"},
	}
}
