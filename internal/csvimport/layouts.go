package csvimport

// SignConvention describes how a bank layout encodes transaction direction.
type SignConvention string

// Sign convention constants.
const (
	// SignSigned means a single amount column carries its own sign.
	SignSigned SignConvention = "signed"
	// SignDebitCredit means separate debit and credit columns, both positive.
	SignDebitCredit SignConvention = "debit_credit"
	// SignFlipped means a single amount column where charges are positive
	// and payments negative (common for card exports).
	SignFlipped SignConvention = "flipped"
)

// Layout is a declarative descriptor for a known bank CSV export. Adding a
// bank is a data change here, not a code change.
type Layout struct {
	Bank        string
	Name        string
	Signature   []string
	DateColumn  string
	DescColumn  string
	PayeeColumn string
	AmountColumn string
	DebitColumn  string
	CreditColumn string
	DateFormats []string
	Sign        SignConvention
}

var usDateFormats = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006-01-02",
	"01-02-2006",
	"Jan 2, 2006",
	"02 Jan 2006",
}

// Layouts is the ordered table of known bank export formats. Detection walks
// it in order and adopts the first layout whose signature columns are all
// present in the file's header row.
var Layouts = []Layout{
	{
		Bank:         "chase",
		Name:         "Chase Bank",
		Signature:    []string{"posting date", "description", "amount"},
		DateColumn:   "posting date",
		DescColumn:   "description",
		AmountColumn: "amount",
		DateFormats:  usDateFormats,
		Sign:         SignSigned,
	},
	{
		Bank:         "chase",
		Name:         "Chase Credit Card",
		Signature:    []string{"transaction date", "post date", "description", "amount"},
		DateColumn:   "transaction date",
		DescColumn:   "description",
		AmountColumn: "amount",
		DateFormats:  usDateFormats,
		Sign:         SignSigned,
	},
	{
		Bank:         "bank_of_america",
		Name:         "Bank of America",
		Signature:    []string{"date", "description", "amount", "running bal."},
		DateColumn:   "date",
		DescColumn:   "description",
		AmountColumn: "amount",
		DateFormats:  usDateFormats,
		Sign:         SignSigned,
	},
	{
		Bank:         "capital_one",
		Name:         "Capital One",
		Signature:    []string{"transaction date", "description", "debit", "credit"},
		DateColumn:   "transaction date",
		DescColumn:   "description",
		DebitColumn:  "debit",
		CreditColumn: "credit",
		DateFormats:  usDateFormats,
		Sign:         SignDebitCredit,
	},
	{
		Bank:         "citi",
		Name:         "Citibank",
		Signature:    []string{"date", "description", "debit", "credit"},
		DateColumn:   "date",
		DescColumn:   "description",
		DebitColumn:  "debit",
		CreditColumn: "credit",
		DateFormats:  usDateFormats,
		Sign:         SignDebitCredit,
	},
	{
		Bank:         "amex",
		Name:         "American Express",
		Signature:    []string{"date", "description", "amount", "extended details"},
		DateColumn:   "date",
		DescColumn:   "description",
		AmountColumn: "amount",
		DateFormats:  usDateFormats,
		Sign:         SignFlipped,
	},
	{
		Bank:         "wells_fargo",
		Name:         "Wells Fargo",
		Signature:    []string{"date", "amount", "description"},
		DateColumn:   "date",
		DescColumn:   "description",
		AmountColumn: "amount",
		DateFormats:  usDateFormats,
		Sign:         SignSigned,
	},
}

// FindLayout returns the layout registered for a bank code.
func FindLayout(bank string) (Layout, bool) {
	for _, l := range Layouts {
		if l.Bank == bank {
			return l, true
		}
	}
	return Layout{}, false
}
