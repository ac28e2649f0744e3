package filing

// Account is a tracked metric.
type Account string

const (
	AccountRevenue         Account = "revenue"
	AccountOperatingIncome Account = "operating_income"
)

const (
	RevenueKey         = "ifrs-full_Revenue"
	OperatingIncomeKey = "dart_OperatingIncomeLoss"
)

// TrackedAccountKeys lists the account ids kept at ingestion.
var TrackedAccountKeys = []string{RevenueKey, OperatingIncomeKey}

// TrackedAccount maps a filed account id to the metric it feeds.
func TrackedAccount(accountKey string) (Account, bool) {
	switch accountKey {
	case RevenueKey:
		return AccountRevenue, true
	case OperatingIncomeKey:
		return AccountOperatingIncome, true
	}
	return "", false
}

// FilterTracked drops every item whose account is not tracked.
func FilterTracked(items []LineItem) []LineItem {
	var out []LineItem
	for _, it := range items {
		if _, ok := TrackedAccount(it.AccountKey); ok {
			out = append(out, it)
		}
	}
	return out
}
