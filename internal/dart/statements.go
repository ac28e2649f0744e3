package dart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/TobiSchelling/dartq/internal/filing"
)

const statementsPath = "/fnlttSinglAcntAll.json"

type statementResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	List    []statementRow `json:"list"`
}

type statementRow struct {
	ReceiptNo    string `json:"rcept_no"`
	ReportCode   string `json:"reprt_code"`
	BusinessYear string `json:"bsns_year"`
	CorpCode     string `json:"corp_code"`
	StatementDiv string `json:"sj_div"`
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_nm"`
	ThisTerm     string `json:"thstrm_amount"`
	Currency     string `json:"currency"`
}

var _ filing.StatementFetcher = (*Client)(nil)

// Fetch retrieves every line item of one full financial statement. Each
// account id appears at most once; the first statement section listing it
// wins. A response without rows yields ErrNoData.
func (c *Client) Fetch(ctx context.Context, entityID string, year int, kind filing.ReportKind, variant filing.Variant) ([]filing.LineItem, error) {
	entityID = filing.NormalizeEntityID(entityID)
	params := url.Values{
		"corp_code":  {entityID},
		"bsns_year":  {strconv.Itoa(year)},
		"reprt_code": {kind.Code()},
		"fs_div":     {variant.Code()},
	}

	resp, err := c.get(ctx, statementsPath, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding statement %s %d %s %s: %w", entityID, year, kind, variant, err)
	}
	if err := statusErr(result.Status, result.Message); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, ErrNoData
	}

	seen := make(map[string]struct{}, len(result.List))
	items := make([]filing.LineItem, 0, len(result.List))
	for _, row := range result.List {
		id := strings.TrimSpace(row.AccountID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, filing.LineItem{
			EntityID:     entityID,
			Year:         year,
			Kind:         kind,
			Variant:      variant,
			AccountKey:   id,
			AccountLabel: strings.TrimSpace(row.AccountName),
			Amount:       ParseAmount(row.ThisTerm),
		})
	}
	return items, nil
}
