package quickbooks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Report is the tabular report envelope.
type Report struct {
	Header  ReportHeader `json:"Header"`
	Columns struct {
		Column []ReportColumn `json:"Column"`
	} `json:"Columns"`
	Rows ReportRows `json:"Rows"`
}

// ReportHeader describes the report.
type ReportHeader struct {
	ReportName  string         `json:"ReportName"`
	StartPeriod string         `json:"StartPeriod"`
	EndPeriod   string         `json:"EndPeriod"`
	Option      []ReportOption `json:"Option"`
}

// ReportOption is a name/value report parameter.
type ReportOption struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// ReportColumn is one column definition.
type ReportColumn struct {
	ColTitle string `json:"ColTitle"`
	ColType  string `json:"ColType"`
}

// ReportRows holds a list of rows; sections nest their own.
type ReportRows struct {
	Row []ReportRow `json:"Row"`
}

// ReportRow is a data row or a section containing further rows.
type ReportRow struct {
	Type    string       `json:"type"`
	ColData []ColData    `json:"ColData"`
	Rows    *ReportRows  `json:"Rows"`
	Summary *ReportCells `json:"Summary"`
	Header  *ReportCells `json:"Header"`
}

// ReportCells is a header or summary line.
type ReportCells struct {
	ColData []ColData `json:"ColData"`
}

// ColData is one cell.
type ColData struct {
	Value string `json:"value"`
	ID    string `json:"id"`
}

// budgetLayout records which columns hold the account and the period amounts.
type budgetLayout struct {
	account int
	periods map[int]string
}

// ParseBudgetReport flattens a budget report into account/period lines.
// It tolerates missing column metadata, nested sections and unparsable amounts.
func ParseBudgetReport(r Report) []domain.BudgetLine {
	layout := budgetColumns(r)
	budget := budgetName(r.Header)

	var lines []domain.BudgetLine
	var walk func(rows ReportRows)
	walk = func(rows ReportRows) {
		for _, row := range rows.Row {
			if row.Rows != nil {
				walk(*row.Rows)
			}
			if strings.EqualFold(row.Type, "Section") || len(row.ColData) == 0 {
				continue
			}
			lines = append(lines, layout.lines(budget, row.ColData)...)
		}
	}
	walk(r.Rows)
	return lines
}

// budgetColumns locates columns by title and type. Without an account
// column, the first column is assumed to hold account names.
func budgetColumns(r Report) budgetLayout {
	layout := budgetLayout{account: -1, periods: make(map[int]string)}

	for i, col := range r.Columns.Column {
		colType := strings.ToLower(strings.TrimSpace(col.ColType))
		title := strings.TrimSpace(col.ColTitle)
		if layout.account < 0 && (colType == "account" || strings.Contains(strings.ToLower(title), "account")) {
			layout.account = i
		}
	}
	if layout.account < 0 {
		layout.account = 0
	}

	for i, col := range r.Columns.Column {
		if i == layout.account {
			continue
		}
		colType := strings.ToLower(strings.TrimSpace(col.ColType))
		if colType != "" && colType != "money" {
			continue
		}
		title := strings.TrimSpace(col.ColTitle)
		if strings.EqualFold(title, "total") {
			continue
		}
		if title == "" {
			title = periodRange(r.Header)
		}
		layout.periods[i] = title
	}
	return layout
}

// lines converts one data row into budget lines.
func (l budgetLayout) lines(budget string, cells []ColData) []domain.BudgetLine {
	if l.account >= len(cells) {
		return nil
	}
	account := strings.TrimSpace(cells[l.account].Value)
	if account == "" {
		return nil
	}

	var out []domain.BudgetLine
	for j := range cells {
		if j == l.account {
			continue
		}
		period, ok := l.periods[j]
		if !ok {
			// No column metadata: treat every other cell as an amount.
			if len(l.periods) > 0 {
				continue
			}
			period = fmt.Sprintf("column %d", j)
		}

		raw := strings.TrimSpace(cells[j].Value)
		if raw == "" {
			continue
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			logger.Debug("Skipping budget cell %q for %s/%s: %v", raw, account, period, err)
			continue
		}
		out = append(out, domain.BudgetLine{
			Budget:    budget,
			AccountID: cells[l.account].ID,
			Account:   account,
			Period:    period,
			Amount:    amount,
		})
	}
	return out
}

func budgetName(h ReportHeader) string {
	for _, opt := range h.Option {
		if strings.Contains(strings.ToLower(opt.Name), "budget") && opt.Value != "" {
			return opt.Value
		}
	}
	return h.ReportName
}

func periodRange(h ReportHeader) string {
	switch {
	case h.StartPeriod != "" && h.EndPeriod != "":
		return h.StartPeriod + ".." + h.EndPeriod
	case h.StartPeriod != "":
		return h.StartPeriod
	default:
		return "total"
	}
}
