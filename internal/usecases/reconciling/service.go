package reconciling

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
)

const (
	dailyDateFormat  = "2006-01-02"
	legacyDateFormat = "02.01.2006"
)

// FileSkip records one staged file that could not be reconciled and why.
// Skips are reported, never silent, so no data is lost without a trace.
type FileSkip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of reconciling one run's staged files.
type Result struct {
	Rows         []domain.CanonicalRow
	SkippedFiles []FileSkip
	SkippedRows  int
}

// Reconcile transforms raw export files into canonical fact rows. A file in
// an unknown layout, with an unmapped column or an unparseable date, is
// skipped whole; a row whose numeric value cannot be coerced is skipped
// individually and counted. Everything else flows through.
func Reconcile(files []domain.RawReportFile) Result {
	result := Result{}

	for _, file := range files {
		rows, skipped, err := reconcileFile(file)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"file":       file.Name,
				"account_id": file.AccountID,
				"reason":     err.Error(),
			}).Warn("report file skipped during reconciliation")

			result.SkippedFiles = append(result.SkippedFiles, FileSkip{
				Name:   file.Name,
				Reason: err.Error(),
			})
			continue
		}

		result.Rows = append(result.Rows, rows...)
		result.SkippedRows += skipped
	}

	return result
}

// layout describes how one export variant is shaped.
type layout struct {
	header     []Column
	records    [][]string
	dateFormat string
	campaignID *int64 // recovered from the title line of legacy exports
}

func reconcileFile(file domain.RawReportFile) ([]domain.CanonicalRow, int, error) {
	reader := csv.NewReader(bytes.NewReader(file.Content))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("invalid csv: %w", err)
	}

	lay, err := detectLayout(records)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]domain.CanonicalRow, 0, len(lay.records))
	skipped := 0

	for _, record := range lay.records {
		if blankRecord(record) {
			continue
		}

		row, err := buildRow(file, lay, record)
		if err != nil {
			if _, ok := err.(coercionError); ok {
				skipped++
				continue
			}
			return nil, 0, err
		}

		rows = append(rows, row)
	}

	return rows, skipped, nil
}

// detectLayout recognizes the two known export variants: the daily export
// (header on the first line, ISO dates) and the legacy statistics export
// (title line carrying the campaign id, header on the second line, summary
// footer, day-month-year dates).
func detectLayout(records [][]string) (layout, error) {
	if len(records) == 0 {
		return layout{}, fmt.Errorf("empty file")
	}

	header, err := resolveHeader(records[0])
	if err == nil {
		return layout{
			header:     header,
			records:    records[1:],
			dateFormat: dailyDateFormat,
		}, nil
	}
	firstErr := err

	if len(records) >= 2 {
		header, err2 := resolveHeader(records[1])
		if err2 == nil {
			data := records[2:]
			if len(data) > 0 {
				// Legacy exports close with a totals line.
				data = data[:len(data)-1]
			}

			return layout{
				header:     header,
				records:    data,
				dateFormat: legacyDateFormat,
				campaignID: campaignFromTitle(records[0]),
			}, nil
		}
	}

	return layout{}, firstErr
}

// resolveHeader maps raw header cells onto canonical columns. Empty cells
// are ignored (legacy exports carry an unnamed index column); any other
// unmapped name fails the whole file.
func resolveHeader(cells []string) ([]Column, error) {
	header := make([]Column, len(cells))
	known := 0

	for i, cell := range cells {
		name := strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF"))
		if name == "" {
			header[i] = ""
			continue
		}

		canonical, ok := aliasTable[name]
		if !ok {
			return nil, fmt.Errorf("unknown report column %q", name)
		}

		header[i] = canonical
		known++
	}

	if known == 0 {
		return nil, fmt.Errorf("no known report columns")
	}
	if !headerHas(header, ColDate) {
		return nil, fmt.Errorf("report has no date column")
	}

	return header, nil
}

func headerHas(header []Column, col Column) bool {
	for _, c := range header {
		if c == col {
			return true
		}
	}
	return false
}

// campaignFromTitle recovers the campaign id from the trailing cell of a
// legacy report title line, e.g. "Отчёт по кампании № 12345, 01.01.2024".
// The id is the last whitespace-separated token before the first comma.
func campaignFromTitle(title []string) *int64 {
	if len(title) == 0 {
		return nil
	}

	cell := title[len(title)-1]
	fields := strings.Fields(strings.SplitN(cell, ",", 2)[0])
	if len(fields) == 0 {
		return nil
	}

	id, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return nil
	}

	return &id
}

type coercionError struct {
	col   Column
	value string
}

func (e coercionError) Error() string {
	return fmt.Sprintf("cannot coerce %q into column %s", e.value, e.col)
}

func buildRow(file domain.RawReportFile, lay layout, record []string) (domain.CanonicalRow, error) {
	row := domain.CanonicalRow{
		AccountID:  file.AccountID,
		APIID:      file.APIID,
		CampaignID: lay.campaignID,
	}

	seen := map[Column]bool{}

	for i, canonical := range lay.header {
		if canonical == "" || i >= len(record) {
			continue
		}

		value := strings.TrimSpace(record[i])
		if value == "" || seen[canonical] {
			// First non-empty column wins when several raw columns
			// alias to the same canonical one.
			continue
		}

		if err := assign(&row, canonical, value, lay.dateFormat); err != nil {
			return domain.CanonicalRow{}, err
		}
		seen[canonical] = true
	}

	if row.Date.IsZero() {
		return domain.CanonicalRow{}, fmt.Errorf("row has no date value")
	}

	return row, nil
}

func assign(row *domain.CanonicalRow, col Column, value, dateFormat string) error {
	switch columnKinds[col] {
	case kindDate:
		date, err := time.Parse(dateFormat, value)
		if err != nil {
			return fmt.Errorf("unparseable date %q: %w", value, err)
		}
		row.Date = date

	case kindInteger:
		parsed, err := strconv.ParseInt(normalizeNumber(value), 10, 64)
		if err != nil {
			return coercionError{col: col, value: value}
		}
		setInteger(row, col, parsed)

	case kindDecimal:
		parsed, err := strconv.ParseFloat(normalizeNumber(value), 64)
		if err != nil {
			return coercionError{col: col, value: value}
		}
		setDecimal(row, col, parsed)

	case kindText:
		setText(row, col, value)
	}

	return nil
}

func setInteger(row *domain.CanonicalRow, col Column, v int64) {
	switch col {
	case ColCampaignID:
		row.CampaignID = &v
	case ColViews:
		row.Views = &v
	case ColClicks:
		row.Clicks = &v
	case ColOrders:
		row.Orders = &v
	}
}

func setDecimal(row *domain.CanonicalRow, col Column, v float64) {
	switch col {
	case ColCTR:
		row.CTR = &v
	case ColExpense:
		row.Expense = &v
	case ColAvgBid:
		row.AvgBid = &v
	case ColRevenue:
		row.Revenue = &v
	}
}

func setText(row *domain.CanonicalRow, col Column, v string) {
	if col == ColCampaignName {
		row.CampaignName = &v
	}
}

// normalizeNumber converts locale-formatted numerics ("1 234,56", NBSP
// group separators) to the period-decimal convention. Empty strings never
// reach this point: they stay null upstream, not zero.
func normalizeNumber(value string) string {
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, " ", "")
	return strings.ReplaceAll(value, ",", ".")
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
