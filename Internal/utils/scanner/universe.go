package scanner

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fazecat/triggerdesk/Internal/types"
)

var ErrMissingColumns = errors.New("universe file needs Ticker and Company Name columns")

// LoadUniverse reads the symbol universe from a CSV file.
func LoadUniverse(path string) ([]types.Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe %s: %w", path, err)
	}
	defer f.Close()
	return ImportUniverse(f)
}

// ImportUniverse parses a CSV with Ticker and Company Name columns. Rows whose
// ticker is empty, numeric or NaN are skipped; duplicates keep the first row.
func ImportUniverse(r io.Reader) ([]types.Symbol, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read universe header: %w", err)
	}

	tickerCol, companyCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "ticker":
			tickerCol = i
		case "company name":
			companyCol = i
		}
	}
	if tickerCol < 0 || companyCol < 0 {
		return nil, ErrMissingColumns
	}

	var out []types.Symbol
	seen := make(map[string]bool)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read universe row: %w", err)
		}
		if tickerCol >= len(row) {
			continue
		}

		ticker := strings.ToUpper(strings.TrimSpace(row[tickerCol]))
		if !isSymbol(ticker) || seen[ticker] {
			continue
		}
		seen[ticker] = true

		company := ""
		if companyCol < len(row) {
			company = strings.TrimSpace(row[companyCol])
		}
		out = append(out, types.Symbol{Ticker: ticker, Company: company})
	}
	return out, nil
}

// isSymbol rejects cells a spreadsheet export leaves behind for missing
// tickers: blanks, numbers and NaN.
func isSymbol(s string) bool {
	if s == "" {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false
	}
	return true
}
