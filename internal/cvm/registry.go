package cvm

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"FIILens/internal/model"
	"FIILens/internal/ticker"
)

// ReadFundRegistry parses a ticker→CNPJ registry CSV (header row with
// "ticker" and "cnpj" columns, comma or semicolon separated). Tickers are
// normalized and CNPJs reduced to digits so registry rows join cleanly
// against the filing records.
func ReadFundRegistry(r io.Reader, n *ticker.Normalizer) ([]model.FundIdentity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\xef\xbb\xbf")

	sep := ','
	if line, _, _ := strings.Cut(text, "\n"); strings.ContainsRune(line, ';') && !strings.ContainsRune(line, ',') {
		sep = ';'
	}
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = sep
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read registry header: %w", err)
	}
	tickerIdx, cnpjIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "ticker":
			tickerIdx = i
		case "cnpj":
			cnpjIdx = i
		}
	}
	if tickerIdx < 0 || cnpjIdx < 0 {
		return nil, fmt.Errorf("registry must have ticker and cnpj columns, got %v", header)
	}

	var funds []model.FundIdentity
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read registry row: %w", err)
		}
		if tickerIdx >= len(row) || cnpjIdx >= len(row) {
			continue
		}
		code := n.Normalize(row[tickerIdx])
		cnpj := nonDigits.ReplaceAllString(row[cnpjIdx], "")
		if code == "" || cnpj == "" {
			continue
		}
		funds = append(funds, model.FundIdentity{Ticker: code, CNPJ: cnpj})
	}
	return funds, nil
}
