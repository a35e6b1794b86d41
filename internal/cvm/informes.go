// Package cvm downloads the CVM "informe mensal" filings for FIIs and
// derives the value-per-share (VPA) history that the fund store serves.
// It is the offline batch half of the system: interactive analysis only
// reads what this loader writes.
package cvm

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"FIILens/internal/model"
)

// DefaultBaseURL is the CVM open-data directory for monthly FII filings.
const DefaultBaseURL = "https://dados.cvm.gov.br/dados/FII/DOC/INF_MENSAL/DADOS/"

// archivePattern matches both yearly ("..._2020.zip") and monthly
// ("..._202101.zip") archive names.
var archivePattern = regexp.MustCompile(`inf_mensal_fii_20\d{2,6}\.zip`)

var nonDigits = regexp.MustCompile(`\D`)

// columnSynonyms folds the column-name variations CVM used across reporting
// years into one fixed schema.
var columnSynonyms = map[string]string{
	"cnpj_fundo":            "cnpj",
	"cnpj_fundo_classe":     "cnpj", // post-2020 layout
	"data_referencia":       "data_comptc",
	"dt_comptc":             "data_comptc",
	"patrimonio_liquido":    "valor_patrim_liq",
	"vl_patrimonio_liquido": "valor_patrim_liq",
	"vl_patrim_liq":         "valor_patrim_liq",
	"cotas_emitidas":        "qt_cotas",
	"nr_cotas":              "qt_cotas",
}

// BookValueWriter is the write side of the fund store.
type BookValueWriter interface {
	ReplaceBookValues(recs []model.BookValueRecord) error
}

// Loader scrapes the filings directory, processes every archive and
// overwrites the persisted VPA series wholesale.
type Loader struct {
	BaseURL string
	Client  *http.Client
	Store   BookValueWriter
}

func NewLoader(baseURL string, store BookValueWriter) *Loader {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Loader{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
		Store:   store,
	}
}

// ListArchiveURLs scrapes the directory index for filing archives, sorted.
func (l *Loader) ListArchiveURLs(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list cvm archives: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list cvm archives: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("list cvm archives: %w", err)
	}

	seen := make(map[string]bool)
	var urls []string
	for _, name := range archivePattern.FindAllString(string(body), -1) {
		if !seen[name] {
			seen[name] = true
			urls = append(urls, l.BaseURL+name)
		}
	}
	sort.Strings(urls)
	return urls, nil
}

// FetchArchive downloads one filing archive and extracts the VPA records
// from its "complemento" members.
func (l *Loader) FetchArchive(ctx context.Context, archiveURL string) ([]model.BookValueRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", archiveURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", archiveURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", archiveURL, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", archiveURL, err)
	}

	var recs []model.BookValueRecord
	for _, member := range zr.File {
		if !strings.Contains(strings.ToLower(member.Name), "complemento") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("open member %s: %w", member.Name, err)
		}
		memberRecs, err := ParseComplemento(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse member %s: %w", member.Name, err)
		}
		recs = append(recs, memberRecs...)
	}
	return recs, nil
}

// ParseComplemento reads one "complemento" CSV (semicolon-separated,
// Latin-1 encoded), folds header variants via the synonym map and derives
// vpa = net asset value / shares outstanding. Rows with unparseable numbers
// or a non-positive share count are dropped.
func ParseComplemento(r io.Reader) ([]model.BookValueRecord, error) {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := columnSynonyms[name]; ok {
			name = canonical
		}
		if _, taken := idx[name]; !taken {
			idx[name] = i
		}
	}
	for _, essential := range []string{"cnpj", "data_comptc", "valor_patrim_liq", "qt_cotas"} {
		if _, ok := idx[essential]; !ok {
			return nil, fmt.Errorf("column %q not found after normalization", essential)
		}
	}

	var recs []model.BookValueRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		field := func(name string) string {
			i := idx[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		cnpj := nonDigits.ReplaceAllString(field("cnpj"), "")
		if cnpj == "" {
			continue
		}
		day, err := parseReportDate(field("data_comptc"))
		if err != nil {
			continue
		}
		netAssets, err := parseNumber(field("valor_patrim_liq"))
		if err != nil {
			continue
		}
		shares, err := parseNumber(field("qt_cotas"))
		if err != nil || !shares.IsPositive() {
			continue
		}

		recs = append(recs, model.BookValueRecord{
			CNPJ: cnpj,
			Date: day,
			VPA:  netAssets.Div(shares).InexactFloat64(),
		})
	}
	return recs, nil
}

// parseReportDate accepts the date shapes seen across filing years.
func parseReportDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized report date %q", s)
}

func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}

// Run executes the full refresh: list archives, process each one, then
// replace the persisted series wholesale. Individual archive failures are
// logged and skipped so one bad year does not abort the refresh; a run that
// produced zero records leaves the store untouched.
func (l *Loader) Run(ctx context.Context) error {
	urls, err := l.ListArchiveURLs(ctx)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no filing archives found at %s", l.BaseURL)
	}
	log.Printf("[INFO] %d filing archives to process", len(urls))

	var all []model.BookValueRecord
	for _, u := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		recs, err := l.FetchArchive(ctx, u)
		if err != nil {
			log.Printf("[WARN] skipping archive: %v", err)
			continue
		}
		log.Printf("[INFO] %s: %d records", u[strings.LastIndex(u, "/")+1:], len(recs))
		all = append(all, recs...)
	}
	if len(all) == 0 {
		return fmt.Errorf("no records extracted, store left untouched")
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CNPJ != all[j].CNPJ {
			return all[i].CNPJ < all[j].CNPJ
		}
		return all[i].Date.Before(all[j].Date)
	})
	return l.Store.ReplaceBookValues(all)
}
