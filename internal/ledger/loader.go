package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"FIILens/internal/model"
	"FIILens/internal/ticker"
)

// B3 negotiation export column names.
const (
	colDate     = "Data do Negócio"
	colMovement = "Tipo de Movimentação"
	colTicker   = "Código de Negociação"
	colQuantity = "Quantidade"
	colPrice    = "Preço"

	// buyToken is the movement value retained by the buy filter.
	buyToken = "Compra"

	dateLayout = "02/01/2006"
)

// ErrWrongExport means the user supplied the "movimentação" (account
// movements) export instead of the negotiations one. Fatal for the load
// attempt; the user must re-export from the Negociação tab.
var ErrWrongExport = errors.New("ledger: movements export detected, expected the B3 negotiations export")

// SchemaError reports a required column missing from the export header.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ledger: required column %q not found; check that the file is a B3 negotiations export", e.Column)
}

// Diagnostics counts per-row outcomes of a load. Row-level failures are
// recovered by dropping the row, never by aborting the load.
type Diagnostics struct {
	Rows        int `json:"rows"`         // data rows seen
	NonBuy      int `json:"non_buy"`      // filtered by the movement-type check
	BadPrice    int `json:"bad_price"`    // price failed coercion
	BadDate     int `json:"bad_date"`     // date failed parsing
	BadQuantity int `json:"bad_quantity"` // quantity missing or non-positive
	Loaded      int `json:"loaded"`       // events retained
}

// Ledger is the parsed, buy-only trade history in source order.
type Ledger struct {
	Events []model.TradeEvent
	Diag   Diagnostics
}

// Tickers returns the unique canonical tickers in display order.
func (l *Ledger) Tickers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ev := range l.Events {
		if !seen[ev.Ticker] {
			seen[ev.Ticker] = true
			out = append(out, ev.Ticker)
		}
	}
	return ticker.SortForDisplay(out)
}

// FilterTicker returns the events for one canonical ticker, in source order.
func (l *Ledger) FilterTicker(canonical string) []model.TradeEvent {
	var out []model.TradeEvent
	for _, ev := range l.Events {
		if ev.Ticker == canonical {
			out = append(out, ev)
		}
	}
	return out
}

// rawRow mirrors the export columns; everything is read as text and coerced
// afterwards so that a malformed cell drops one row, not the whole file.
type rawRow struct {
	Date     string `csv:"Data do Negócio"`
	Movement string `csv:"Tipo de Movimentação"`
	Ticker   string `csv:"Código de Negociação"`
	Quantity string `csv:"Quantidade"`
	Price    string `csv:"Preço"`
}

// Loader parses B3 negotiation exports into a Ledger.
type Loader struct {
	Normalizer *ticker.Normalizer
}

func NewLoader(n *ticker.Normalizer) *Loader {
	return &Loader{Normalizer: n}
}

// Load ingests a negotiation export from a file or URL source. Two schema
// variants are accepted: the "all negotiations" export without a movement
// column (every row is a buy) and the variant carrying a movement column,
// which is filtered to buy rows. A ledger with zero buys is a valid result,
// not an error.
func (l *Loader) Load(ctx context.Context, src Source) (*Ledger, error) {
	if isMovementsExport(src.Name()) {
		return nil, ErrWrongExport
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")) // strip UTF-8 BOM

	sep := detectSeparator(data)
	header, err := readHeader(data, sep)
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}

	for _, required := range []string{colDate, colTicker, colQuantity, colPrice} {
		if !headerHas(header, required) {
			return nil, &SchemaError{Column: required}
		}
	}
	hasMovement := headerHas(header, colMovement)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sep
	reader.LazyQuotes = true
	var rows []*rawRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("parse ledger rows: %w", err)
	}

	out := &Ledger{}
	for _, row := range rows {
		out.Diag.Rows++

		if hasMovement && strings.TrimSpace(row.Movement) != buyToken {
			out.Diag.NonBuy++
			continue
		}

		price, err := parsePrice(row.Price)
		if err != nil {
			out.Diag.BadPrice++
			continue
		}
		day, err := time.Parse(dateLayout, strings.TrimSpace(row.Date))
		if err != nil {
			out.Diag.BadDate++
			continue
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(row.Quantity), 10, 64)
		if err != nil || qty <= 0 {
			out.Diag.BadQuantity++
			continue
		}

		out.Events = append(out.Events, model.TradeEvent{
			Ticker:    l.Normalizer.Normalize(row.Ticker),
			TradeDate: model.Day(day),
			Quantity:  qty,
			Price:     price,
		})
		out.Diag.Loaded++
	}
	return out, nil
}

// isMovementsExport is the filename heuristic inherited from the upstream
// workflow: B3 names the account-movements download "movimentacao-*".
func isMovementsExport(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "movimentacao") || strings.Contains(lower, "movimentação")
}

// parsePrice coerces broker price strings such as "R$ 30,00" into a decimal.
func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}

// detectSeparator sniffs the delimiter from the header line. B3 exports use
// either comma or semicolon depending on the download path.
func detectSeparator(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.ContainsRune(line, ';') && !bytes.ContainsRune(line, ',') {
		return ';'
	}
	return ','
}

func readHeader(data []byte, sep rune) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sep
	r.LazyQuotes = true
	return r.Read()
}

func headerHas(header []string, name string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) == name {
			return true
		}
	}
	return false
}
