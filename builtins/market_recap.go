package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petal-labs/petaltools/tool"
)

// DefaultMarketBaseURL is the Yahoo Finance chart API root.
const DefaultMarketBaseURL = "https://query1.finance.yahoo.com"

// DefaultMarkets are the S&P 500, NASDAQ Composite, and Dow Jones indices.
var DefaultMarkets = []string{"^GSPC", "^IXIC", "^DJI"}

const marketFetchConcurrency = 4

type marketRecapTool struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// MarketRecap returns the market_recap tool descriptor.
func MarketRecap(baseURL string, client *http.Client) tool.Descriptor {
	return marketRecap(baseURL, client, time.Now)
}

func marketRecap(baseURL string, client *http.Client, now func() time.Time) tool.Descriptor {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultMarketBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	m := &marketRecapTool{baseURL: strings.TrimRight(baseURL, "/"), client: client, now: now}
	return tool.Descriptor{
		Name:        "market_recap",
		Description: "Latest close and daily change for market indices or tickers.",
		Origin:      tool.OriginNative,
		Parameters: []tool.ParameterSpec{
			tool.OptionalParam("date", tool.TypeString, nil, "Report date, YYYY-MM-DD; defaults to today"),
			tool.OptionalParam("markets", tool.TypeString, nil, "Comma-separated symbols, e.g. ^GSPC,AAPL"),
		},
		Handler: tool.HandlerFunc(m.invoke),
	}
}

// MarketQuote is one line of a recap.
type MarketQuote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Close     float64 `json:"close"`
	Change    float64 `json:"change"`
	PctChange float64 `json:"pct_change"`
}

// Recap is the market_recap result.
type Recap struct {
	Date    string        `json:"date"`
	Markets []MarketQuote `json:"markets"`
}

func (m *marketRecapTool) invoke(ctx context.Context, args tool.Args) (any, error) {
	date, _ := args.String("date")
	date = strings.TrimSpace(date)
	if date == "" {
		date = m.now().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, tool.Errorf(tool.KindBadParameters, "date %q is not YYYY-MM-DD", date).
			WithDetails(map[string]any{"parameter": "date"})
	}

	markets, _ := args.String("markets")
	symbols := splitSymbols(markets)
	if len(symbols) == 0 {
		symbols = DefaultMarkets
	}

	quotes := make([]*MarketQuote, len(symbols))
	errs := make([]error, len(symbols))
	var g errgroup.Group
	g.SetLimit(marketFetchConcurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			quotes[i], errs[i] = m.quote(ctx, symbol)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A failed symbol is skipped; the recap fails only when every fetch did.
	var failed []error
	for i, err := range errs {
		if err != nil {
			slog.Default().Warn("market_recap: skipping symbol", "symbol", symbols[i], "error", err)
			failed = append(failed, err)
		}
	}
	if len(failed) == len(symbols) {
		return nil, failed[0]
	}

	recap := Recap{Date: date, Markets: make([]MarketQuote, 0, len(quotes))}
	for _, q := range quotes {
		if q != nil {
			recap.Markets = append(recap.Markets, *q)
		}
	}
	return recap, nil
}

func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if symbol := strings.TrimSpace(part); symbol != "" {
			out = append(out, symbol)
		}
	}
	return out
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				ShortName string `json:"shortName"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// quote returns nil when the symbol has fewer than two daily closes.
func (m *marketRecapTool) quote(ctx context.Context, symbol string) (*MarketQuote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", m.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request for %s: %w", symbol, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, tool.NewToolError(tool.KindToolExecution, "fetch quote for "+symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, tool.Errorf(tool.KindToolExecution, "quote for %s: status %d: %s",
			symbol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, tool.NewToolError(tool.KindToolExecution, "decode quote for "+symbol, err)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	closes := make([]float64, 0, 5)
	for _, c := range result.Indicators.Quote[0].Close {
		if c != nil {
			closes = append(closes, *c)
		}
	}
	if len(closes) < 2 {
		return nil, nil
	}

	prev, last := closes[len(closes)-2], closes[len(closes)-1]
	change := last - prev
	var pct float64
	if prev != 0 {
		pct = change / prev * 100
	}
	name := result.Meta.ShortName
	if name == "" {
		name = symbol
	}
	return &MarketQuote{
		Symbol:    symbol,
		Name:      name,
		Close:     round(last, 2),
		Change:    round(change, 2),
		PctChange: round(pct, 2),
	}, nil
}
