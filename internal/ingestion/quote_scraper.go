package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

const (
	DefaultQuoteBaseURL = "https://finance.naver.com"
	quotePath           = "/item/sise.naver"
	nowPriceSelector    = "#_nowVal"
)

// QuoteScraper reads the current price of a listed symbol from the quote
// page of a finance portal. It implements pricing.Oracle.
type QuoteScraper struct {
	baseURL string
	client  *http.Client
}

func NewQuoteScraper(baseURL string, client *http.Client) *QuoteScraper {
	if baseURL == "" {
		baseURL = DefaultQuoteBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &QuoteScraper{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *QuoteScraper) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	u := s.baseURL + quotePath + "?code=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("quote request: unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse quote page: %w", err)
	}
	sel := doc.Find(nowPriceSelector).First()
	if sel.Length() == 0 {
		return decimal.Zero, fmt.Errorf("no current price on quote page for %s", symbol)
	}
	raw := strings.ReplaceAll(strings.TrimSpace(sel.Text()), ",", "")
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return price, nil
}
