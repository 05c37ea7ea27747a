// Package receipt turns receipt images into suggested transaction fields
// using a generative model. Results are a best-effort guess.
package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

// DefaultMaxBytes is the largest image accepted for scanning.
const DefaultMaxBytes = 5 << 20

// Generator runs a multimodal prompt over one image and returns the model's
// text answer.
type Generator interface {
	Generate(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

type Extractor struct {
	gen      Generator
	maxBytes int64
}

func NewExtractor(gen Generator, maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{gen: gen, maxBytes: maxBytes}
}

var prompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Date (in ISO format)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: ` + strings.Join(core.ReceiptCategories, ",") + `)

Only respond with valid JSON in this exact format:
{
  "amount": number,
  "date": "ISO date string",
  "description": "string",
  "merchantName": "string",
  "category": "string"
}

If it is not a receipt, return an empty object.`

// Extract returns the fields guessed from image. An empty Receipt means the
// model did not recognise a receipt. Malformed model output yields
// core.ErrExtractionFormat.
func (e *Extractor) Extract(ctx context.Context, image []byte, mimeType string) (core.Receipt, error) {
	if len(image) == 0 {
		return core.Receipt{}, fmt.Errorf("%w: empty image", core.ErrUnsupportedMedia)
	}
	if int64(len(image)) > e.maxBytes {
		return core.Receipt{}, fmt.Errorf("%w: %d bytes exceeds %d", core.ErrReceiptTooLarge, len(image), e.maxBytes)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return core.Receipt{}, fmt.Errorf("%w: %s", core.ErrUnsupportedMedia, mimeType)
	}

	start := time.Now()
	text, err := e.gen.Generate(ctx, image, mimeType, prompt)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("scan receipt: %w", err)
	}

	r, err := parseReceipt(text)
	if err != nil {
		slog.WarnContext(ctx, "Unparseable receipt extraction", "error", err, "response_len", len(text))
		return core.Receipt{}, err
	}

	slog.InfoContext(ctx, "Receipt scanned",
		"bytes", len(image),
		"mime_type", mimeType,
		"recognised", !r.IsEmpty(),
		"duration_ms", time.Since(start).Milliseconds())
	return r, nil
}

var fence = regexp.MustCompile("```(?:json)?\\n?")

type rawReceipt struct {
	Amount       json.RawMessage `json:"amount"`
	Date         string          `json:"date"`
	Description  string          `json:"description"`
	MerchantName string          `json:"merchantName"`
	Category     string          `json:"category"`
}

func parseReceipt(text string) (core.Receipt, error) {
	clean := strings.TrimSpace(fence.ReplaceAllString(text, ""))
	if clean == "" {
		return core.Receipt{}, fmt.Errorf("%w: empty response", core.ErrExtractionFormat)
	}

	var raw rawReceipt
	dec := json.NewDecoder(strings.NewReader(clean))
	if err := dec.Decode(&raw); err != nil {
		return core.Receipt{}, fmt.Errorf("%w: %v", core.ErrExtractionFormat, err)
	}

	var r core.Receipt
	amount, err := parseRawAmount(raw.Amount)
	if err != nil {
		return core.Receipt{}, err
	}
	r.Amount = amount

	if raw.Date != "" {
		d, err := parseReceiptDate(raw.Date)
		if err != nil {
			return core.Receipt{}, err
		}
		r.Date = d
	}

	r.Description = strings.TrimSpace(raw.Description)
	r.MerchantName = strings.TrimSpace(raw.MerchantName)
	if c := strings.TrimSpace(raw.Category); c != "" {
		r.Category = core.NormalizeReceiptCategory(strings.ToLower(c))
	}
	return r, nil
}

// parseRawAmount accepts a JSON number or a numeric string. A missing or
// null amount is zero.
func parseRawAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, fmt.Errorf("%w: amount: %v", core.ErrExtractionFormat, err)
		}
		text = strings.TrimSpace(strings.TrimLeft(text, "$€£ "))
		if text == "" {
			return decimal.Zero, nil
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return decimal.Zero, fmt.Errorf("%w: amount: %v", core.ErrExtractionFormat, err)
		}
		text = n.String()
	}

	d, err := core.ParseAmount(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q", core.ErrExtractionFormat, text)
	}
	return d, nil
}

func parseReceiptDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if d, err := core.ParseDate(s); err == nil {
		return d, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: date %q", core.ErrExtractionFormat, s)
}
