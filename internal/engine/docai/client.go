// Package docai talks to a Document AI processor over its REST API. The same
// client serves as the layout probe and as the OCR/table conversion engine.
package docai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/engine"
	"convertflow/internal/port"
	"convertflow/internal/render"
)

// Client implements port.LayoutProbe and port.ConversionEngine.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates a Document AI client. cfg.Endpoint is the full
// processor URL ending in ":process".
func NewClient(cfg *config.EngineConfig) *Client {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() domain.Engine {
	return domain.EngineDocAI
}

// Probe returns the table count, full text and mean page-layout confidence.
func (c *Client) Probe(ctx context.Context, pdf []byte) (*port.ProbeResult, error) {
	doc, err := c.process(ctx, pdf)
	if err != nil {
		return nil, err
	}

	res := &port.ProbeResult{FullText: doc.Text}
	var confSum float64
	var confN int
	for _, p := range doc.Pages {
		res.TableCount += len(p.Tables)
		if p.Layout.Confidence != nil {
			confSum += *p.Layout.Confidence
			confN++
		}
	}
	if confN > 0 {
		avg := confSum / float64(confN)
		res.Confidence = &avg
	}
	return res, nil
}

// Convert extracts text and tables and renders them in the requested format.
func (c *Client) Convert(ctx context.Context, input port.ConvertInput) (*port.ConvertOutput, error) {
	doc, err := c.process(ctx, input.FileBytes)
	if err != nil {
		return nil, err
	}

	tables := doc.tables()
	data, contentType, ext, err := render.Output(input.Format, tables, doc.Text)
	if err != nil {
		return nil, err
	}

	pages := len(doc.Pages)
	if pages == 0 {
		pages = input.PageCount
	}
	return &port.ConvertOutput{
		PagesProcessed: pages,
		Artifact:       data,
		ContentType:    contentType,
		Extension:      ext,
		Layouts:        render.Layouts(tables),
	}, nil
}

func (c *Client) process(ctx context.Context, pdf []byte) (*document, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("docai endpoint not configured")
	}

	reqBody := map[string]interface{}{
		"rawDocument": map[string]interface{}{
			"content":  base64.StdEncoding.EncodeToString(pdf),
			"mimeType": "application/pdf",
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling docai API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("docai API error (status %d): %s", resp.StatusCode, engine.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := engine.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, engine.NewRateLimitError("docai", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	var parsed processResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	return &parsed.Document, nil
}

// processResponse models the subset of the process response that is used.
type processResponse struct {
	Document document `json:"document"`
}

type document struct {
	Text  string `json:"text"`
	Pages []page `json:"pages"`

	runes []rune
}

type page struct {
	PageNumber int `json:"pageNumber"`
	Layout     struct {
		Confidence *float64 `json:"confidence"`
	} `json:"layout"`
	Tables []table `json:"tables"`
}

type table struct {
	HeaderRows []row `json:"headerRows"`
	BodyRows   []row `json:"bodyRows"`
}

type row struct {
	Cells []cell `json:"cells"`
}

type cell struct {
	Layout layout `json:"layout"`
}

type layout struct {
	TextAnchor struct {
		TextSegments []struct {
			StartIndex json.Number `json:"startIndex"`
			EndIndex   json.Number `json:"endIndex"`
		} `json:"textSegments"`
	} `json:"textAnchor"`
}

// text resolves a layout's anchor against the document text. Anchor
// offsets count Unicode code points, not bytes.
func (d *document) text(l layout) string {
	if d.runes == nil {
		d.runes = []rune(d.Text)
	}
	var sb strings.Builder
	for _, seg := range l.TextAnchor.TextSegments {
		start, _ := seg.StartIndex.Int64()
		end, _ := seg.EndIndex.Int64()
		if start < 0 || end > int64(len(d.runes)) || start >= end {
			continue
		}
		sb.WriteString(string(d.runes[start:end]))
	}
	return strings.TrimSpace(sb.String())
}

func (d *document) tables() []render.Table {
	var out []render.Table
	for i, p := range d.Pages {
		pageNumber := p.PageNumber
		if pageNumber == 0 {
			pageNumber = i + 1
		}
		for _, t := range p.Tables {
			rt := render.Table{PageNumber: pageNumber}
			for _, r := range append(append([]row{}, t.HeaderRows...), t.BodyRows...) {
				values := make([]string, len(r.Cells))
				for j, c := range r.Cells {
					values[j] = d.text(c.Layout)
				}
				rt.Rows = append(rt.Rows, values)
			}
			out = append(out, rt)
		}
	}
	return out
}
