// Package adobe runs PDF extraction jobs against Adobe PDF Services.
package adobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/engine"
	"convertflow/internal/port"
	"convertflow/internal/render"
)

const defaultEndpoint = "https://pdf-services.adobe.io"

// Engine implements port.ConversionEngine with the extract operation. A
// conversion is one blocking call: upload, submit, poll until done, download.
type Engine struct {
	endpoint     string
	clientID     string
	clientSecret string
	pollInterval time.Duration
	client       *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewEngine creates an Adobe engine from config.
func NewEngine(cfg *config.EngineConfig) *Engine {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	poll := cfg.PollInterval()
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Engine{
		endpoint:     endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.APIKey,
		pollInterval: poll,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() domain.Engine {
	return domain.EngineAdobe
}

func (e *Engine) Convert(ctx context.Context, input port.ConvertInput) (*port.ConvertOutput, error) {
	token, err := e.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	assetID, err := e.upload(ctx, token, input.FileBytes)
	if err != nil {
		return nil, err
	}

	location, err := e.submit(ctx, token, assetID)
	if err != nil {
		return nil, err
	}

	downloadURI, err := e.poll(ctx, token, location)
	if err != nil {
		return nil, err
	}

	var data structuredData
	if err := e.getJSON(ctx, "", downloadURI, &data); err != nil {
		return nil, fmt.Errorf("downloading extract result: %w", err)
	}

	tables := data.tables()
	artifact, contentType, ext, err := render.Output(input.Format, tables, data.text())
	if err != nil {
		return nil, err
	}

	pages := len(data.Pages)
	if pages == 0 {
		pages = input.PageCount
	}
	return &port.ConvertOutput{
		PagesProcessed: pages,
		Artifact:       artifact,
		ContentType:    contentType,
		Extension:      ext,
		Layouts:        render.Layouts(tables),
	}, nil
}

func (e *Engine) accessToken(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.token != "" && time.Now().Before(e.tokenExp) {
		return e.token, nil
	}

	form := url.Values{"client_id": {e.clientID}, "client_secret": {e.clientSecret}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := e.do(req, http.StatusOK, &tok); err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}
	e.token = tok.AccessToken
	// Refresh a minute early.
	e.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return e.token, nil
}

func (e *Engine) upload(ctx context.Context, token string, pdf []byte) (string, error) {
	body, _ := json.Marshal(map[string]string{"mediaType": "application/pdf"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/assets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating asset request: %w", err)
	}
	e.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	var asset struct {
		UploadURI string `json:"uploadUri"`
		AssetID   string `json:"assetID"`
	}
	if err := e.do(req, http.StatusOK, &asset); err != nil {
		return "", fmt.Errorf("creating asset: %w", err)
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, asset.UploadURI, bytes.NewReader(pdf))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	put.Header.Set("Content-Type", "application/pdf")
	if err := e.do(put, http.StatusOK, nil); err != nil {
		return "", fmt.Errorf("uploading asset: %w", err)
	}
	return asset.AssetID, nil
}

func (e *Engine) submit(ctx context.Context, token, assetID string) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"assetID":           assetID,
		"elementsToExtract": []string{"text", "tables"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/operation/extractpdf", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating extract request: %w", err)
	}
	e.authorize(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting extract job: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		return "", statusError(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("extract job accepted without a location header")
	}
	return location, nil
}

// poll checks the job status on a fixed interval until it finishes or ctx ends.
func (e *Engine) poll(ctx context.Context, token, location string) (string, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		var status struct {
			Status  string `json:"status"`
			Content struct {
				DownloadURI string `json:"downloadUri"`
			} `json:"content"`
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := e.getJSON(ctx, token, location, &status); err != nil {
			return "", fmt.Errorf("polling extract job: %w", err)
		}

		switch status.Status {
		case "done":
			if status.Content.DownloadURI == "" {
				return "", fmt.Errorf("extract job finished without a result")
			}
			return status.Content.DownloadURI, nil
		case "failed":
			return "", fmt.Errorf("extract job failed: %s %s", status.Error.Code, status.Error.Message)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) getJSON(ctx context.Context, token, uri string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, http.NoBody)
	if err != nil {
		return err
	}
	if token != "" {
		e.authorize(req, token)
	}
	return e.do(req, http.StatusOK, dst)
}

func (e *Engine) authorize(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-api-key", e.clientID)
}

func (e *Engine) do(req *http.Request, want int, dst interface{}) error {
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		return statusError(resp)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	baseErr := fmt.Errorf("adobe API error (status %d): %s", resp.StatusCode, engine.Truncate(string(body), 500))
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := engine.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
		return engine.NewRateLimitError("adobe", baseErr, retryAfter)
	}
	return baseErr
}

// structuredData models the extract result's structuredData.json.
type structuredData struct {
	Pages    []json.RawMessage `json:"pages"`
	Elements []element         `json:"elements"`
}

type element struct {
	Path string `json:"Path"`
	Text string `json:"Text"`
	Page int    `json:"Page"`
}

var cellPath = regexp.MustCompile(`^(.*?/Table(?:\[\d+\])?)/TR(?:\[(\d+)\])?/T[DH](?:\[(\d+)\])?`)

func (d *structuredData) text() string {
	var lines []string
	for _, el := range d.Elements {
		if el.Text == "" || cellPath.MatchString(el.Path) {
			continue
		}
		lines = append(lines, strings.TrimSpace(el.Text))
	}
	return strings.Join(lines, "\n")
}

func (d *structuredData) tables() []render.Table {
	type cellKey struct{ row, col int }
	type pending struct {
		page  int
		cells map[cellKey]string
		maxR  int
		maxC  int
	}
	byPrefix := map[string]*pending{}
	var order []string

	for _, el := range d.Elements {
		m := cellPath.FindStringSubmatch(el.Path)
		if m == nil {
			continue
		}
		prefix := m[1]
		p, ok := byPrefix[prefix]
		if !ok {
			p = &pending{page: el.Page + 1, cells: map[cellKey]string{}}
			byPrefix[prefix] = p
			order = append(order, prefix)
		}
		r, c := pathIndex(m[2]), pathIndex(m[3])
		k := cellKey{r, c}
		p.cells[k] = strings.TrimSpace(p.cells[k] + " " + el.Text)
		if r > p.maxR {
			p.maxR = r
		}
		if c > p.maxC {
			p.maxC = c
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return byPrefix[order[i]].page < byPrefix[order[j]].page })

	out := make([]render.Table, 0, len(order))
	for _, prefix := range order {
		p := byPrefix[prefix]
		t := render.Table{PageNumber: p.page}
		for r := 1; r <= p.maxR; r++ {
			row := make([]string, p.maxC)
			for c := 1; c <= p.maxC; c++ {
				row[c-1] = p.cells[cellKey{r, c}]
			}
			t.Rows = append(t.Rows, row)
		}
		out = append(out, t)
	}
	return out
}

// pathIndex parses a 1-based structure path index; an absent index is 1.
func pathIndex(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
