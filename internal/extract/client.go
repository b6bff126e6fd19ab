// Package extract talks to the external table-extraction service. The
// service parses bank-statement PDFs and answers with raw transaction
// candidates; nothing in this repository reads PDF bytes itself.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 2 * time.Minute

// Client posts documents to the extraction service.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
}

// ParseDocument uploads the PDF as multipart form data and returns the
// extracted statement. Extraction is slow (table detection over every
// page), so callers usually run it from a background job.
func (c *Client) ParseDocument(ctx context.Context, filename string, pdf []byte) (*Statement, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("ParseDocument: create form file: %w", err)
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, fmt.Errorf("ParseDocument: write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ParseDocument: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/parse-pdf", &body)
	if err != nil {
		return nil, fmt.Errorf("ParseDocument: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ParseDocument: post document: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ParseDocument: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("ParseDocument: service returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("ParseDocument: service returned %d", resp.StatusCode)
	}

	var stmt Statement
	if err := json.Unmarshal(respBody, &stmt); err != nil {
		return nil, fmt.Errorf("ParseDocument: unmarshal response: %w", err)
	}

	c.log.Info().
		Str("bank", stmt.BankName).
		Str("statement_month", stmt.StatementMonth).
		Int("candidates", len(stmt.Transactions)).
		Int("tables", stmt.ParsingRules.TablesFound).
		Msg("Document extracted")
	return &stmt, nil
}
