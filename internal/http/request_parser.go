// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request
// data: form or JSON bodies, pagination and chart parameters.

package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// maxBodyBytes bounds request bodies, backups included.
const maxBodyBytes = 10 << 20

// PageParams holds the requested page number and size.
type PageParams struct {
	Page int
	Size int
}

// ParsePageParams reads page and size from the query. Missing values take
// page 1 and defaultSize; malformed values are an error.
func ParsePageParams(query url.Values, defaultSize int) (PageParams, error) {
	params := PageParams{Page: 1, Size: defaultSize}

	if v := strings.TrimSpace(query.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return PageParams{}, fmt.Errorf("invalid page %q", v)
		}
		params.Page = n
	}
	if v := strings.TrimSpace(query.Get("size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return PageParams{}, fmt.Errorf("invalid page size %q", v)
		}
		params.Size = n
	}
	return params, nil
}

// ParseIntParam reads a positive integer query value, falling back to def
// when the key is absent.
func ParseIntParam(query url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// Input collects the transaction form fields.
func (p *RequestBodyParser) Input() core.Input {
	return core.Input{
		Title:         p.Get("title"),
		Amount:        p.Get("amount"),
		Type:          p.Get("type"),
		Category:      p.Get("category"),
		Date:          p.Get("date"),
		PaymentMethod: p.Get("paymentMethod"),
	}
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// readUpload returns an uploaded document: the "file" part of a multipart
// form, or the raw body otherwise.
func readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("invalid upload: %w", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field")
		}
		defer f.Close()
		return readNonEmpty(f)
	}
	return readNonEmpty(r.Body)
}

func readNonEmpty(rd io.Reader) ([]byte, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty upload")
	}
	return data, nil
}
