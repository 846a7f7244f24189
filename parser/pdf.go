package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"docfill/types"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

type DoclingResponse struct {
	Document struct {
		MdContent string `json:"md_content"`
	} `json:"document"`
}

// PDFConverter converts an uploaded PDF template into plain text. The PDF
// is validated locally with pdfcpu, then sent to a docling-compatible
// converter service for text extraction.
type PDFConverter struct {
	convertURL string
}

func NewPDFConverter(convertURL string) *PDFConverter {
	return &PDFConverter{convertURL: convertURL}
}

// Convert returns the template text for the given PDF bytes, or a
// ParseError when the bytes are not a readable PDF.
func (c *PDFConverter) Convert(data []byte, filename string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "docfill-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmp.Close()

	// Проверяем, что это действительно читаемый PDF
	if err := api.ValidateFile(tmp.Name(), nil); err != nil {
		return nil, &types.ParseError{Reason: "corrupt PDF", Err: err}
	}

	md, err := c.convertToMD(tmp.Name(), filename)
	if err != nil {
		return nil, &types.ParseError{Reason: "PDF conversion failed", Err: err}
	}
	if md == "" {
		return nil, &types.ParseError{Reason: "PDF contains no extractable text"}
	}
	return []byte(md), nil
}

func (c *PDFConverter) convertToMD(filePath, filename string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", filepath.Base(filename))
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(part, file); err != nil {
		return "", err
	}
	writer.Close()

	req, err := http.NewRequest("POST", c.convertURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var d DoclingResponse
	if err = json.Unmarshal(body, &d); err != nil {
		return "", err
	}

	return d.Document.MdContent, nil
}
