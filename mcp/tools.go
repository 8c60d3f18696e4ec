package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sirupsen/logrus"

	"github.com/lvillar/pdfreader-mcp/reader"
)

// Tool names.
const (
	ExtractTextTool     = "extract_pdf_text"
	ExtractMetadataTool = "extract_pdf_metadata"
)

// isoMillis renders timestamps the way JavaScript's toISOString does.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// ToolDescriptor advertises a tool to clients.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

func filePathSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"filePath": {
				Type:        "string",
				Description: description,
			},
		},
		Required: []string{"filePath"},
	}
}

func extractTextDescriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        ExtractTextTool,
		Description: "Extract text content from a PDF file",
		InputSchema: filePathSchema("Path to the PDF file to extract text from"),
	}
}

func extractMetadataDescriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        ExtractMetadataTool,
		Description: "Extract metadata information from a PDF file",
		InputSchema: filePathSchema("Path to the PDF file to extract metadata from"),
	}
}

// Extractor runs the extraction pipeline shared by both tools: validate
// arguments, resolve the path, read the file, parse it.
type Extractor struct {
	policy PathPolicy
	fs     FileSystem
	now    func() time.Time
	log    logrus.FieldLogger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithFileSystem replaces the operating system filesystem.
func WithFileSystem(fsys FileSystem) ExtractorOption {
	return func(e *Extractor) { e.fs = fsys }
}

// WithClock sets the clock used to stamp extractedAt.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger. Logs go to stderr by default.
func WithLogger(log logrus.FieldLogger) ExtractorOption {
	return func(e *Extractor) { e.log = log }
}

// NewExtractor returns an Extractor reading files admitted by policy.
func NewExtractor(policy PathPolicy, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		policy: policy,
		fs:     osFileSystem{},
		now:    time.Now,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// load validates args and returns the parsed document with the caller's
// file path. op names the operation in parser failure messages.
func (e *Extractor) load(ctx context.Context, raw json.RawMessage, op string) (*reader.Document, string, error) {
	args, err := validateArgs(raw)
	if err != nil {
		return nil, "", err
	}

	path, err := e.policy.Resolve(args.FilePath)
	if err != nil {
		return nil, args.FilePath, err
	}

	f, err := openFile(e.fs, path, args.FilePath)
	if err != nil {
		return nil, args.FilePath, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, args.FilePath, fmt.Errorf("reading %s: %w", args.FilePath, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, args.FilePath, err
	}

	doc, err := reader.Parse(data)
	if err != nil {
		return nil, args.FilePath, internalError(err, "Failed to extract %s from PDF", op)
	}
	e.log.WithFields(logrus.Fields{
		"file":  path,
		"bytes": len(data),
		"pages": doc.NumPages(),
	}).Debug("parsed PDF")
	return doc, args.FilePath, nil
}

type textResult struct {
	Success     bool   `json:"success"`
	FilePath    string `json:"filePath"`
	Text        string `json:"text"`
	PageCount   int    `json:"pageCount"`
	ExtractedAt string `json:"extractedAt"`
}

// ExtractText implements extract_pdf_text.
func (e *Extractor) ExtractText(ctx context.Context, raw json.RawMessage) (string, error) {
	doc, filePath, err := e.load(ctx, raw, "text")
	if err != nil {
		return "", err
	}

	text, err := doc.Text()
	if err != nil {
		return "", internalError(err, "Failed to extract text from PDF")
	}

	return marshalResult(textResult{
		Success:     true,
		FilePath:    filePath,
		Text:        text,
		PageCount:   doc.NumPages(),
		ExtractedAt: e.timestamp(),
	})
}

type metadataResult struct {
	Success     bool        `json:"success"`
	FilePath    string      `json:"filePath"`
	Metadata    pdfMetadata `json:"metadata"`
	ExtractedAt string      `json:"extractedAt"`
}

// pdfMetadata is the metadata record. Optional fields are pointers so that
// absent values serialize as null rather than disappearing.
type pdfMetadata struct {
	PageCount        int     `json:"pageCount"`
	PDFVersion       string  `json:"pdfVersion"`
	HasAcroForm      bool    `json:"hasAcroForm"`
	HasXFA           bool    `json:"hasXFA"`
	Title            *string `json:"title"`
	Author           *string `json:"author"`
	Subject          *string `json:"subject"`
	Keywords         *string `json:"keywords"`
	Creator          *string `json:"creator"`
	Producer         *string `json:"producer"`
	CreationDate     *string `json:"creationDate"`
	ModificationDate *string `json:"modificationDate"`
}

// ExtractMetadata implements extract_pdf_metadata.
func (e *Extractor) ExtractMetadata(ctx context.Context, raw json.RawMessage) (string, error) {
	doc, filePath, err := e.load(ctx, raw, "metadata")
	if err != nil {
		return "", err
	}

	info := doc.Info()
	return marshalResult(metadataResult{
		Success:  true,
		FilePath: filePath,
		Metadata: pdfMetadata{
			PageCount:        doc.NumPages(),
			PDFVersion:       doc.Version,
			HasAcroForm:      info.HasAcroForm,
			HasXFA:           info.HasXFA,
			Title:            optional(info.Title),
			Author:           optional(info.Author),
			Subject:          optional(info.Subject),
			Keywords:         optional(info.Keywords),
			Creator:          optional(info.Creator),
			Producer:         optional(info.Producer),
			CreationDate:     isoDate(info.CreationDate),
			ModificationDate: isoDate(info.ModDate),
		},
		ExtractedAt: e.timestamp(),
	})
}

func (e *Extractor) timestamp() string {
	return e.now().UTC().Format(isoMillis)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isoDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(isoMillis)
	return &s
}

func marshalResult(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", internalError(err, "encoding result")
	}
	return string(out), nil
}
