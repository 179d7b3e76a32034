package api

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/extractor"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
	"github.com/insightdelivered/statement-ledger/internal/service"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

// ExtractResponse is the JSON response from the /api/extract endpoint.
type ExtractResponse struct {
	Success      bool                      `json:"success"`
	Error        string                    `json:"error,omitempty"`
	ID           string                    `json:"id,omitempty"`
	Bank         string                    `json:"bank,omitempty"`
	BankName     string                    `json:"bankName,omitempty"`
	Source       string                    `json:"source,omitempty"`
	Pages        int                       `json:"pages,omitempty"`
	Period       string                    `json:"period,omitempty"`
	Status       models.ResultStatus       `json:"status,omitempty"`
	Persistable  bool                      `json:"persistable"`
	FallbackUsed bool                      `json:"fallbackUsed"`
	Verdict      *models.ValidationVerdict `json:"verdict,omitempty"`
	Movements    []models.MovementRecord   `json:"movements"`
	TotalCargos  decimal.Decimal           `json:"totalCargos"`
	TotalAbonos  decimal.Decimal           `json:"totalAbonos"`
	Count        int                       `json:"count"`
	CSV          string                    `json:"csv,omitempty"`
	RawText      string                    `json:"rawText,omitempty"`
	DebugLines   []models.DebugLine        `json:"debugLines,omitempty"`
}

// ValidateResponse is the JSON response from the /api/validate endpoint.
type ValidateResponse struct {
	Success bool                      `json:"success"`
	Error   string                    `json:"error,omitempty"`
	Verdict *models.ValidationVerdict `json:"verdict,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Importer *service.Importer
	Version  string
	Logger   zerolog.Logger
}

// NewApp builds the fiber application with middleware and routes.
func NewApp(h *Handler, bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statement-ledger",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(Recovery(h.Logger))
	app.Use(RequestID())
	app.Use(Logger(h.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,X-Request-ID",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.HandleHealth)
	app.Post("/api/extract", h.HandleExtract)
	app.Post("/api/validate", h.HandleValidate)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// HandleHealth reports liveness and the build version.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

// HandleExtract accepts a statement as the multipart field "file" (PDF,
// XLSX or TXT) or as plain text in "text", together with the expected rfc,
// year and month. The optional "bank" selects the institution profile and
// "format" switches the response to csv or ofx.
func (h *Handler) HandleExtract(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}
	format := strings.ToLower(c.FormValue("format", "json"))
	if format != "json" && format != "csv" && format != "ofx" {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Unknown format %q. Use json, csv or ofx.", format))
	}

	ctx := c.UserContext()
	var imp *service.Import
	if fh, ferr := c.FormFile("file"); ferr == nil {
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "Failed to read uploaded file.")
		}
		defer f.Close()
		imp, err = h.Importer.ImportFile(ctx, fh.Filename, f, req)
		if err != nil {
			return writeError(c, statusFor(err), err.Error())
		}
	} else if text := c.FormValue("text"); strings.TrimSpace(text) != "" {
		imp, err = h.Importer.ImportText(ctx, text, req)
		if err != nil {
			return writeError(c, statusFor(err), err.Error())
		}
	} else {
		return writeError(c, fiber.StatusBadRequest, "No statement uploaded. Use form field 'file' or 'text'.")
	}

	res := imp.Result
	switch format {
	case "csv":
		var buf bytes.Buffer
		w := &writer.CSVWriter{IncludeHeader: c.FormValue("header") != "false"}
		if err := w.Write(&buf, res); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
		}
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="movimientos-%s.csv"`, res.Period))
		c.Type("csv", "utf-8")
		return c.Send(buf.Bytes())
	case "ofx":
		var buf bytes.Buffer
		w := &writer.OFXWriter{AccountID: c.FormValue("account")}
		if err := w.Write(&buf, res); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("OFX generation failed: %v", err))
		}
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="movimientos-%s.ofx"`, res.Period))
		c.Set(fiber.HeaderContentType, "application/x-ofx")
		return c.Send(buf.Bytes())
	}

	var csvBuf bytes.Buffer
	if err := (&writer.CSVWriter{}).Write(&csvBuf, res); err != nil {
		return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
	}

	abonos, cargos := models.Totals(res.Movements)
	verdict := res.Verdict
	resp := ExtractResponse{
		Success:      true,
		ID:           imp.ID,
		Bank:         string(res.Bank),
		BankName:     parser.BankName(res.Bank),
		Source:       imp.Source,
		Pages:        imp.Pages,
		Period:       res.Period.String(),
		Status:       res.Status,
		Persistable:  res.Persistable(),
		FallbackUsed: res.FallbackUsed,
		Verdict:      &verdict,
		Movements:    res.Movements,
		TotalCargos:  cargos,
		TotalAbonos:  abonos,
		Count:        len(res.Movements),
		CSV:          csvBuf.String(),
		DebugLines:   res.DebugLines,
	}
	if req.Debug {
		resp.RawText = imp.Text
	}
	return c.JSON(resp)
}

// HandleValidate checks statement text against the expected taxpayer and
// period without extracting movements.
func (h *Handler) HandleValidate(c *fiber.Ctx) error {
	req, err := parseRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ValidateResponse{Error: err.Error()})
	}
	verdict, err := h.Importer.Validate(c.FormValue("text"), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(ValidateResponse{Error: err.Error()})
	}
	return c.JSON(ValidateResponse{Success: true, Verdict: &verdict})
}

func parseRequest(c *fiber.Ctx) (service.Request, error) {
	req := service.Request{
		ID:   requestID(c),
		RFC:  strings.TrimSpace(c.FormValue("rfc")),
		Bank: c.FormValue("bank"),
	}

	var err error
	if req.Year, err = formInt(c, "year"); err != nil {
		return req, err
	}
	if req.Month, err = formInt(c, "month"); err != nil {
		return req, err
	}
	if v := c.FormValue("debug"); v != "" {
		if req.Debug, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("debug must be true or false, got %q", v)
		}
	}
	return req, nil
}

func formInt(c *fiber.Ctx, key string) (int, error) {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return 0, fmt.Errorf("missing form field %q", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return n, nil
}

// statusFor maps import errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, parser.ErrEmptyText),
		errors.Is(err, parser.ErrInvalidPeriod),
		errors.Is(err, parser.ErrUnknownInstitution),
		errors.Is(err, service.ErrUnsupportedFormat):
		return fiber.StatusBadRequest
	case errors.Is(err, extractor.ErrNoReadableText),
		errors.Is(err, extractor.ErrEmptySpreadsheet):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, extractor.ErrOCRUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return writeError(c, code, err.Error())
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ExtractResponse{
		Success: false,
		Error:   msg,
	})
}
