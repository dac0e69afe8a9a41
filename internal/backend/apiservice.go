package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/MabzGamesStudio/StorageLogger/internal/backend/backup"
	"github.com/MabzGamesStudio/StorageLogger/internal/core"
	"github.com/MabzGamesStudio/StorageLogger/internal/models"
)

const mimeJPEG = "image/jpeg"

// buyDateLayouts are tried in order when parsing the buyDate form field.
var buyDateLayouts = []string{time.RFC3339, time.DateOnly, models.DisplayDateLayout}

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

// entryForm is the multipart form accepted by create and update. Numbers arrive as
// text; unparsable numbers are treated as absent.
type entryForm struct {
	ID          string `form:"id" validate:"omitempty,max=64,excludesall=/"`
	Name        string `form:"name" validate:"max=256"`
	Price       string `form:"price" validate:"max=64"`
	Quantity    string `form:"quantity" validate:"max=64"`
	Description string `form:"description" validate:"max=4096"`
	Notes       string `form:"notes" validate:"max=4096"`
	Tags        string `form:"tags" validate:"max=1024"`
	BuyDate     string `form:"buyDate" validate:"max=64"`
}

type entryResponse struct {
	models.Entry
	BuyDateDisplay string `json:"buyDateDisplay,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

type saveResponse struct {
	Entry  entryResponse `json:"entry"`
	ShowAd bool          `json:"showAd"`
}

type importResponse struct {
	Mode          backup.Mode `json:"mode"`
	Imported      int         `json:"imported"`
	Skipped       int         `json:"skipped"`
	InvalidImages int         `json:"invalidImages"`
	Total         int         `json:"total"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(c echo.Context) error {
		return c.String(http.StatusOK, "API Service is running")
	})

	api := e.Group("/api")
	api.GET("/entries", s.listEntriesHandler)
	api.POST("/entries", s.createEntryHandler)
	api.GET("/entries/:id", s.getEntryHandler)
	api.PUT("/entries/:id", s.updateEntryHandler)
	api.DELETE("/entries/:id", s.deleteEntryHandler)
	api.GET("/entries/:id/image", s.entryImageHandler)

	api.GET("/export", s.exportHandler)
	api.POST("/import", s.importHandler)
}

func (s *APIService) listEntriesHandler(ctx echo.Context) error {
	entries := s.coreService.ListEntries(ctx.QueryParam("q"))
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return ctx.JSON(http.StatusOK, out)
}

func (s *APIService) getEntryHandler(ctx echo.Context) error {
	entry, err := s.coreService.GetEntry(ctx.Param("id"))
	if err != nil {
		return s.httpError("getEntryHandler", err)
	}
	return ctx.JSON(http.StatusOK, toEntryResponse(entry))
}

func (s *APIService) createEntryHandler(ctx echo.Context) error {
	entry, image, err := s.readEntryForm(ctx)
	if err != nil {
		return err
	}
	result, err := s.coreService.AddEntry(ctx.Request().Context(), entry, image)
	if err != nil {
		return s.httpError("createEntryHandler", err)
	}
	return ctx.JSON(http.StatusCreated, saveResponse{Entry: toEntryResponse(result.Entry), ShowAd: result.ShowAd})
}

func (s *APIService) updateEntryHandler(ctx echo.Context) error {
	entry, image, err := s.readEntryForm(ctx)
	if err != nil {
		return err
	}
	result, err := s.coreService.UpdateEntry(ctx.Request().Context(), ctx.Param("id"), entry, image)
	if err != nil {
		return s.httpError("updateEntryHandler", err)
	}
	return ctx.JSON(http.StatusOK, saveResponse{Entry: toEntryResponse(result.Entry), ShowAd: result.ShowAd})
}

func (s *APIService) deleteEntryHandler(ctx echo.Context) error {
	if err := s.coreService.DeleteEntry(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return s.httpError("deleteEntryHandler", err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *APIService) entryImageHandler(ctx echo.Context) error {
	image, err := s.coreService.EntryImage(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return s.httpError("entryImageHandler", err)
	}
	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.Blob(http.StatusOK, mimeJPEG, image)
}

func (s *APIService) exportHandler(ctx echo.Context) error {
	artifact, err := s.coreService.Export(ctx.Request().Context())
	if err != nil {
		return s.httpError("exportHandler", err)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", s.coreService.ExportFilename()))
	return ctx.Blob(http.StatusOK, echo.MIMEOctetStream, artifact)
}

func (s *APIService) importHandler(ctx echo.Context) error {
	mode, err := backup.ParseMode(ctx.QueryParam("mode"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		slog.Warn("importHandler: missing backup file", "status", http.StatusBadRequest, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "missing backup file")
	}
	artifact, err := readFormFile(file)
	if err != nil {
		slog.Error("importHandler: failed to read backup file",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read backup file")
	}

	result, err := s.coreService.Import(ctx.Request().Context(), artifact, mode)
	if err != nil {
		return s.httpError("importHandler", err)
	}
	return ctx.JSON(http.StatusOK, importResponse{
		Mode:          result.Mode,
		Imported:      result.Imported,
		Skipped:       result.Skipped,
		InvalidImages: result.InvalidImages,
		Total:         result.Total,
	})
}

// readEntryForm binds and validates the entry fields and reads the optional "image" file.
func (s *APIService) readEntryForm(ctx echo.Context) (models.Entry, []byte, error) {
	var form entryForm
	if err := ctx.Bind(&form); err != nil {
		return models.Entry{}, nil, err
	}
	if err := ctx.Validate(&form); err != nil {
		return models.Entry{}, nil, err
	}

	entry := models.Entry{
		ID:          strings.TrimSpace(form.ID),
		Name:        models.NormalizeString(&form.Name),
		Description: models.NormalizeString(&form.Description),
		Notes:       models.NormalizeString(&form.Notes),
		Tags:        models.NormalizeString(&form.Tags),
		Price:       parseOptionalFloat(form.Price),
		Quantity:    parseOptionalInt(form.Quantity),
	}
	buyDate, err := parseOptionalDate(form.BuyDate)
	if err != nil {
		return models.Entry{}, nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	entry.BuyDate = buyDate

	file, err := ctx.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return entry, nil, nil
	}
	if err != nil {
		return models.Entry{}, nil, echo.NewHTTPError(http.StatusBadRequest, "failed to get uploaded image")
	}
	image, err := readFormFile(file)
	if err != nil {
		slog.Error("readEntryForm: failed to read uploaded image",
			"status", http.StatusInternalServerError, "error", err, "filename", file.Filename)
		return models.Entry{}, nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded image")
	}
	return entry, image, nil
}

// httpError maps core errors to status codes and logs server-side failures.
func (s *APIService) httpError(handler string, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyExists), errors.Is(err, core.ErrOperationInProgress):
		status = http.StatusConflict
	case errors.Is(err, backup.ErrCorruptArtifact):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		slog.Error(handler+": request failed", "status", status, "error", err)
		return echo.NewHTTPError(status, "internal error")
	}
	slog.Warn(handler+": request rejected", "status", status, "error", err)
	return echo.NewHTTPError(status, err.Error())
}

func toEntryResponse(e models.Entry) entryResponse {
	out := entryResponse{Entry: e, BuyDateDisplay: e.FormatBuyDate()}
	if e.HasImage() {
		out.ImageURL = "/api/entries/" + e.ID + "/image"
	}
	return out
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()
	return io.ReadAll(src)
}

func parseOptionalFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return models.NormalizePrice(&v)
}

func parseOptionalInt(s string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range buyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid buyDate %q", s)
}
