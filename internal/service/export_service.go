package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/levelup-edu/levelup-api/internal/dto"
	"github.com/levelup-edu/levelup-api/internal/models"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
	"github.com/levelup-edu/levelup-api/pkg/export"
)

type courseLedgerSource interface {
	CourseLedger(ctx context.Context, claims *models.JWTClaims, courseID int64) (*dto.CourseLedger, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders reports into downloadable files.
type ExportService struct {
	ledger courseLedgerSource
	csv    datasetRenderer
	pdf    datasetRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(ledger courseLedgerSource, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		ledger: ledger,
		csv:    csv,
		pdf:    pdf,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ExportCourseLedger renders the course ledger in the requested format.
func (s *ExportService) ExportCourseLedger(ctx context.Context, claims *models.JWTClaims, courseID int64, format export.Format) (*ExportFile, error) {
	var renderer datasetRenderer
	switch format {
	case export.FormatCSV:
		renderer = s.csv
	case export.FormatPDF:
		renderer = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	ledger, err := s.ledger.CourseLedger(ctx, claims, courseID)
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(ledgerDataset(ledger))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Info("course ledger exported",
		zap.Int64("course_id", courseID),
		zap.String("format", string(format)),
		zap.Int("rows", len(ledger.Entries)),
	)
	return &ExportFile{
		Filename:    s.filename(ledger.Course, format),
		ContentType: format.ContentType(),
		Content:     payload,
	}, nil
}

func ledgerDataset(ledger *dto.CourseLedger) export.Dataset {
	rows := make([][]string, 0, len(ledger.Entries))
	for _, entry := range ledger.Entries {
		rows = append(rows, []string{
			entry.StudentEmail,
			entry.StudentName,
			strconv.Itoa(entry.Earned),
			strconv.Itoa(entry.Spent),
			strconv.Itoa(entry.Balance),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s (%s) points ledger", ledger.Course.Title, ledger.Course.CourseCode),
		Headers: []string{"Student Email", "Student Name", "Earned", "Spent", "Balance"},
		Rows:    rows,
	}
}

func (s *ExportService) filename(course models.Course, format export.Format) string {
	return fmt.Sprintf("ledger_%s_%s.%s", sanitizeFilename(course.CourseCode), s.now().Format("20060102_150405"), format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
