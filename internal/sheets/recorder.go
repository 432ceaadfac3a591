package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/tokenmail/tokenmail/internal/config"
	"github.com/tokenmail/tokenmail/internal/logger"
	"github.com/tokenmail/tokenmail/internal/token"
)

// Layout of the token sheet
const (
	SheetTitle  = "token"
	HeaderRange = SheetTitle + "!A1:B1"
	ValueRange  = SheetTitle + "!A2:B2"
	DateHeader  = "발행일"
	TokenHeader = "token"
)

// Recorder keeps the latest issued token in a Google spreadsheet.
type Recorder struct {
	svc           *sheets.Service
	spreadsheetID string
	log           *logger.Logger
}

// New creates a Recorder authenticated with the service account in cfg.
func New(ctx context.Context, cfg config.SheetConfig, log *logger.Logger) (*Recorder, error) {
	creds, err := normalizeCredentials(cfg.ServiceAccountJSON)
	if err != nil {
		return nil, err
	}

	jwtConfig, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to parse credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}

	return NewWithService(svc, cfg.SpreadsheetID, log), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *sheets.Service, spreadsheetID string, log *logger.Logger) *Recorder {
	return &Recorder{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		log:           log.WithComponent("sheets"),
	}
}

// Record writes the issue date and token to the second row of the token
// sheet, creating the sheet with its header row when it does not exist yet.
func (r *Recorder) Record(ctx context.Context, tok string, issuedAt time.Time) error {
	exists, err := r.hasTokenSheet(ctx)
	if err != nil {
		return err
	}

	if !exists {
		if err := r.createTokenSheet(ctx); err != nil {
			return err
		}
		r.log.Info().Str("sheet", SheetTitle).Msg("created token sheet")
	}

	if err := r.write(ctx, ValueRange, FormatIssueDate(issuedAt), tok); err != nil {
		return err
	}

	r.log.Info().Str("range", ValueRange).Msg("token recorded")
	return nil
}

func (r *Recorder) hasTokenSheet(ctx context.Context) (bool, error) {
	meta, err := r.svc.Spreadsheets.Get(r.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("sheets: failed to read spreadsheet: %w", err)
	}

	for _, s := range meta.Sheets {
		if s != nil && s.Properties != nil && s.Properties.Title == SheetTitle {
			return true, nil
		}
	}
	return false, nil
}

func (r *Recorder) createTokenSheet(ctx context.Context) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: SheetTitle},
			},
		}},
	}

	if _, err := r.svc.Spreadsheets.BatchUpdate(r.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("sheets: failed to add %s sheet: %w", SheetTitle, err)
	}

	return r.write(ctx, HeaderRange, DateHeader, TokenHeader)
}

func (r *Recorder) write(ctx context.Context, rng string, values ...interface{}) error {
	vr := &sheets.ValueRange{
		Range:          rng,
		MajorDimension: "ROWS",
		Values:         [][]interface{}{values},
	}

	_, err := r.svc.Spreadsheets.Values.Update(r.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: failed to write %s: %w", rng, err)
	}
	return nil
}

// FormatIssueDate renders t as a Japan-time calendar date, e.g. "2026. 10. 15".
func FormatIssueDate(t time.Time) string {
	d := t.In(tokyo())
	return fmt.Sprintf("%d. %d. %d", d.Year(), int(d.Month()), d.Day())
}

func tokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// normalizeCredentials restores escaped newlines in the service account private key.
func normalizeCredentials(raw string) ([]byte, error) {
	var creds map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("sheets: invalid service account JSON: %w", err)
	}

	if key, ok := creds["private_key"].(string); ok {
		creds["private_key"] = token.NormalizePEM(key)
	}

	out, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to encode credentials: %w", err)
	}
	return out, nil
}
