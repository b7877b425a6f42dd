package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var ErrSheetNotFound = errors.New("spreadsheet not found")

// SheetPublisher replaces the contents of a named spreadsheet with a CSV file
// and returns the spreadsheet's url.
type SheetPublisher interface {
	Import(ctx context.Context, name, csvPath string) (string, error)
}

// DriveSheet imports CSV data into an existing Google Sheet through the Drive
// api. The sheet must already exist and be shared with the service account.
type DriveSheet struct {
	svc *drive.Service
}

var _ SheetPublisher = (*DriveSheet)(nil)

func NewDriveSheet(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*DriveSheet, error) {
	all := append([]option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope),
	}, opts...)

	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("error creating drive client: %w", err)
	}
	return NewDriveSheetWithService(svc), nil
}

func NewDriveSheetWithService(svc *drive.Service) *DriveSheet {
	return &DriveSheet{svc: svc}
}

func sheetQuery(name string) string {
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escaped, spreadsheetMimeType)
}

func (d *DriveSheet) find(ctx context.Context, name string) (*drive.File, error) {
	list, err := d.svc.Files.List().
		Q(sheetQuery(name)).
		Fields("files(id, name, webViewLink)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("error searching for spreadsheet %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return list.Files[0], nil
}

func (d *DriveSheet) Import(ctx context.Context, name, csvPath string) (string, error) {
	sheet, err := d.find(ctx, name)
	if err != nil {
		return "", err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return "", fmt.Errorf("error opening %s: %w", csvPath, err)
	}
	defer f.Close()

	updated, err := d.svc.Files.Update(sheet.Id, &drive.File{}).
		Media(f, googleapi.ContentType("text/csv")).
		SupportsAllDrives(true).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("error importing csv into spreadsheet %q: %w", name, err)
	}

	slog.Info("imported csv into spreadsheet", "name", name, "id", updated.Id)

	if updated.WebViewLink != "" {
		return updated.WebViewLink, nil
	}
	return "https://docs.google.com/spreadsheets/d/" + updated.Id, nil
}
