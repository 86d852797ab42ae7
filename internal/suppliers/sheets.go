// Package suppliers fetches the external supplier configuration set.
package suppliers

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Valecer/market-sub000/internal"
	"github.com/Valecer/market-sub000/internal/config"
)

// SheetsProvider reads supplier configs from a Google spreadsheet, one
// supplier per row: code, name, category hint.
type SheetsProvider struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

func NewSheetsProvider(ctx context.Context, cfg config.Config) (*SheetsProvider, error) {
	if err := cfg.Require("SHEETS_CLIENT_ID", cfg.SheetsClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("SHEETS_CLIENT_SECRET", cfg.SheetsClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("SHEETS_REFRESH_TOKEN", cfg.SheetsRefreshToken); err != nil {
		return nil, err
	}
	if err := cfg.Require("SHEETS_SPREADSHEET_ID", cfg.SheetsSpreadsheet); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.SheetsClientID,
		ClientSecret: cfg.SheetsClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{sheets.SpreadsheetsReadonlyScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.SheetsRefreshToken})
	svc, err := sheets.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("build sheets service: %w", err)
	}

	return &SheetsProvider{
		service:       svc,
		spreadsheetID: cfg.SheetsSpreadsheet,
		readRange:     cfg.SheetsRange,
	}, nil
}

func (p *SheetsProvider) FetchSupplierConfigs(ctx context.Context) ([]internal.SupplierConfig, error) {
	resp, err := p.service.Spreadsheets.Values.Get(p.spreadsheetID, p.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read supplier sheet: %w", err)
	}

	out := make([]internal.SupplierConfig, 0, len(resp.Values))
	for _, row := range resp.Values {
		cfg := internal.SupplierConfig{
			Code:         cellString(row, 0),
			Name:         cellString(row, 1),
			CategoryHint: cellString(row, 2),
		}
		if cfg.Code == "" {
			continue
		}
		if cfg.Name == "" {
			cfg.Name = cfg.Code
		}
		out = append(out, cfg)
	}
	return out, nil
}

func cellString(row []interface{}, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}
