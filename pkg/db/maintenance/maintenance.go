package maintenance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/db"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

const catalogueStateKey = "catalogue_csv_mtime"

// Options tunes one maintenance run. Zero retention values disable the matching prune.
type Options struct {
	CataloguePath string
	CacheMaxAge   time.Duration
	LogMaxAge     time.Duration
}

// Run imports the seed catalogue when it changed and prunes old rows.
// Import failures are logged, not returned; startup continues without them.
func Run(ctx context.Context, s store.Store, d *db.DB, opts Options) error {
	slog.Info("Starting database maintenance...")

	if opts.CataloguePath != "" {
		if n, err := importCatalogue(ctx, s, opts.CataloguePath); err != nil {
			slog.Error("Catalogue import failed", "path", opts.CataloguePath, "error", err)
		} else if n > 0 {
			slog.Info("Catalogue import completed", "rows", n)
		}
	}

	if opts.CacheMaxAge > 0 {
		if err := d.PruneCache(opts.CacheMaxAge); err != nil {
			slog.Error("Cache pruning failed", "error", err)
		}
	}
	if opts.LogMaxAge > 0 {
		if n, err := d.PruneNarrationLogs(opts.LogMaxAge); err != nil {
			slog.Error("Narration log pruning failed", "error", err)
		} else if n > 0 {
			slog.Info("Pruned narration logs", "rows", n)
		}
	}

	return nil
}

// importCatalogue loads audio assets from a CSV file when its modification time changed.
// Rows with an ID column replace that catalogue entry; rows without one are appended.
func importCatalogue(ctx context.Context, s store.Store, csvPath string) (int, error) {
	info, err := os.Stat(csvPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat csv: %w", err)
	}

	fileMTime := info.ModTime().UTC().Format(time.RFC3339)
	if stored, found := s.GetState(ctx, catalogueStateKey); found && stored == fileMTime {
		return 0, nil
	}

	slog.Info("Importing catalogue from CSV...", "path", csvPath)

	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	// Spreadsheet exports often start with a UTF-8 BOM
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	idxMap := make(map[string]int)
	for i, h := range headers {
		idxMap[strings.TrimSpace(h)] = i
	}

	count, err := processRows(ctx, s, reader, idxMap)
	if err != nil {
		return count, err
	}

	if err := s.SetState(ctx, catalogueStateKey, fileMTime); err != nil {
		return count, fmt.Errorf("failed to update state: %w", err)
	}
	return count, nil
}

func processRows(ctx context.Context, s store.AudioStore, reader *csv.Reader, idxMap map[string]int) (int, error) {
	get := func(row []string, col string) string {
		if i, ok := idxMap[col]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	optFloat := func(row []string, col string) *float64 {
		if v, err := strconv.ParseFloat(get(row, col), 64); err == nil {
			return &v
		}
		return nil
	}

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("csv read error: %w", err)
		}

		a := &model.AudioAsset{
			Text:                get(record, "Text"),
			Voice:               get(record, "Voice"),
			FileName:            get(record, "FileName"),
			MimeType:            get(record, "MimeType"),
			FoodName:            get(record, "FoodName"),
			Description:         get(record, "Description"),
			Price:               optFloat(record, "Price"),
			Latitude:            optFloat(record, "Latitude"),
			Longitude:           optFloat(record, "Longitude"),
			Accuracy:            optFloat(record, "Accuracy"),
			TriggerRadiusMeters: optFloat(record, "TriggerRadius"),
		}
		if id, err := strconv.ParseInt(get(record, "ID"), 10, 64); err == nil {
			a.ID = id
		}
		if p, err := strconv.Atoi(get(record, "Priority")); err == nil {
			a.Priority = &p
		}
		if a.Text == "" && a.FoodName == "" {
			continue
		}

		if err := s.SaveAudio(ctx, a); err != nil {
			return count, fmt.Errorf("failed to save row %d: %w", count, err)
		}
		count++
	}
	return count, nil
}
