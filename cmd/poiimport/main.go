// Command poiimport loads point features from a shapefile into the catalogue
// database used by narrationd and by a narrator running with poi.source local.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/db"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/poi"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	dbPath := flag.String("db", "./data/narrator.db", "Path to the catalogue database")
	dryRun := flag.Bool("dry-run", false, "Parse the shapefile and report without writing")
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		log.Fatal("Input path is required")
	}

	n, err := run(context.Background(), *inputPath, *dbPath, *dryRun)
	if err != nil {
		log.Fatal(err)
	}
	if *dryRun {
		fmt.Printf("Parsed %d stalls from %s\n", n, *inputPath)
		return
	}
	fmt.Printf("Imported %d stalls into %s\n", n, *dbPath)
}

// run imports every point of the shapefile. Features carrying an ID replace
// that catalogue row, so re-running an import is idempotent.
func run(ctx context.Context, inputPath, dbPath string, dryRun bool) (int, error) {
	assets, err := poi.LoadShapefile(inputPath)
	if err != nil {
		return 0, err
	}
	if dryRun {
		return len(assets), nil
	}

	d, err := db.Init(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	st := store.NewSQLiteStore(d)
	defer st.Close()

	now := time.Now().UTC()
	for i := range assets {
		a := &assets[i]
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if err := st.SaveAudio(ctx, a); err != nil {
			return i, fmt.Errorf("failed to save %q: %w", a.FoodName, err)
		}
	}
	return len(assets), nil
}
