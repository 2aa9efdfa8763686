package annex_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/annex"
)

func Example() {
	dir, err := os.MkdirTemp("", "annex-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	cfg := annex.Config{
		Dimension:   2,
		Description: "Flat",
		Metric:      annex.MetricL2,
		Path:        filepath.Join(dir, "points.anx"),
	}

	idx, err := annex.OpenOrCreate(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := idx.AddWithIDs([]int64{10, 20, 30}, []float32{0, 0, 5, 5, 1, 1}); err != nil {
		log.Fatal(err)
	}

	ids, distances, err := idx.Search(5, 1, []float32{0.9, 0.9})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(ids)
	fmt.Printf("%.2f\n", distances)

	if err := idx.Write(ctx); err != nil {
		log.Fatal(err)
	}
	_ = idx.Close()

	reopened, err := annex.OpenOrCreate(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer reopened.Close()
	fmt.Println(reopened.Count(), reopened.MaxID())

	// Output:
	// [30 10 20]
	// [0.02 1.62 33.62]
	// 3 30
}

func ExampleIndex_SearchBatch() {
	idx, err := annex.New(annex.Config{Dimension: 1, Description: "Flat", Metric: annex.MetricL2})
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	_ = idx.AddWithIDs([]int64{1, 2}, []float32{0, 10})

	rows, err := idx.SearchBatch(3, []float32{1, 9})
	if err != nil {
		log.Fatal(err)
	}
	for _, row := range rows {
		fmt.Println(row)
	}

	// Output:
	// [{1 1} {2 81}]
	// [{2 1} {1 81}]
}
