package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"artscope/config"
	"artscope/internal/adapter/embedding"
	"artscope/internal/adapter/fs"
	"artscope/internal/adapter/matcher"
	"artscope/internal/adapter/memstore"
	"artscope/internal/domain"
	"artscope/internal/usecase"
)

// Self-recall benchmark: every image in a directory is catalogued, then a
// degraded copy of each (cropped, downscaled, recompressed) is scanned and
// must come back as its own artwork.
func main() {
	dir := flag.String("dir", ".", "directory of artwork images")
	provider := flag.String("provider", "", "embedding provider (default from config)")
	crop := flag.Float64("crop", 0.05, "fraction trimmed from each edge of the probe")
	scale := flag.Float64("scale", 0.6, "probe scale factor")
	quality := flag.Int("quality", 70, "probe JPEG quality")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *provider != "" {
		cfg.Embedding.Provider = *provider
	}
	cfg.Embedding.CacheSize = 0

	ext, err := embedding.New(cfg.Embedding, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating extractor: %v\n", err)
		os.Exit(1)
	}

	files, err := fs.NewWalker(cfg.Import.Includes, cfg.Import.Excludes).Walk(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking %s: %v\n", *dir, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./collection")
		fmt.Println("\nNo images found.")
		os.Exit(1)
	}

	ctx := context.Background()
	st := memstore.NewMemoryStore()
	images := make(map[int64][]byte, len(files))

	fmt.Println("SELF-RECALL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Model: %s (%s)\n", ext.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Probe: crop %.0f%%, scale %.2f, JPEG q%d\n\n", *crop*100, *scale, *quality)

	start := time.Now()
	for i, f := range files {
		data, err := fs.ReadImage(f.Path, cfg.Server.MaxUploadBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", f.RelPath, err)
			continue
		}
		emb, err := ext.Extract(ctx, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", f.RelPath, err)
			continue
		}
		id := int64(i + 1)
		if _, err := st.Put(ctx, domain.Artwork{ID: id, Name: f.RelPath, Embedding: emb}); err != nil {
			fmt.Fprintf(os.Stderr, "Store error: %v\n", err)
			os.Exit(1)
		}
		images[id] = data
	}
	fmt.Printf("Catalogued %d images in %s\n\n", len(images), time.Since(start).Round(time.Millisecond))

	policy, err := matcher.ParsePolicy(cfg.Match.DimensionPolicy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in config: %v\n", err)
		os.Exit(1)
	}
	scan := usecase.NewScanUseCase(ext, st, matcher.New(policy), usecase.ScanOptions{})

	var hits, misses int
	var hitScore, scanTime float64
	for id := int64(1); id <= int64(len(files)); id++ {
		data, ok := images[id]
		if !ok {
			continue
		}
		probe, err := degrade(data, *crop, *scale, *quality)
		if err != nil {
			fmt.Fprintf(os.Stderr, "probe %d: %v\n", id, err)
			continue
		}

		t := time.Now()
		out, err := scan.Scan(ctx, probe)
		scanTime += time.Since(t).Seconds()
		if err != nil {
			fmt.Fprintf(os.Stderr, "scan %d: %v\n", id, err)
			misses++
			continue
		}

		if out.Found && out.Artwork.ID == id {
			hits++
			hitScore += out.Score
			continue
		}
		misses++
		want, _ := st.Get(ctx, id)
		fmt.Printf("MISS %-35s -> %s (%.4f)\n", shortPath(want.Name), shortPath(out.Artwork.Name), out.Score)
	}

	total := hits + misses
	if total == 0 {
		fmt.Println("Nothing was scanned.")
		os.Exit(1)
	}

	accuracy := float64(hits) / float64(total)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Top-1 accuracy:       %.1f%% (%d/%d)\n", accuracy*100, hits, total)
	if hits > 0 {
		fmt.Printf("  Mean hit similarity:  %.4f\n", hitScore/float64(hits))
	}
	fmt.Printf("  Mean scan time:       %.1fms\n", scanTime/float64(total)*1000)

	if accuracy > 0.9 {
		fmt.Println("  Status: GOOD - photos are recognised reliably")
	} else if accuracy > 0.6 {
		fmt.Println("  Status: OK - expect occasional mismatches")
	} else {
		fmt.Println("  Status: POOR - try a learned embedding model")
	}
}

// degrade simulates a visitor's photo of the artwork.
func degrade(data []byte, crop, scale float64, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	dx, dy := int(float64(b.Dx())*crop), int(float64(b.Dy())*crop)
	cropped := image.Rect(b.Min.X+dx, b.Min.Y+dy, b.Max.X-dx, b.Max.Y-dy)
	if cropped.Empty() {
		cropped = b
	}

	w := max(1, int(float64(cropped.Dx())*scale))
	h := max(1, int(float64(cropped.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, cropped, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shortPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 2 {
		return ".../" + strings.Join(parts[len(parts)-2:], "/")
	}
	return path
}
