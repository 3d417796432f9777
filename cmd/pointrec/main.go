// Command pointrec replays captured feature-point frames through the
// recorder and writes the aggregated point clouds as .xyz files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/banshee-data/featurecloud/internal/capture"
	"github.com/banshee-data/featurecloud/internal/config"
	"github.com/banshee-data/featurecloud/internal/pointcloud"
	"github.com/banshee-data/featurecloud/internal/preview"
	"github.com/banshee-data/featurecloud/internal/recorder"
	"github.com/banshee-data/featurecloud/internal/security"
	"github.com/banshee-data/featurecloud/internal/version"
)

var (
	inputPath    = flag.String("input", "", "Frame source to replay (.jsonl/.ndjson or .db/.sqlite)")
	configPath   = flag.String("config", "", "Path to a recorder config JSON file")
	outDir       = flag.String("out", "", "Output root directory (overrides config output_dir)")
	modesFlag    = flag.String("modes", "", "Comma-separated modes to export: full,avg,dist (overrides config)")
	zscore       = flag.Float64("zscore", 0, "Distance filter z-score (overrides config when > 0)")
	withPreview  = flag.Bool("preview", false, "Also write .html and .png previews")
	previewOnly  = flag.String("preview-only", "", "Render previews for an existing .xyz file and exit")
	playbackRate = flag.Float64("rate", 0, "Replay at capture pace scaled by this factor (0 = as fast as possible)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("pointrec"))
		return
	}

	if *previewOnly != "" {
		if err := renderPreviews(*previewOnly); err != nil {
			log.Fatalf("preview failed: %v", err)
		}
		return
	}

	if *inputPath == "" {
		log.Fatal("-input is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	src, err := capture.Open(*inputPath)
	if err != nil {
		log.Fatalf("failed to open capture source: %v", err)
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := recorder.New(cfg, recorder.WithPlaybackRate(*playbackRate))
	if err := rec.Run(ctx, src); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Fatalf("replay failed: %v", err)
		}
		log.Print("replay interrupted, saving what was recorded")
	}

	st := rec.Stats()
	log.Printf("session %s: %d frames (%d skipped), %d features, %d identifiers, %d points",
		st.SessionID, st.Frames, st.Skipped, st.Features, st.Identifiers, st.Points)

	paths, err := rec.Save(cfg.GetOutputDir())
	for _, p := range paths {
		log.Printf("wrote %s", p)
	}
	if err != nil {
		log.Fatalf("save failed: %v", err)
	}
}

// loadConfig reads -config (or the defaults) and applies flag overrides.
func loadConfig() (*config.RecorderConfig, error) {
	cfg := config.DefaultRecorderConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadRecorderConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if *outDir != "" {
		cfg.SetOutputDir(*outDir)
	}
	if *modesFlag != "" {
		cfg.Modes = strings.Split(*modesFlag, ",")
	}
	if *zscore > 0 {
		cfg.SetZScore(*zscore)
	}
	if *withPreview {
		cfg.SetPreview(true)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// renderPreviews writes <name>.html and <name>.png beside an existing .xyz.
func renderPreviews(xyzPath string) error {
	f, err := os.Open(xyzPath)
	if err != nil {
		return err
	}
	points, err := pointcloud.ReadXYZ(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", xyzPath, err)
	}

	dir := filepath.Dir(xyzPath)
	stem := security.SanitizeFilename(strings.TrimSuffix(filepath.Base(xyzPath), filepath.Ext(xyzPath)))
	title := fmt.Sprintf("%s (%d points)", stem, len(points))

	outputs := []struct {
		ext    string
		render func(w *os.File) error
	}{
		{".html", func(w *os.File) error { return preview.WriteHTML(w, title, points) }},
		{".png", func(w *os.File) error { return preview.WritePNG(w, title, points) }},
	}
	for _, o := range outputs {
		out := filepath.Join(dir, stem+o.ext)
		if err := security.ValidatePathWithinDirectory(out, dir); err != nil {
			return err
		}
		w, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := o.render(w); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		log.Printf("wrote %s", out)
	}
	return nil
}
