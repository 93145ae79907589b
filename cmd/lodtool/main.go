// lodtool is a CLI utility for working with Might and Magic LOD archives.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/internal/assets"
	"github.com/Faultbox/mm-lod/internal/config"
	"github.com/Faultbox/mm-lod/internal/export"
	"github.com/Faultbox/mm-lod/internal/logger"
	"github.com/Faultbox/mm-lod/pkg/formats"
	"github.com/Faultbox/mm-lod/pkg/lod"
	mmath "github.com/Faultbox/mm-lod/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "list", "ls":
		cmdList(args)
	case "extract", "x":
		cmdExtract(args)
	case "dump":
		cmdDump(args)
	case "atlas":
		cmdAtlas(args)
	case "map":
		cmdMap(args)
	case "inspect":
		cmdInspect(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lodtool - Might and Magic LOD archive utility

Usage:
  lodtool <command> [options]

Commands:
  info                               Show the archives in the data directory
  list <archive> [pattern]           List entries (optional glob pattern)
  extract <archive> <entry|pattern>  Extract entries to the output directory
  dump [archive...]                  Convert entries to PNG or unframed data
  atlas                              Write the tile atlas of a map
  map                                Export a map as GLB with atlas and billboards
  inspect <kind> [args]              Print decoded structures
  config                             Print the effective configuration

Inspect kinds:
  map                    Map header, remap vector and neighbors
  tiles                  Tile table of the map
  model <index>          BSP model of the map
  decoration <id|name>   Decoration list record
  frame <index>          Sprite frame table record
  entry <archive/entry>  Block framing of an entry

Common options:
  -lod <dir>        Directory holding the *.lod archives (env OMM_LOD_PATH)
  -out <dir>        Output directory (env OMM_DUMP_PATH)
  -map <name>       Outdoor map, e.g. oute3 or outb2.odm
  -config <file>    Config file
  -log-level <lvl>  debug, info, warn, error
  -debug            Enable debug logging
  -no-cache         Disable the decoded asset cache

Examples:
  lodtool info -lod ./mm6/data
  lodtool list bitmaps "gras*"
  lodtool extract icons dtile.bin -out ./output
  lodtool dump sprites
  lodtool map -map oute3 -out ./export
  lodtool inspect decoration 12`)
}

// setup parses args on a subcommand flag set and loads config and logging.
func setup(name string, args []string, extra func(fs *flag.FlagSet)) (*flag.FlagSet, *config.Config) {
	var flags config.Flags
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags.Bind(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Parse(args)

	if err := config.LoadDotEnv(".env"); err != nil {
		fatalf("Error loading .env: %v", err)
	}
	cfg, err := config.Load(&flags)
	if err != nil {
		fatalf("Error: %v", err)
	}

	if err := logger.InitWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		File:    logFile(cfg.Logging.LogFile),
		Console: os.Stderr,
	}); err != nil {
		fatalf("Error initializing logger: %v", err)
	}
	return fs, cfg
}

func logFile(path string) logger.FileConfig {
	if path == "" {
		return logger.FileConfig{}
	}
	return logger.DefaultFileConfig(path)
}

func openManager(cfg *config.Config) *assets.Manager {
	opts, err := assets.OptionsFromConfig(cfg)
	if err != nil {
		fatalf("Error: %v", err)
	}
	opts.Logger = logger.Log.Named("assets")

	mgr, err := assets.Open(cfg.Data.LodPath, opts)
	if err != nil {
		fatalf("Error opening %s: %v", cfg.Data.LodPath, err)
	}
	return mgr
}

func archive(mgr *assets.Manager, name string) *lod.Archive {
	a, ok := mgr.Set().Archive(name)
	if !ok {
		fatalf("Archive not found: %s (have %s)", name, strings.Join(mgr.Set().Names(), ", "))
	}
	return a
}

func fatalf(format string, args ...any) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func cmdInfo(args []string) {
	_, cfg := setup("info", args, nil)
	mgr := openManager(cfg)
	defer mgr.Close()

	set := mgr.Set()
	fmt.Printf("Data:     %s\n", cfg.Data.LodPath)
	fmt.Printf("Archives: %d\n", len(set.Names()))
	fmt.Println()

	for _, name := range set.Names() {
		a, _ := set.Archive(name)

		var size int64
		extCount := make(map[string]int)
		for _, e := range a.Entries() {
			size += e.Size
			ext := strings.ToLower(filepath.Ext(e.Name))
			if ext == "" {
				ext = "(no ext)"
			}
			extCount[ext]++
		}

		fmt.Printf("%-10s %-8s %6d entries %8.2f MB\n", name, a.Version(), a.Len(), float64(size)/(1024*1024))

		// Sort by count
		type extStat struct {
			ext   string
			count int
		}
		var stats []extStat
		for ext, count := range extCount {
			stats = append(stats, extStat{ext, count})
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].count != stats[j].count {
				return stats[i].count > stats[j].count
			}
			return stats[i].ext < stats[j].ext
		})
		for _, s := range stats {
			fmt.Printf("  %-10s %d\n", s.ext, s.count)
		}
	}
}

func cmdList(args []string) {
	var limit int
	fs, cfg := setup("list", args, func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "n", 0, "Limit output to N entries (0 = all)")
	})

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lodtool list <archive> [pattern]")
		os.Exit(1)
	}

	mgr := openManager(cfg)
	defer mgr.Close()
	a := archive(mgr, fs.Arg(0))

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, e := range a.Entries() {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, e.Name)
			if !matched && !strings.Contains(e.Name, pattern) {
				continue
			}
		}
		fmt.Printf("%-16s %8d\n", e.Name, e.Size)
		count++
		if limit > 0 && count >= limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d entries matched)\n", count)
	}
}

func cmdExtract(args []string) {
	var decode bool
	fs, cfg := setup("extract", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&decode, "decode", false, "Strip the compression header")
	})

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: lodtool extract <archive> <entry|pattern> [-out dir] [-decode]")
		os.Exit(1)
	}

	mgr := openManager(cfg)
	defer mgr.Close()
	a := archive(mgr, fs.Arg(0))
	pattern := strings.ToLower(fs.Arg(1))
	outputDir := filepath.Join(cfg.Data.DumpPath, fs.Arg(0))

	var names []string
	if strings.ContainsAny(pattern, "*?[") {
		for _, name := range a.List() {
			if matched, _ := filepath.Match(pattern, name); matched {
				names = append(names, name)
			}
		}
	} else {
		if !a.Contains(pattern) {
			fatalf("Entry not found: %s", pattern)
		}
		names = []string{pattern}
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fatalf("Error creating directory: %v", err)
	}

	extracted := 0
	for _, name := range names {
		data, err := a.Get(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", name, err)
			continue
		}
		if decode {
			data = lod.DecodeBlock(data).Data
		}

		outputPath := filepath.Join(outputDir, filepath.Base(name))
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outputPath, err)
			continue
		}

		fmt.Printf("Extracted: %s (%d bytes)\n", outputPath, len(data))
		extracted++
	}

	fmt.Fprintf(os.Stderr, "\nExtracted %d files\n", extracted)
}

func cmdDump(args []string) {
	fs, cfg := setup("dump", args, nil)
	mgr := openManager(cfg)
	defer mgr.Close()

	dumper := &export.Dumper{Log: logger.Log.Named("dump")}
	if palettes, err := mgr.Palettes(); err == nil {
		dumper.Palettes = palettes
	} else {
		logger.Warn("sprites will be dumped raw", zap.Error(err))
	}

	names := fs.Args()
	if len(names) == 0 {
		names = mgr.Set().Names()
	}

	failed := false
	for _, name := range names {
		result, err := dumper.DumpArchive(archive(mgr, name), filepath.Join(cfg.Data.DumpPath, name))
		fmt.Printf("%-10s %5d bitmaps %5d sprites %5d raw %5d failed\n",
			name, result.Bitmaps, result.Sprites, result.Raw, result.Failed)
		if err != nil {
			failed = true
		}
	}
	logger.Sync()
	if failed {
		os.Exit(1)
	}
}

// loadMap loads the configured map and its tile table.
func loadMap(mgr *assets.Manager, name string) (*formats.ODM, *formats.TileTable) {
	if n, err := formats.ParseMapName(name); err == nil {
		name = n.String()
	}
	odm, err := mgr.Map(name)
	if err != nil {
		fatalf("Error loading map %s: %v", name, err)
	}
	table, err := mgr.MapTileTable(odm)
	if err != nil {
		fatalf("Error building tile table: %v", err)
	}
	return odm, table
}

func cmdAtlas(args []string) {
	_, cfg := setup("atlas", args, nil)
	mgr := openManager(cfg)
	defer mgr.Close()

	odm, table := loadMap(mgr, cfg.Data.Map)
	atlas, err := table.AtlasImage(mgr)
	if err != nil {
		fatalf("Error building atlas: %v", err)
	}

	base := strings.TrimSuffix(odm.Name, filepath.Ext(odm.Name))
	path := filepath.Join(cfg.Data.DumpPath, base+"_atlas.png")
	if err := export.SavePNG(path, atlas); err != nil {
		fatalf("Error: %v", err)
	}
	columns, rows := table.Size()
	fmt.Printf("Atlas: %s (%dx%d tiles)\n", path, columns, rows)
}

func cmdMap(args []string) {
	_, cfg := setup("map", args, nil)
	mgr := openManager(cfg)
	defer mgr.Close()

	odm, table := loadMap(mgr, cfg.Data.Map)
	opts := export.MapOptions{
		Models: cfg.Export.Models,
		Log:    logger.Log.Named("export"),
	}
	if cfg.Export.Billboards {
		resolver, err := mgr.BillboardResolver()
		if err != nil {
			fatalf("Error loading billboard tables: %v", err)
		}
		opts.Billboards = resolver
	}

	files, err := export.ExportMap(cfg.Data.DumpPath, odm, table, mgr, opts)
	if files == nil {
		fatalf("Error exporting %s: %v", odm.Name, err)
	}

	fmt.Printf("Scene:      %s (%d models)\n", files.Scene, files.Models)
	fmt.Printf("Atlas:      %s\n", files.Atlas)
	if files.Manifest != "" {
		fmt.Printf("Billboards: %s (%d placed, %d sprites)\n", files.Manifest, files.Billboards, len(files.Sprites))
	}
	if err != nil {
		fatalf("Some billboards were skipped: %v", err)
	}

	s := mgr.Stats()
	logger.Debug("cache stats", zap.Uint64("hits", s.Hits), zap.Uint64("misses", s.Misses))
	logger.Sync()
}

var printer = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                4,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func cmdInspect(args []string) {
	fs, cfg := setup("inspect", args, nil)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lodtool inspect <map|tiles|model|decoration|frame|entry> [args]")
		os.Exit(1)
	}
	mgr := openManager(cfg)
	defer mgr.Close()

	kind, rest := fs.Arg(0), fs.Args()[1:]
	switch kind {
	case "map":
		inspectMap(mgr, cfg.Data.Map)
	case "tiles":
		_, table := loadMap(mgr, cfg.Data.Map)
		columns, rows := table.Size()
		fmt.Printf("Atlas grid: %dx%d\n", columns, rows)
		printer.Dump(table.UniqueNames())
	case "model":
		odm, _ := loadMap(mgr, cfg.Data.Map)
		i := indexArg(rest, len(odm.Models))
		m := odm.Models[i]
		printer.Dump(m.Header)
		fmt.Printf("Vertices: %d  Faces: %d  Nodes: %d  Triangles: %d\n",
			len(m.Vertices), len(m.Faces), len(m.Nodes), len(m.Indices())/3)
		lo, hi := mmath.Bounds(m.Vertices)
		fmt.Printf("Extent:   %v .. %v\n", lo, hi)
		printer.Dump(m.TextureNames)
	case "decoration":
		list, err := formats.LoadDecorationList(mgr)
		if err != nil {
			fatalf("Error: %v", err)
		}
		if len(rest) < 1 {
			fatalf("Usage: lodtool inspect decoration <id|name>")
		}
		d, ok := list.Find(rest[0])
		if id, err := strconv.Atoi(rest[0]); err == nil {
			d, ok = list.Get(id)
		}
		if !ok {
			fatalf("Decoration not found: %s", rest[0])
		}
		printer.Dump(d)
	case "frame":
		frames, err := formats.LoadSpriteFrameTable(mgr)
		if err != nil {
			fatalf("Error: %v", err)
		}
		i := indexArg(rest, len(frames.Frames))
		printer.Dump(frames.Group(i))
	case "entry":
		if len(rest) < 1 {
			fatalf("Usage: lodtool inspect entry <archive/entry>")
		}
		raw, err := mgr.Resolve(rest[0])
		if err != nil {
			fatalf("Error: %v", err)
		}
		block := lod.DecodeBlock(raw)
		fmt.Printf("Stored: %d bytes  Framing: %s  Data: %d bytes\n", len(raw), block.Framing, len(block.Data))
		printer.Dump(block.Header)
	default:
		fatalf("Unknown inspect kind: %s", kind)
	}
}

func inspectMap(mgr *assets.Manager, name string) {
	odm, _ := loadMap(mgr, name)
	fmt.Printf("Map:        %s\n", odm.Name)
	fmt.Printf("Version:    %s\n", odm.Version)
	fmt.Printf("Sky:        %s\n", odm.SkyTexture)
	fmt.Printf("Ground:     %s\n", odm.GroundTexture)
	fmt.Printf("Models:     %d\n", len(odm.Models))
	fmt.Printf("Billboards: %d\n", len(odm.Billboards))
	fmt.Print("Remap:      ")
	printer.Dump(odm.Remap)

	n, err := formats.ParseMapName(odm.Name)
	if err != nil {
		return
	}
	for _, step := range []struct {
		dir  string
		next func() (formats.MapName, bool)
	}{
		{"North", n.North}, {"South", n.South}, {"West", n.West}, {"East", n.East},
	} {
		if next, ok := step.next(); ok {
			fmt.Printf("%-11s %s\n", step.dir+":", next)
		}
	}
}

func indexArg(args []string, n int) int {
	if len(args) < 1 {
		fatalf("Missing index")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 0 || i >= n {
		fatalf("Index %s out of range 0..%d", args[0], n-1)
	}
	return i
}

func cmdConfig(args []string) {
	var save bool
	_, cfg := setup("config", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&save, "save", false, "Write the effective config to the user config directory")
	})

	out, err := cfg.Marshal()
	if err != nil {
		fatalf("Error: %v", err)
	}
	fmt.Print(string(out))

	if save {
		if err := cfg.Save(); err != nil {
			fatalf("Error saving config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Saved to %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	}
}
