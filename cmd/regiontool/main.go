package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/OCharnyshevich/voxel-stream/internal/server/storage"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/anvil"
	"github.com/OCharnyshevich/voxel-stream/internal/server/world/gen"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := &cli.App{
		Name:  "regiontool",
		Usage: "offline tools for stored voxel worlds",
		Commands: []*cli.Command{
			{
				Name:  "pregen",
				Usage: "generate a square of chunks around the origin into a world directory",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "world", Required: true, Usage: "world directory"},
					&cli.StringFlag{Name: "store", Value: storage.KindRegion, Usage: "store kind: region or sqlite"},
					&cli.Uint64Flag{Name: "seed", Value: 0, Usage: "world seed"},
					&cli.IntFlag{Name: "height", Value: 384, Usage: "chunk height in blocks"},
					&cli.StringFlag{Name: "generator", Value: "terrain", Usage: "terrain or flat"},
					&cli.StringFlag{Name: "noise", Value: "simplex", Usage: "simplex or perlin"},
					&cli.IntFlag{Name: "radius", Value: 8, Usage: "radius in chunks"},
					&cli.IntFlag{Name: "workers", Value: 0, Usage: "worker goroutines (0 = half the CPUs)"},
				},
				Action: func(c *cli.Context) error {
					return pregen(c, log)
				},
			},
			{
				Name:      "inspect",
				Usage:     "print the level metadata and stored chunk positions",
				ArgsUsage: "<world>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "list", Usage: "print every stored position"},
				},
				Action: inspect,
			},
			{
				Name:      "fetch",
				Usage:     "download or unpack a world",
				ArgsUsage: "<source> <world>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("fetch needs a source and a destination", 2)
					}
					return storage.Fetch(c.Context, c.Args().Get(0), c.Args().Get(1))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("regiontool", "error", err)
		os.Exit(1)
	}
}

func pregen(c *cli.Context, log *slog.Logger) error {
	dir := c.String("world")
	height := c.Int("height")
	radius := c.Int("radius")
	if height <= 0 || height > anvil.MaxHeight || height%gen.SectionHeight != 0 {
		return fmt.Errorf("height %d is not a multiple of %d up to %d", height, gen.SectionHeight, anvil.MaxHeight)
	}

	var g gen.Generator
	switch c.String("generator") {
	case "flat":
		g = gen.NewFlatGenerator(height)
	case "terrain":
		g = gen.NewTerrainGenerator(c.Uint64("seed"), c.String("noise"), height)
	default:
		return fmt.Errorf("unknown generator %q", c.String("generator"))
	}

	store, err := storage.Open(c.String("store"), dir, height)
	if err != nil {
		return err
	}

	start := time.Now()
	saved, err := pregenerate(c.Context, store, g, radius, c.Int("workers"), log)
	if cerr := store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Info("pre-generated world", "path", dir, "chunks", saved, "took", time.Since(start))
	return storage.SaveLevel(dir, &storage.Level{
		Seed:      c.Uint64("seed"),
		Height:    height,
		Generator: c.String("generator"),
		Noise:     c.String("noise"),
		Store:     c.String("store"),
	})
}

func inspect(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("inspect needs a world directory", 2)
	}
	dir := c.Args().First()
	if !storage.Exists(dir) {
		return fmt.Errorf("world %s does not exist", dir)
	}

	lvl, err := storage.LoadLevel(dir)
	if err != nil {
		return err
	}
	if lvl == nil {
		lvl = &storage.Level{Height: 384, Store: storage.KindRegion}
		fmt.Fprintln(c.App.Writer, "no level.json, assuming a region store of height 384")
	} else {
		fmt.Fprintf(c.App.Writer, "seed=%d height=%d generator=%s noise=%s store=%s\n",
			lvl.Seed, lvl.Height, lvl.Generator, lvl.Noise, lvl.Store)
	}

	store, err := storage.Open(lvl.Store, dir, lvl.Height)
	if err != nil {
		return err
	}
	defer store.Close()

	positions, err := store.Positions()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d chunks\n", len(positions))
	if len(positions) > 0 {
		minX, maxX, minZ, maxZ := positions[0].X, positions[0].X, positions[0].Z, positions[0].Z
		for _, p := range positions {
			minX, maxX = min(minX, p.X), max(maxX, p.X)
			minZ, maxZ = min(minZ, p.Z), max(maxZ, p.Z)
		}
		fmt.Fprintf(c.App.Writer, "bounds x=[%d, %d] z=[%d, %d]\n", minX, maxX, minZ, maxZ)
	}
	if c.Bool("list") {
		for _, p := range positions {
			fmt.Fprintf(c.App.Writer, "%d %d\n", p.X, p.Z)
		}
	}
	return nil
}
