// gltftool is a CLI utility for inspecting and posing glTF 2.0 assets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/Faultbox/gltfkit/internal/config"
	"github.com/Faultbox/gltfkit/internal/logger"
	"github.com/Faultbox/gltfkit/pkg/assets"
	"github.com/Faultbox/gltfkit/pkg/gltf"
	"github.com/Faultbox/gltfkit/pkg/scene"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch command {
	case "info":
		err = cmdInfo(ctx, args)
	case "tree":
		err = cmdTree(ctx, args)
	case "dump":
		err = cmdDump(ctx, args)
	case "anim":
		err = cmdAnim(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gltftool - glTF 2.0 asset utility

Usage:
  gltftool <command> [options] <file>

Commands:
  info <file>    Show asset information, element counts and warnings
  tree <file>    Assemble a scene and print its block hierarchy
  dump <file>    Assemble a scene and dump every block
  anim <file>    List animations and their durations

Options (all commands):
  -config <path>     Config file (default: ./gltftool.yaml)
  -debug             Enable debug logging
  -scene <n>         Scene to assemble (default: document default)
  -animation <n>     Animation to enable before assembling
  -time <seconds>    Animation time

Examples:
  gltftool info model.glb
  gltftool tree -animation 0 -time 1.25 model.gltf
  gltftool dump -scene 1 model.glb`)
}

// session is the state shared by every subcommand: configuration, the
// global logger and a fully loaded document.
type session struct {
	cfg  *config.Config
	path string
	doc  *gltf.Document
}

func open(ctx context.Context, name string, args []string) (*session, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := config.BindFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return nil, fmt.Errorf("usage: gltftool %s [options] <file>", name)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}

	resolver := assets.NewResolver("", logger.Named("assets"))
	for _, dir := range cfg.Load.AssetDirs {
		resolver.AddDir(dir)
	}

	path := fs.Arg(0)
	loader := gltf.NewLoader(
		gltf.WithLogger(logger.Named("gltf")),
		gltf.WithResolver(resolver),
	)
	if err := loader.LoadFile(ctx, path); err != nil {
		return nil, err
	}
	logger.Debug("loaded document", zap.String("path", path), zap.Int("warnings", len(loader.Document().Warnings)))

	return &session{cfg: cfg, path: path, doc: loader.Document()}, nil
}

// assemble poses the document with the configured animation and builds
// the configured scene.
func (s *session) assemble(ctx context.Context) (*scene.Block, error) {
	if a := s.cfg.Scene.Animation; a >= 0 {
		if err := s.doc.EnableAnimation(a, s.cfg.Scene.Time); err != nil {
			return nil, err
		}
	}
	asm := scene.NewAssembler(
		scene.WithLogger(logger.Named("scene")),
		scene.WithAspectRatio(s.cfg.Scene.AspectRatio),
	)
	return asm.Assemble(ctx, s.doc, s.cfg.Scene.Scene)
}

func cmdInfo(ctx context.Context, args []string) error {
	s, err := open(ctx, "info", args)
	if err != nil {
		return err
	}
	doc := s.doc

	fmt.Printf("File:       %s\n", s.path)
	fmt.Printf("Version:    %s\n", doc.Asset.Version)
	if doc.Asset.Generator != "" {
		fmt.Printf("Generator:  %s\n", doc.Asset.Generator)
	}
	if len(doc.ExtensionsUsed) > 0 {
		fmt.Printf("Extensions: %s\n", strings.Join(doc.ExtensionsUsed, ", "))
	}
	fmt.Println()
	fmt.Println("Elements:")

	counts := []struct {
		name  string
		count int
	}{
		{"scenes", len(doc.Scenes)},
		{"nodes", len(doc.Nodes)},
		{"meshes", len(doc.Meshes)},
		{"skins", len(doc.Skins)},
		{"animations", len(doc.Animations)},
		{"accessors", len(doc.Accessors)},
		{"bufferViews", len(doc.BufferViews)},
		{"buffers", len(doc.Buffers)},
		{"materials", len(doc.Materials)},
		{"textures", len(doc.Textures)},
		{"images", len(doc.Images)},
		{"cameras", len(doc.Cameras)},
		{"lights", len(doc.Lights)},
	}
	for _, c := range counts {
		if c.count > 0 {
			fmt.Printf("  %-12s %d\n", c.name, c.count)
		}
	}

	var missing int
	for _, b := range doc.Buffers {
		if b != nil && !b.Loaded() {
			missing++
		}
	}
	if missing > 0 {
		fmt.Printf("\nUnloaded buffers: %d\n", missing)
	}

	if len(doc.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(doc.Warnings))
		for _, w := range doc.Warnings {
			fmt.Printf("  %v\n", w)
		}
	}
	return nil
}

func cmdTree(ctx context.Context, args []string) error {
	s, err := open(ctx, "tree", args)
	if err != nil {
		return err
	}
	root, err := s.assemble(ctx)
	if err != nil {
		return err
	}

	root.Walk(func(b *scene.Block, depth int) {
		indent := strings.Repeat("  ", depth)
		switch {
		case b.Geometry != nil:
			fmt.Printf("%s%s [%s] %d points, %d indices\n", indent, b.Name, b.Kind, len(b.Geometry.Points), len(b.Geometry.Indices))
		case b.Metadata.Camera != nil:
			fmt.Printf("%s%s [%s] camera %s\n", indent, b.Name, b.Kind, b.Metadata.Camera.Type)
		case b.Metadata.Light != nil:
			fmt.Printf("%s%s [%s] light %s\n", indent, b.Name, b.Kind, b.Metadata.Light.Type)
		default:
			fmt.Printf("%s%s [%s]\n", indent, b.Name, b.Kind)
		}
	})
	return nil
}

func cmdDump(ctx context.Context, args []string) error {
	s, err := open(ctx, "dump", args)
	if err != nil {
		return err
	}
	root, err := s.assemble(ctx)
	if err != nil {
		return err
	}

	cs := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
	cs.Fdump(os.Stdout, root)
	return nil
}

func cmdAnim(ctx context.Context, args []string) error {
	s, err := open(ctx, "anim", args)
	if err != nil {
		return err
	}
	doc := s.doc

	if len(doc.Animations) == 0 {
		fmt.Println("No animations")
		return nil
	}
	for i, a := range doc.Animations {
		if a == nil {
			fmt.Printf("  %3d  (dropped)\n", i)
			continue
		}
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("animation_%d", i)
		}
		fmt.Printf("  %3d  %-24s %7.3fs  %d channels\n", i, name, a.Duration, len(a.Channels))
	}
	return nil
}
