package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/astei/anvilworld/anvil"
	"github.com/astei/anvilworld/config"
	"github.com/astei/anvilworld/slime"
)

var (
	label = color.New(color.FgCyan)
	good  = color.New(color.FgGreen)
)

type app struct {
	cfg    config.Config
	logger *logrus.Logger
}

func (a *app) load(c *cli.Context) (err error) {
	a.cfg = config.Defaults()
	if path := c.String("config"); path != "" {
		if a.cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	a.logger = a.cfg.Logger()
	return nil
}

func (a *app) open(path string, create, readOnly bool) (*anvil.Adapter, error) {
	opts := a.cfg.AdapterOptions(a.logger)
	opts.Create = create
	opts.ReadOnly = readOnly
	return anvil.Open(path, opts)
}

func needArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() < n {
		return cli.Exit(fmt.Sprintf("usage: %s %s", c.Command.Name, usage), 2)
	}
	return nil
}

func (a *app) info(c *cli.Context) error {
	if err := needArgs(c, 1, "<world>"); err != nil {
		return err
	}
	world, err := a.open(c.Args().Get(0), false, true)
	if err != nil {
		return err
	}
	defer world.Close()

	m := world.Metadata
	spawn := m.SpawnPosition()
	gameType := anvil.GameTypeNames[m.GameType()]
	label.Print("Name:      ")
	fmt.Println(m.LevelName())
	label.Print("Seed:      ")
	fmt.Println(m.RandomSeed())
	label.Print("Game type: ")
	fmt.Println(gameType)
	label.Print("Spawn:     ")
	fmt.Printf("%d, %d, %d\n", spawn.X, spawn.Y, spawn.Z)
	label.Print("Time:      ")
	fmt.Println(m.Time())

	dims, err := world.ListDimensions()
	if err != nil {
		return err
	}
	for _, dim := range dims {
		count, err := world.ChunkCount(dim)
		if err != nil {
			return err
		}
		label.Printf("Dimension %q: ", dim)
		fmt.Printf("%d chunks\n", count)
	}
	return nil
}

func (a *app) chunks(c *cli.Context) error {
	if err := needArgs(c, 1, "<world>"); err != nil {
		return err
	}
	world, err := a.open(c.Args().Get(0), false, true)
	if err != nil {
		return err
	}
	defer world.Close()

	positions, err := world.ChunkPositions(c.String("dim"))
	if err != nil {
		return err
	}
	for _, p := range positions {
		fmt.Printf("%d %d\n", p.X, p.Z)
	}
	return nil
}

func (a *app) players(c *cli.Context) error {
	if err := needArgs(c, 1, "<world>"); err != nil {
		return err
	}
	world, err := a.open(c.Args().Get(0), false, true)
	if err != nil {
		return err
	}
	defer world.Close()

	ids, err := world.ListPlayers()
	if err != nil {
		return err
	}
	for _, id := range ids {
		p, err := world.Player(id)
		if err != nil {
			return err
		}
		if id == "" {
			id = "(level.dat)"
		}
		pos := p.Position()
		label.Print(id)
		fmt.Printf(" health=%d pos=%.1f,%.1f,%.1f\n", p.Health(), pos[0], pos[1], pos[2])
	}
	return nil
}

func (a *app) create(c *cli.Context) error {
	if err := needArgs(c, 1, "<world>"); err != nil {
		return err
	}
	world, err := a.open(c.Args().Get(0), true, false)
	if err != nil {
		return err
	}
	defer world.Close()

	if name := c.String("name"); name != "" {
		world.Metadata.SetLevelName(name)
		if err := world.SyncToDisk(); err != nil {
			return err
		}
	}
	if err := world.SaveChanges(); err != nil {
		return err
	}
	good.Printf("Created %s\n", world.Root())
	return nil
}

func (a *app) setSpawn(c *cli.Context) error {
	if err := needArgs(c, 4, "<world> <x> <y> <z>"); err != nil {
		return err
	}
	var xyz [3]int
	for i := range xyz {
		v, err := strconv.Atoi(c.Args().Get(i + 1))
		if err != nil {
			return cli.Exit(fmt.Sprintf("bad coordinate %q", c.Args().Get(i+1)), 2)
		}
		xyz[i] = v
	}

	world, err := a.open(c.Args().Get(0), false, false)
	if err != nil {
		return err
	}
	defer world.Close()

	if err := world.CreateRevision(); err != nil {
		return err
	}
	world.Metadata.SetSpawnPosition(anvil.BlockPos{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	if err := world.SyncToDisk(); err != nil {
		return err
	}
	if err := world.SaveChanges(); err != nil {
		return err
	}
	good.Printf("Spawn set to %d, %d, %d\n", xyz[0], xyz[1], xyz[2])
	return nil
}

func (a *app) exportSlime(c *cli.Context) error {
	if err := needArgs(c, 2, "<world> <out>"); err != nil {
		return err
	}
	level, err := a.cfg.EncoderLevel()
	if err != nil {
		return err
	}
	world, err := a.open(c.Args().Get(0), false, true)
	if err != nil {
		return err
	}
	defer world.Close()

	dim := c.String("dim")
	positions, err := world.ChunkPositions(dim)
	if err != nil {
		return err
	}
	chunks := make([]*anvil.ChunkData, 0, len(positions))
	for _, p := range positions {
		chunk, err := world.ReadChunk(p.X, p.Z, dim)
		if err != nil {
			return err
		}
		chunks = append(chunks, chunk)
	}

	out, err := os.OpenFile(c.Args().Get(1), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	err = slime.Export(out, chunks, slime.Options{Level: level, Logger: logrus.NewEntry(a.logger)})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	good.Printf("Exported %d chunks to %s\n", len(chunks), c.Args().Get(1))
	return nil
}

func main() {
	a := &app{}
	dimFlag := &cli.StringFlag{Name: "dim", Usage: "dimension folder, empty for the overworld"}
	cliApp := &cli.App{
		Name:  "anvilworld",
		Usage: "inspects and edits Anvil worlds",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
		},
		Before: a.load,
		Commands: []*cli.Command{
			{Name: "info", Usage: "print the world metadata", ArgsUsage: "<world>", Action: a.info},
			{Name: "chunks", Usage: "list chunk positions", ArgsUsage: "<world>", Flags: []cli.Flag{dimFlag}, Action: a.chunks},
			{Name: "players", Usage: "list players", ArgsUsage: "<world>", Action: a.players},
			{
				Name:      "create",
				Usage:     "create an empty world",
				ArgsUsage: "<world>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "name", Usage: "level name"}},
				Action:    a.create,
			},
			{Name: "set-spawn", Usage: "move the world spawn", ArgsUsage: "<world> <x> <y> <z>", Action: a.setSpawn},
			{Name: "export-slime", Usage: "write a dimension as a Slime world", ArgsUsage: "<world> <out>", Flags: []cli.Flag{dimFlag}, Action: a.exportSlime},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
