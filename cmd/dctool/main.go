// Command dctool is the external-collaborator-facing front-end of spec §6:
// help|download|dump|parse|timesync|read|write|version over any registered
// family, plus a supplemental script subcommand.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/urfave/cli/v2"

	"divecomputer-go/config"
	"divecomputer-go/dccontext"
	"divecomputer-go/descriptor"
	"divecomputer-go/device"
	devatomicscobalt "divecomputer-go/device/atomicscobalt"
	devoceanicatom2 "divecomputer-go/device/oceanicatom2"
	devsuuntoaladin "divecomputer-go/device/suuntoaladin"
	devsuuntovyper "divecomputer-go/device/suuntovyper"
	devuwatecmemomouse "divecomputer-go/device/uwatecmemomouse"
	devuwatecsmart "divecomputer-go/device/uwatecsmart"
	"divecomputer-go/download"
	"divecomputer-go/family"
	"divecomputer-go/iostream"
	"divecomputer-go/parser"
	"divecomputer-go/parser/oceanicatom2"
	"divecomputer-go/parser/suuntoaladin"
	"divecomputer-go/parser/suuntovyper"
	"divecomputer-go/parser/uwatecgalileo"
	"divecomputer-go/parser/uwatecmemomouse"
	"divecomputer-go/sample"
	"divecomputer-go/transport/serial"
	"divecomputer-go/x/conv"
)

func main() {
	app := &cli.App{
		Name:  "dctool",
		Usage: "extract and decode dive logs from a dive computer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "device", Aliases: []string{"d"}, Usage: "descriptor name, e.g. \"Suunto Vyper\" (required unless set in --config)"},
			&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "serial/transport path"},
			&cli.StringFlag{Name: "cachedir", Usage: "fingerprint cache directory"},
			&cli.StringFlag{Name: "fingerprint", Usage: "hex fingerprint overriding the cache"},
			&cli.StringFlag{Name: "config", Usage: "JSON config file supplying defaults for --device/--port/--cachedir"},
		},
		Before: applyConfigFile,
		Commands: []*cli.Command{
			helpCommand,
			versionCommand,
			downloadCommand,
			dumpCommand,
			parseCommand,
			timesyncCommand,
			readCommand,
			writeCommand,
			fwupdateCommand,
			scriptCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dctool:", err)
		os.Exit(1)
	}
}

// applyConfigFile loads --config, if given, and fills in any of
// --device/--port/--cachedir the caller left unset. Flags passed explicitly
// on the command line always win over the config file.
func applyConfigFile(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.Device != "" && !c.IsSet("device") {
		if err := c.Set("device", cfg.Device); err != nil {
			return err
		}
	}
	if cfg.Port != "" && !c.IsSet("port") {
		if err := c.Set("port", cfg.Port); err != nil {
			return err
		}
	}
	if cfg.CacheDir != "" && !c.IsSet("cachedir") {
		if err := c.Set("cachedir", cfg.CacheDir); err != nil {
			return err
		}
	}
	return nil
}

var helpCommand = &cli.Command{
	Name:  "help",
	Usage: "list registered device descriptors",
	Action: func(c *cli.Context) error {
		it := descriptor.NewIterator()
		for {
			d, err := it.Next()
			if err != nil {
				break
			}
			fmt.Printf("%-28s family=%-18s model=0x%02x transport=%s\n", d.Name(), d.Family, d.ModelID, d.DefaultTransport)
		}
		return nil
	},
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print the connected device's version block",
	Action: func(c *cli.Context) error {
		d, closeFn, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeFn()
		out := make([]byte, 256)
		n, err := d.Version(out)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(out[:n]))
		return nil
	},
}

var downloadCommand = &cli.Command{
	Name:  "download",
	Usage: "download new dives newest-first, writing one file per dive",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory for raw dive blobs"},
	},
	Action: func(c *cli.Context) error {
		d, closeFn, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeFn()

		desc, err := descriptor.Lookup(c.String("device"))
		if err != nil {
			return err
		}
		opts := download.Options{
			Cache:       download.Cache{Dir: c.String("cachedir")},
			FamilyName:  string(desc.Family),
			Fingerprint: fingerprintFlag(c),
		}
		outDir := c.String("out")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		n := 0
		result, err := download.Run(dccontext.New(), d, opts, func(data, fingerprint []byte) bool {
			path := fmt.Sprintf("%s/%s-%04d.bin", outDir, strings.ReplaceAll(desc.Name(), " ", "-"), n)
			if werr := os.WriteFile(path, data, 0o644); werr != nil {
				fmt.Fprintln(os.Stderr, "dctool: write", path, werr)
				return false
			}
			n++
			return true
		})
		if err != nil {
			return err
		}
		fmt.Printf("downloaded %d dive(s), serial=0x%s, cancelled=%v\n", result.DiveCount, conv.U32Hex(make([]byte, 8), result.Serial), result.Cancelled)
		return nil
	},
}

var dumpCommand = &cli.Command{
	Name:  "dump",
	Usage: "dump the device's whole memory to a file",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true},
	},
	Action: func(c *cli.Context) error {
		d, closeFn, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeFn()
		blob, err := d.Dump()
		if err != nil {
			return err
		}
		return os.WriteFile(c.String("out"), blob, 0o644)
	},
}

var parseCommand = &cli.Command{
	Name:      "parse",
	Usage:     "decode one raw dive blob to a human-readable sample dump",
	ArgsUsage: "<blob-file>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("parse requires exactly one blob-file argument", 1)
		}
		data, err := os.ReadFile(c.Args().Get(0))
		if err != nil {
			return err
		}
		desc, err := descriptor.Lookup(c.String("device"))
		if err != nil {
			return err
		}
		p, err := newParser(desc, data)
		if err != nil {
			return err
		}
		if t, err := p.DateTime(); err == nil {
			fmt.Println("datetime:", t.Format(time.RFC3339))
		}
		return p.SamplesForeach(func(s sample.Sample) error {
			fmt.Println(formatSample(s))
			return nil
		})
	},
}

// newParser dispatches to the family parser matching desc.Family, mirroring
// openFamily's device-side dispatch.
func newParser(desc descriptor.Descriptor, data []byte) (parser.Parser, error) {
	switch desc.Family {
	case family.SuuntoVyper:
		return suuntovyper.New(desc.ModelID, data), nil
	case family.SuuntoAladin:
		return suuntoaladin.New(desc.ModelID, data), nil
	case family.UwatecMemomouse:
		return uwatecmemomouse.New(desc.ModelID, data), nil
	case family.UwatecSmart:
		return uwatecgalileo.New(desc.ModelID, data), nil
	case family.OceanicAtom2:
		return oceanicatom2.New(desc.ModelID, data), nil
	default:
		return nil, cli.Exit(fmt.Sprintf("family %s has no parser wired into dctool yet", desc.Family), 1)
	}
}

func formatSample(s sample.Sample) string {
	switch s.Kind {
	case sample.Time:
		return fmt.Sprintf("time=%dms", s.TimeMS)
	case sample.Depth:
		return fmt.Sprintf("depth=%.2fm", s.DepthM)
	case sample.Temperature:
		return fmt.Sprintf("temp=%.1fC", s.Temperature)
	case sample.Pressure:
		return fmt.Sprintf("tank%d=%.1fbar", s.Pressure.Tank, s.Pressure.Bar)
	default:
		return fmt.Sprintf("kind=%d", s.Kind)
	}
}

var timesyncCommand = &cli.Command{
	Name:  "timesync",
	Usage: "set the device clock to the host's current time",
	Action: func(c *cli.Context) error {
		d, closeFn, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeFn()
		return d.Timesync(time.Now())
	},
}

var readCommand = &cli.Command{
	Name:      "read",
	Usage:     "read size bytes from address and print them as hex",
	ArgsUsage: "<address> <size>",
	Action: func(c *cli.Context) error {
		addr, size, err := parseAddrSize(c)
		if err != nil {
			return err
		}
		d, closeFn, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeFn()
		data, err := d.Read(addr, size)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(data))
		return nil
	},
}

var writeCommand = &cli.Command{
	Name:      "write",
	Usage:     "write hex-encoded bytes to address",
	ArgsUsage: "<address> <hex-bytes>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 2 {
			return cli.Exit("write requires <address> <hex-bytes>", 1)
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(c.Args().Get(0), "0x"), 16, 32)
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(c.Args().Get(1))
		if err != nil {
			return err
		}
		d, closeFn, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeFn()
		return d.Write(uint32(addr), data)
	},
}

var fwupdateCommand = &cli.Command{
	Name:  "fwupdate",
	Usage: "flash new firmware (not supported by any implemented family)",
	Action: func(c *cli.Context) error {
		return cli.Exit("fwupdate: unsupported", 1)
	},
}

var scriptCommand = &cli.Command{
	Name:      "script",
	Usage:     "replay a file of whitespace-tokenized read/write commands",
	ArgsUsage: "<script-file>",
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 1 {
			return cli.Exit("script requires exactly one script-file argument", 1)
		}
		body, err := os.ReadFile(c.Args().Get(0))
		if err != nil {
			return err
		}
		d, closeFn, err := openFromFlags(c)
		if err != nil {
			return err
		}
		defer closeFn()

		for lineNo, line := range strings.Split(string(body), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			tokens, err := shlex.Split(line)
			if err != nil {
				return fmt.Errorf("script line %d: %w", lineNo+1, err)
			}
			if err := runScriptLine(d, tokens); err != nil {
				return fmt.Errorf("script line %d: %w", lineNo+1, err)
			}
		}
		return nil
	},
}

func runScriptLine(d device.Device, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	switch tokens[0] {
	case "read":
		if len(tokens) != 3 {
			return fmt.Errorf("read requires <address> <size>")
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(tokens[1], "0x"), 16, 32)
		if err != nil {
			return err
		}
		size, err := strconv.Atoi(tokens[2])
		if err != nil {
			return err
		}
		data, err := d.Read(uint32(addr), size)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(data))
	case "write":
		if len(tokens) != 3 {
			return fmt.Errorf("write requires <address> <hex-bytes>")
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(tokens[1], "0x"), 16, 32)
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(tokens[2])
		if err != nil {
			return err
		}
		return d.Write(uint32(addr), data)
	default:
		return fmt.Errorf("unknown script command %q", tokens[0])
	}
	return nil
}

func parseAddrSize(c *cli.Context) (uint32, int, error) {
	if c.Args().Len() != 2 {
		return 0, 0, cli.Exit("read requires <address> <size>", 1)
	}
	addr, err := strconv.ParseUint(strings.TrimPrefix(c.Args().Get(0), "0x"), 16, 32)
	if err != nil {
		return 0, 0, err
	}
	size, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return 0, 0, err
	}
	return uint32(addr), size, nil
}

func fingerprintFlag(c *cli.Context) []byte {
	hexFP := c.String("fingerprint")
	if hexFP == "" {
		return nil
	}
	fp, err := hex.DecodeString(hexFP)
	if err != nil {
		return nil
	}
	return fp
}

// openFromFlags opens the family named by --device against --port, honoring
// its descriptor's default transport.
func openFromFlags(c *cli.Context) (device.Device, func(), error) {
	desc, err := descriptor.Lookup(c.String("device"))
	if err != nil {
		return nil, nil, err
	}

	var stream iostream.Stream
	switch desc.DefaultTransport {
	case family.TransportSerial:
		s, err := serial.Open(c.String("port"))
		if err != nil {
			return nil, nil, err
		}
		stream = s
	default:
		return nil, nil, cli.Exit(fmt.Sprintf("transport %s not wired into dctool yet", desc.DefaultTransport), 1)
	}

	d, err := openFamily(desc, stream)
	if err != nil {
		stream.Close()
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

func openFamily(desc descriptor.Descriptor, stream iostream.Stream) (device.Device, error) {
	switch desc.Family {
	case family.SuuntoVyper:
		return devsuuntovyper.Open(dccontext.New(), stream, devsuuntovyper.DefaultConfig())
	case family.SuuntoAladin:
		return devsuuntoaladin.Open(stream)
	case family.UwatecMemomouse:
		return devuwatecmemomouse.Open(stream, devuwatecmemomouse.DefaultDeviceConfig())
	case family.UwatecSmart:
		return devuwatecsmart.Open(stream, devuwatecsmart.DefaultDeviceConfig())
	case family.OceanicAtom2:
		return devoceanicatom2.Open(stream, devoceanicatom2.DefaultDeviceConfig())
	case family.AtomicsCobalt:
		return devatomicscobalt.Open(stream)
	default:
		return nil, cli.Exit(fmt.Sprintf("family %s not wired into dctool yet", desc.Family), 1)
	}
}
