package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"fundb/core"
	"fundb/utils"
)

const defaultDBPath = "fundb.db"

type CLI struct {
	Out    io.Writer
	Logger *slog.Logger
}

func New() *CLI {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(slog.LevelInfo),
	}))
	return &CLI{Out: os.Stdout, Logger: logger}
}

func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseLogLevel reads LOG_LEVEL, falling back when it is empty or unknown.
func parseLogLevel(fallback slog.Level) slog.Level {
	switch strings.ToLower(getenv("LOG_LEVEL", "")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func dbPath() string {
	return getenv("FUNDB_PATH", defaultDBPath)
}

func (c *CLI) printUsage() {
	fmt.Fprintln(c.Out, "Usage:")
	fmt.Fprintln(c.Out, "  encode -value N")
	fmt.Fprintln(c.Out, "  hex -text TEXT")
	fmt.Fprintln(c.Out, "  put -value TEXT")
	fmt.Fprintln(c.Out, "  get -id N")
	fmt.Fprintln(c.Out, "  list")
	fmt.Fprintln(c.Out, "  verify")
}

func (c *CLI) encode(value int64) error {
	arr := utils.ToArray(value)
	if _, err := utils.HexEncode(arr[:], c.Out); err != nil {
		return err
	}
	_, err := fmt.Fprintln(c.Out)
	return err
}

func (c *CLI) hex(text string) error {
	_, err := fmt.Fprintln(c.Out, utils.HexEncodeString(text))
	return err
}

func (c *CLI) printRecord(r *core.Record) error {
	key := r.Key()
	_, err := fmt.Fprintf(c.Out, "===== Record %d =====\nKey: %s\nTimestamp: %d\nValue: %s\nDigest: %s\n\n",
		r.ID,
		utils.AppendHex(nil, key[:]),
		r.Timestamp,
		utils.AppendHex(nil, r.Value),
		r.DigestHex(),
	)
	return err
}

func (c *CLI) put(value string) error {
	s, err := core.OpenStore(dbPath(), c.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	r, err := s.Append([]byte(value))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Out, "%d %s\n", r.ID, r.DigestHex())
	return err
}

var errNoStore = errors.New("no database found; run put first")

func (c *CLI) get(id int64) error {
	if !core.StoreExists(dbPath()) {
		return fmt.Errorf("get record %d: %w", id, errNoStore)
	}
	s, err := core.OpenStoreReadOnly(dbPath(), c.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	r, err := s.Get(id)
	if err != nil {
		return err
	}
	return c.printRecord(r)
}

// each calls fn for every record in id order. A missing database holds no records.
func (c *CLI) each(fn func(*core.Record) error) error {
	if !core.StoreExists(dbPath()) {
		c.Logger.Info("no database found", "path", dbPath())
		return nil
	}
	s, err := core.OpenStoreReadOnly(dbPath(), c.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	it := s.Iterator()
	for {
		r, err := it.Next()
		if err != nil {
			return err
		}
		if r == nil {
			return nil
		}
		if err := fn(r); err != nil {
			return err
		}
	}
}

func (c *CLI) list() error {
	return c.each(c.printRecord)
}

var errVerifyFailed = errors.New("digest verification failed")

func (c *CLI) verify() error {
	bad := 0
	err := c.each(func(r *core.Record) error {
		if !r.Verify() {
			c.Logger.Warn("digest mismatch", "id", r.ID, "digest", r.DigestHex())
			bad++
		}
		return nil
	})
	if err != nil {
		return err
	}
	if bad > 0 {
		return fmt.Errorf("%w: %d records", errVerifyFailed, bad)
	}
	_, err = fmt.Fprintln(c.Out, "OK")
	return err
}

// Run executes the subcommand named by args[0] and returns the process exit code.
func (c *CLI) Run(args []string) int {
	if len(args) < 1 {
		c.printUsage()
		return 1
	}

	encodeCmd := flag.NewFlagSet("encode", flag.ContinueOnError)
	hexCmd := flag.NewFlagSet("hex", flag.ContinueOnError)
	putCmd := flag.NewFlagSet("put", flag.ContinueOnError)
	getCmd := flag.NewFlagSet("get", flag.ContinueOnError)
	listCmd := flag.NewFlagSet("list", flag.ContinueOnError)
	verifyCmd := flag.NewFlagSet("verify", flag.ContinueOnError)

	encodeValue := encodeCmd.Int64("value", 0, "Integer to encode")
	hexText := hexCmd.String("text", "", "Text to hex encode")
	putValue := putCmd.String("value", "", "Value to store")
	getID := getCmd.Int64("id", 0, "Record id")

	var fs *flag.FlagSet
	var run func() error

	switch args[0] {
	case "encode":
		fs, run = encodeCmd, func() error { return c.encode(*encodeValue) }
	case "hex":
		fs, run = hexCmd, func() error { return c.hex(*hexText) }
	case "put":
		fs, run = putCmd, func() error { return c.put(*putValue) }
	case "get":
		fs, run = getCmd, func() error {
			if *getID <= 0 {
				return errors.New("-id (>0) is required")
			}
			return c.get(*getID)
		}
	case "list":
		fs, run = listCmd, c.list
	case "verify":
		fs, run = verifyCmd, c.verify
	default:
		c.printUsage()
		return 1
	}

	fs.SetOutput(c.Out)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if err := run(); err != nil {
		c.Logger.Error("command failed", "command", args[0], "error", err)
		return 1
	}
	return 0
}
