// chainstate-inspect is an operator tool for examining an existing
// chainstate data directory.
//
// Usage:
//
//	chainstate-inspect [--datadir=...] stats           Scan the coin set and print aggregates
//	chainstate-inspect [--datadir=...] best            Print the best-block hash
//	chainstate-inspect [--datadir=...] flags           Dump the stored flags
//	chainstate-inspect [--datadir=...] verify-index    Check the script index against the coin set
//	chainstate-inspect [--datadir=...] rebuild-index   Rebuild the script index from the coin set
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emberchain/chainstate/config"
	"github.com/emberchain/chainstate/internal/blockmeta"
	"github.com/emberchain/chainstate/internal/coindb"
	"github.com/emberchain/chainstate/internal/log"
	"github.com/emberchain/chainstate/internal/state"
)

func main() {
	cfg := config.Default()
	cfg.Log.Level = "warn"

	// Scan for global flags that appear before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--datadir" && len(args) > 1:
			cfg.DataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			cfg.DataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--verbose" || args[0] == "-v":
			cfg.Log.Level = "debug"
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Level, false, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Inspection is read-only at the command level; the script index is
	// enabled so rebuild-index can run against any data dir.
	cfg.ScriptIndex = true

	s, err := state.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	cmd := args[0]
	switch cmd {
	case "stats":
		err = cmdStats(s)
	case "best":
		err = cmdBest(s)
	case "flags":
		err = cmdFlags(s)
	case "verify-index":
		err = cmdVerifyIndex(s)
	case "rebuild-index":
		err = cmdRebuildIndex(s)
	case "help", "--help", "-h":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `chainstate-inspect - examine a chainstate data directory

Usage:
  chainstate-inspect [options] <command>

Options:
  --datadir <dir>   Data directory (default: %s)
  --verbose, -v     Debug logging

Commands:
  stats             Scan the coin set and print aggregates
  best              Print the best-block hash
  flags             Dump the stored flags
  verify-index      Check the script index against the coin set
  rebuild-index     Rebuild the script index from the coin set
`, config.DefaultDataDir())
}

func cmdStats(s *state.State) error {
	stats, err := s.Coins.Stats()
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdBest(s *state.State) error {
	best, err := s.Coins.BestBlock()
	if err != nil {
		return err
	}
	if best.IsZero() {
		fmt.Println("(unset)")
		return nil
	}
	fmt.Println(best.String())
	return nil
}

func cmdFlags(s *state.State) error {
	for _, name := range []string{blockmeta.FlagTxIndex, blockmeta.FlagReindexing} {
		v, err := s.BlockMeta.GetFlag(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %v\n", name, v)
	}
	return nil
}

func cmdVerifyIndex(s *state.State) error {
	err := s.Coins.VerifyScriptIndex()
	if errors.Is(err, coindb.ErrIndexInconsistent) {
		fmt.Printf("INCONSISTENT: %v\n", err)
		fmt.Println("Run 'chainstate-inspect rebuild-index' to repair.")
		os.Exit(1)
	}
	if err != nil {
		return err
	}
	fmt.Println("OK: script index matches the coin set")
	return nil
}

func cmdRebuildIndex(s *state.State) error {
	if err := s.Coins.RebuildScriptIndex(); err != nil {
		return err
	}
	fmt.Println("Script index rebuilt.")
	return nil
}
