package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const usage = `usage: admin <command> [flags]

live (talks to a running server over the loopback admin API):
  state | plots | traders | schemas
  create-plot -pos x,y,z [-force]
  move-plot -id plot_N -pos x,y,z
  rotate-plot -id plot_N
  remove-plot -id plot_N [-force]
  remove-trader -id trader_N
  clear-empty-plots | clear-empty-traders | clear-all
  reload | snapshot | sweep
  receipts [-trader ID] [-buyer ID] [-seller ID] [-limit N]
  snapshots [-limit N]

offline (reads the data directory):
  worlds
  inspect -world ID [-snapshot PATH]
  audit -world ID [-action A] [-actor P] [-since_tick N] [-to_tick N]
  purchases -world ID [-buyer ID] [-seller ID]
  db -world ID [receipts|snapshots]
`

func main() {
	if len(os.Args) < 2 {
		worldsCmd(nil)
		return
	}
	cmd, args := os.Args[1], os.Args[2:]
	if run, ok := liveCommands[cmd]; ok {
		run(cmd, args)
		return
	}
	switch cmd {
	case "worlds":
		worldsCmd(args)
	case "inspect":
		inspectCmd(args)
	case "audit":
		auditCmd(args)
	case "purchases":
		purchasesCmd(args)
	case "db":
		dbCmd(args)
	case "help", "-h", "-help", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func worldsCmd(args []string) {
	fs := flag.NewFlagSet("worlds", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(n)
	}
}

// worldDirFlag registers the shared -data/-world flags and returns a
// resolver for the world directory.
func worldDirFlag(fs *flag.FlagSet) func() string {
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	return func() string {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world")
			os.Exit(2)
		}
		return filepath.Join(*dataDir, "worlds", *worldID)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
