// Package main provides a CLI tool for inspecting and maintaining a Vaultbox
// base directory without the server running.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"golang.org/x/term"

	"github.com/fruitsalade/vaultbox/internal/config"
	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/storage"
	"github.com/fruitsalade/vaultbox/internal/vault"
	"github.com/fruitsalade/vaultbox/internal/zones"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("Configuration error: %v", err)
	}

	baseDir := flag.String("base", cfg.BaseDir, "Base directory")
	settingsFile := flag.String("settings", cfg.SettingsFile, "Storage settings file")
	yes := flag.Bool("yes", false, "Skip confirmation for destructive commands")
	verbose := flag.Bool("v", false, "Log zone operations")

	flag.Parse()

	if err := logging.Init(logging.Config{Level: "warn", Format: "console"}); err != nil {
		fatalf("Logging init error: %v", err)
	}
	defer logging.Sync()
	if *verbose {
		logging.SetLevel("debug")
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	settings, _, err := config.LoadSettings(*settingsFile, cfg.Limits)
	if err != nil {
		fatalf("Error loading settings: %v", err)
	}
	zm, err := zones.New(zones.Options{BaseDir: *baseDir, Limits: settings.Limits()})
	if err != nil {
		fatalf("Error opening base directory: %v", err)
	}

	cmd := args[0]
	cmdArgs := args[1:]
	ctx := context.Background()

	switch cmd {
	case "tree":
		cmdTree(ctx, zm, cmdArgs)
	case "storage", "df":
		cmdStorage(ctx, zm)
	case "vault":
		cmdVault(zm, cmdArgs, cfg.BcryptCost, *yes)
	case "recover":
		cmdRecover(zm)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Vaultbox CLI

Usage: vaultctl [flags] <command> [args]

Flags:
  -base <dir>        Base directory (default: $BASE_DIR or ./uploads)
  -settings <file>   Storage settings file (default: settings.yaml)
  -yes               Skip confirmation for destructive commands
  -v                 Log zone operations

Commands:
  tree [zone] [path]  Print the entry tree of a zone (active, trash, vault)
  storage, df         Show storage usage
  vault status        Show whether a vault password is set
  vault set-password  Set or change the vault password
  vault reset         Clear the vault password
  recover             Complete or roll back interrupted moves
  help                Show this help message

Examples:
  vaultctl tree
  vaultctl tree active projects
  vaultctl -base /srv/vaultbox storage
  vaultctl vault set-password`)
}

func cmdTree(ctx context.Context, zm *zones.Manager, args []string) {
	zone := zones.Active
	if len(args) > 0 {
		z, err := zones.ParseZone(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		zone = z
	}
	var rel string
	if len(args) > 1 {
		rel = args[1]
	}

	entries, err := zm.List(ctx, zone, rel)
	if err != nil {
		fatalf("Error listing %s: %v", zone, err)
	}
	label := string(zone)
	if rel != "" {
		label += ":" + rel
	}
	fmt.Print(renderTree(label, entries))
}

func cmdStorage(ctx context.Context, zm *zones.Manager) {
	info, err := zm.StorageInfo(ctx)
	if err != nil {
		fatalf("Error reading storage: %v", err)
	}
	limits := zm.Limits()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Base directory:\t%s\n", zm.BaseDir())
	fmt.Fprintf(w, "Used:\t%s (%.1f%%)\n", storage.FormatSize(info.Used), info.Percentage)
	fmt.Fprintf(w, "Limit:\t%s\n", storage.FormatSize(info.Total))
	fmt.Fprintf(w, "Free:\t%s\n", storage.FormatSize(info.Free))
	fmt.Fprintf(w, "Trash:\t%s\n", storage.FormatSize(info.TrashBytes))
	fmt.Fprintf(w, "Vault:\t%s\n", storage.FormatSize(info.VaultBytes))
	fmt.Fprintf(w, "Max file size:\t%s\n", storage.FormatSize(limits.FileSizeLimit))
	if info.DiskFree != nil {
		fmt.Fprintf(w, "Disk free:\t%s\n", storage.FormatSize(*info.DiskFree))
	}
	w.Flush()
}

func cmdVault(zm *zones.Manager, args []string, cost int, yes bool) {
	if len(args) == 0 {
		fatalf("Usage: vaultctl vault <status|set-password|reset>")
	}
	store := vault.NewStore(afero.NewOsFs(), zm.VaultConfigPath(), cost)
	if err := store.Ensure(); err != nil {
		fatalf("Error opening vault config: %v", err)
	}

	switch args[0] {
	case "status":
		configured, err := store.IsConfigured()
		if err != nil {
			fatalf("Error reading vault config: %v", err)
		}
		if configured {
			fmt.Println("Vault password: set")
		} else {
			fmt.Println("Vault password: not set")
		}
		if changed, err := store.ChangedAt(); err == nil && !changed.IsZero() {
			fmt.Printf("Last changed:   %s\n", changed.Local().Format("2006-01-02 15:04:05"))
		}

	case "set-password":
		in := bufio.NewReader(os.Stdin)
		var current string
		if configured, err := store.IsConfigured(); err != nil {
			fatalf("Error reading vault config: %v", err)
		} else if configured {
			current = readSecret(in, "Current password: ")
		}
		next := readSecret(in, "New password: ")
		if again := readSecret(in, "Repeat new password: "); again != next {
			fatalf("Passwords do not match")
		}
		if err := store.SetPassword(current, next); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Println("Vault password updated")

	case "reset":
		if !yes && !confirm("Clear the vault password? Vault contents are kept.") {
			fmt.Println("Aborted")
			return
		}
		if err := store.Reset(); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Println("Vault password cleared")

	default:
		fatalf("Unknown vault command: %s", args[0])
	}
}

func cmdRecover(zm *zones.Manager) {
	report, err := zm.Recover()
	fmt.Printf("Pending moves: %d (completed %d, rolled back %d, dropped %d)\n",
		report.Total(), report.Completed, report.RolledBack, report.Dropped)
	if err != nil {
		fatalf("Recovery incomplete: %v", err)
	}
}

// readSecret reads one line without echo when stdin is a terminal.
func readSecret(in *bufio.Reader, prompt string) string {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fatalf("Error reading password: %v", err)
		}
		return string(b)
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		fatalf("Error reading password: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
