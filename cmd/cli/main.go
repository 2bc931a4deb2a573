package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nestdb/nestdb"
	"github.com/nestdb/nestdb/core"
	"github.com/nestdb/nestdb/engine/duckdb"
	"github.com/nestdb/nestdb/ps"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the interactive session state.
type CLI struct {
	instance    *nestdb.Instance
	safeMode    bool
	history     []string
	historyFile string
}

func main() {
	dsn := flag.String("dsn", "", "Engine DSN (in-memory if empty)")
	snapshot := flag.String("snapshot", "", "Snapshot file path (memory store if empty)")
	gitDir := flag.String("gitDir", "", "Git repository directory for versioned snapshots")
	sqlFile := flag.String("sqlFile", "", "SQL file to execute (non-interactive)")
	safeMode := flag.Bool("safeMode", false, "Start with safe mode on")
	flag.Parse()

	printBanner()

	eng, err := duckdb.Open(*dsn)
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		return
	}

	var store ps.Store
	switch {
	case *gitDir != "":
		fmt.Printf("%sUsing git snapshot store: %s%s\n", SuccessColor, *gitDir, ResetColor)
		store, err = ps.NewGitStore(*gitDir)
		if err != nil {
			fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
			return
		}
	case *snapshot != "":
		fmt.Printf("%sUsing file snapshot store: %s%s\n", SuccessColor, *snapshot, ResetColor)
		store = ps.NewFileStore(*snapshot)
	default:
		fmt.Printf("%sUsing memory snapshot store%s\n", SuccessColor, ResetColor)
		store = ps.NewMemoryStore()
	}

	instance, err := nestdb.Open(context.Background(), eng, store, ps.Options{})
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	defer instance.Close()

	cli := &CLI{
		instance:    instance,
		safeMode:    *safeMode,
		history:     make([]string, 0),
		historyFile: getHistoryPath(),
	}

	cli.loadHistory()

	if *sqlFile != "" {
		if err := cli.importFile(*sqlFile); err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	cli.run()
}

func printBanner() {
	fmt.Println()
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("NestDB v%s", Version)
	padding := bannerWidth - len(versionLine) - 2 // -2 for "  " margins
	if padding < 0 {
		padding = 0
	}
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Printf("%s%s║   Virtual databases, one engine       ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)
	var multiLineBuffer strings.Builder

	for {
		fmt.Print(cli.getPrompt(multiLineBuffer.Len() > 0))

		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		// dot commands only apply outside a multi-line statement
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if cli.handleCommand(input) {
				continue
			}
		}

		// accumulate until the statement closes with a semicolon
		multiLineBuffer.WriteString(input)
		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		query := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(query) == "" {
			continue
		}

		cli.addToHistory(query + ";")
		cli.execute(query)
	}
}

func (cli *CLI) execute(query string) {
	res := cli.instance.Execute(context.Background(), query, core.ExecOptions{
		SafeMode: cli.safeMode,
	})
	if !res.Success {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, res.Err, ResetColor)
		return
	}
	if res.Warning != "" {
		fmt.Printf("%s⚠ %s%s\n", PromptColor, res.Warning, ResetColor)
	}
	res.Display(os.Stdout)
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	dbPart := fmt.Sprintf(" (%s)", cli.instance.Manager.ActiveDatabase())
	if cli.safeMode {
		dbPart += " [safe]"
	}
	return fmt.Sprintf("%snestdb%s>%s ", PromptColor, dbPart, ResetColor)
}

func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	ctx := context.Background()

	switch cmd {
	case ".quit", ".exit", ".q":
		fmt.Printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.saveHistory()
		cli.instance.Close()
		os.Exit(0)

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		database := cli.instance.Manager.ActiveDatabase()
		if len(parts) > 1 {
			database = parts[1]
		}
		cli.showTables(database)

	case ".databases", ".dbs":
		cli.showDatabases()

	case ".use":
		if len(parts) > 1 {
			if err := cli.instance.Manager.SetActive(ctx, parts[1]); err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			} else {
				fmt.Printf("%s✓ Using database: %s%s\n", SuccessColor, parts[1], ResetColor)
			}
		} else {
			fmt.Printf("%s✗ Usage: .use <database>%s\n", ErrorColor, ResetColor)
		}

	case ".safemode":
		if len(parts) > 1 {
			cli.safeMode = strings.EqualFold(parts[1], "on")
		} else {
			cli.safeMode = !cli.safeMode
		}
		statusWord := "off"
		if cli.safeMode {
			statusWord = "on"
		}
		fmt.Printf("%s✓ Safe mode %s%s\n", SuccessColor, statusWord, ResetColor)

	case ".stats":
		database := cli.instance.Manager.ActiveDatabase()
		if len(parts) > 1 {
			database = parts[1]
		}
		stats, err := cli.instance.Manager.Stats(ctx, database)
		if err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		} else {
			fmt.Printf("%s: %d tables, %d rows, ~%d bytes\n", stats.Name, stats.Tables, stats.Rows, stats.ByteSize)
		}

	case ".export":
		if len(parts) < 3 {
			fmt.Printf("%s✗ Usage: .export <database> <target>%s\n", ErrorColor, ResetColor)
			break
		}
		if err := cli.instance.Manager.ExportDatabase(ctx, parts[1], parts[2], nil); err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		} else {
			fmt.Printf("%s✓ Exported %s to %s%s\n", SuccessColor, parts[1], parts[2], ResetColor)
		}

	case ".import":
		if len(parts) > 1 {
			if err := cli.importFile(parts[1]); err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
			}
		} else {
			fmt.Printf("%s✗ Usage: .import <file.sql|url>%s\n", ErrorColor, ResetColor)
		}

	case ".reset":
		if err := cli.instance.Manager.Reset(ctx); err != nil {
			fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		} else {
			fmt.Printf("%s✓ All databases dropped; empty default restored%s\n", SuccessColor, ResetColor)
		}

	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Printf("NestDB version %s\n", Version)

	default:
		fmt.Printf("%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return true
}

func (cli *CLI) printHelp() {
	fmt.Println()
	fmt.Printf("%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .help, .h          Show this help message")
	fmt.Println("  .quit, .exit       Exit the CLI")
	fmt.Println("  .databases         List all databases")
	fmt.Println("  .tables [db]       List tables in a database")
	fmt.Println("  .use <db>          Set the current database context")
	fmt.Println("  .safemode [on|off] Toggle blocking of destructive statements")
	fmt.Println("  .stats [db]        Show table/row counts and size")
	fmt.Println("  .export <db> <to>  Dump a database to a file or s3:// URL")
	fmt.Println("  .import <from>     Replay a SQL dump (file, http(s):// or s3://)")
	fmt.Println("  .reset             Drop everything, restore an empty default")
	fmt.Println("  .history           Show command history")
	fmt.Println("  .clear             Clear the screen")
	fmt.Println("  .version           Show version info")
	fmt.Println()
	fmt.Printf("%s%sSQL:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  Bare table names resolve against the current database;")
	fmt.Println("  USE <db>; switches it. End statements with a semicolon.")
	fmt.Println("  FORM <table> renders an input form from table metadata.")
	fmt.Println()
}

func (cli *CLI) showDatabases() {
	names, err := cli.instance.Manager.DatabaseNames(context.Background())
	if err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	system := cli.instance.Executor.SystemDatabase()
	active := cli.instance.Manager.ActiveDatabase()
	for _, name := range names {
		if name == system {
			continue
		}
		marker := "  "
		if name == active {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, name)
	}
}

func (cli *CLI) showTables(database string) {
	tables, err := cli.instance.Manager.Tables(context.Background(), database)
	if err != nil {
		fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
		return
	}
	if len(tables) == 0 {
		fmt.Printf("No tables in %s\n", database)
		return
	}
	for _, t := range tables {
		fmt.Printf("  %s\n", t)
	}
}

func (cli *CLI) addToHistory(cmd string) {
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)
	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Println("No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}
	for i := start; i < len(cli.history); i++ {
		fmt.Printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nestdb_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}
	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// importFile replays SQL statements from a local file or URL, reporting
// per-statement progress through the persistence manager's import path.
func (cli *CLI) importFile(source string) error {
	if err := cli.instance.Manager.ImportDump(context.Background(), source, nil); err != nil {
		return err
	}
	fmt.Printf("%s✓ Import complete%s\n", SuccessColor, ResetColor)
	return nil
}
