package db

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
)

// RunMigrateCommand handles the migrate subcommand.
func RunMigrateCommand(args []string, dbPath string) error {
	return runMigrate(os.Stdin, os.Stdout, args, dbPath)
}

func runMigrate(in io.Reader, out io.Writer, args []string, dbPath string) error {
	if len(args) < 1 || args[0] == "help" {
		PrintMigrateHelp(out)
		if len(args) < 1 {
			return fmt.Errorf("missing migrate action")
		}
		return nil
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to get migrations filesystem: %w", err)
	}

	// Migrations manage the schema, so open without applying them.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		return printStatus(out, database, migrationsFS)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		return printStatus(out, database, migrationsFS)

	case "status":
		return printStatus(out, database, migrationsFS)

	case "version":
		if len(args) < 2 {
			return fmt.Errorf("usage: pointillist migrate version <version_number>")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if err := database.MigrateTo(migrationsFS, uint(v)); err != nil {
			return err
		}
		return printStatus(out, database, migrationsFS)

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: pointillist migrate force <version_number>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		fmt.Fprintf(out, "WARNING: forcing migration version to %d\n", v)
		fmt.Fprintln(out, "This should only be used to recover from a dirty migration state.")
		fmt.Fprint(out, "Continue? [y/N]: ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
		if err := database.MigrateForce(migrationsFS, v); err != nil {
			return err
		}
		return printStatus(out, database, migrationsFS)

	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printStatus(out io.Writer, database *DB, migrationsFS fs.FS) error {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.Current)
	fmt.Fprintf(out, "Latest available: %d\n", status.Latest)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	switch {
	case status.Dirty:
		fmt.Fprintln(out, "Database is in a dirty state. Inspect it, then run: pointillist migrate force <version>")
	case status.Pending() > 0:
		fmt.Fprintf(out, "%d migration(s) pending. Run: pointillist migrate up\n", status.Pending())
	default:
		fmt.Fprintln(out, "Database is up to date.")
	}
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprintln(out, "Database Migration Commands")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: pointillist migrate <command> [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  up              Apply all pending migrations")
	fmt.Fprintln(out, "  down            Rollback one migration")
	fmt.Fprintln(out, "  status          Show current migration status and version")
	fmt.Fprintln(out, "  version <N>     Migrate to specific version N")
	fmt.Fprintln(out, "  force <N>       Force migration version to N (recovery only)")
	fmt.Fprintln(out, "  help            Show this help message")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --db-path <path>    Path to database file (default: pointillist.db)")
}
