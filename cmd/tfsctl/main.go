// Command tfsctl is the command-line driver for package tfs (spec.md
// §1, §6: the CLI is an external collaborator, specified only by its
// use of the seven core operations). It runs a small script of
// operations against one in-process filesystem and can copy a
// resulting file out to the host filesystem for inspection.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"

	"github.com/go-tfs/tfs/internal/hostcopy"
	"github.com/go-tfs/tfs/tfs"
)

type csvDirEntry struct {
	Name    string `csv:"name"`
	Inumber int32  `csv:"inumber"`
}

func main() {
	app := &cli.App{
		Name:  "tfsctl",
		Usage: "drive the in-memory toy filesystem from a script of commands",
		Commands: []*cli.Command{
			runCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a script of tfs operations",
		ArgsUsage: "SCRIPT",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "csv", Usage: "print the final directory listing as CSV"},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("run: missing SCRIPT argument")
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			fs, err := tfs.New()
			if err != nil {
				return err
			}
			defer fs.Destroy()

			handles := map[string]int32{}
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				if err := execLine(fs, handles, scanner.Text()); err != nil {
					return err
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			if c.Bool("csv") {
				return printCSV(fs)
			}
			return nil
		},
	}
}

// execLine runs one script line. The grammar is deliberately tiny:
//
//	open ALIAS /path [FLAGS] (FLAGS: comma-separated of create,append,trunc)
//	write ALIAS TEXT
//	read ALIAS N
//	close ALIAS
//	lookup /path
//	copyout /path HOSTPATH
func execLine(fs *tfs.FS, handles map[string]int32, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}

	switch fields[0] {
	case "open":
		if len(fields) < 3 {
			return fmt.Errorf("open: need ALIAS PATH [FLAGS]")
		}
		flags := 0
		if len(fields) > 3 {
			flags = parseFlags(fields[3])
		}
		h, err := fs.Open(fields[2], flags)
		if err != nil {
			return fmt.Errorf("open %s: %w", fields[2], err)
		}
		handles[fields[1]] = h
	case "write":
		if len(fields) < 3 {
			return fmt.Errorf("write: need ALIAS TEXT")
		}
		h, ok := handles[fields[1]]
		if !ok {
			return fmt.Errorf("write: unknown alias %s", fields[1])
		}
		text := strings.Join(fields[2:], " ")
		n, err := fs.Write(h, []byte(text))
		if err != nil {
			return fmt.Errorf("write %s: %w", fields[1], err)
		}
		log.Printf("write %s: %d bytes", fields[1], n)
	case "read":
		if len(fields) < 3 {
			return fmt.Errorf("read: need ALIAS N")
		}
		h, ok := handles[fields[1]]
		if !ok {
			return fmt.Errorf("read: unknown alias %s", fields[1])
		}
		n, err := strconv.Atoi(fields[2])
		if err != nil {
			return err
		}
		buf := make([]byte, n)
		read, err := fs.Read(h, buf)
		if err != nil {
			return fmt.Errorf("read %s: %w", fields[1], err)
		}
		log.Printf("read %s: %q", fields[1], buf[:read])
	case "close":
		h, ok := handles[fields[1]]
		if !ok {
			return fmt.Errorf("close: unknown alias %s", fields[1])
		}
		delete(handles, fields[1])
		return fs.Close(h)
	case "lookup":
		inumber, err := fs.Lookup(fields[1])
		if err != nil {
			return fmt.Errorf("lookup %s: %w", fields[1], err)
		}
		log.Printf("lookup %s: inumber %d", fields[1], inumber)
	case "copyout":
		if len(fields) < 3 {
			return fmt.Errorf("copyout: need PATH HOSTPATH")
		}
		n, err := hostcopy.Copy(fs, fields[1], fields[2])
		if err != nil {
			return fmt.Errorf("copyout %s: %w", fields[1], err)
		}
		log.Printf("copyout %s -> %s: %d bytes", fields[1], fields[2], n)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}

func parseFlags(spec string) int {
	var flags int
	for _, f := range strings.Split(spec, ",") {
		switch strings.TrimSpace(f) {
		case "create":
			flags |= tfs.Create
		case "append":
			flags |= tfs.Append
		case "trunc":
			flags |= tfs.Trunc
		}
	}
	return flags
}

func printCSV(fs *tfs.FS) error {
	entries, err := fs.ListRoot()
	if err != nil {
		return err
	}
	rows := make([]csvDirEntry, len(entries))
	for i, e := range entries {
		rows[i] = csvDirEntry{Name: e.Name, Inumber: e.Inumber}
	}
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
