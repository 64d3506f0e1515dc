package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/andys/unlscrub/db"
	"github.com/urfave/cli/v2"
)

func main() {
	var schemaFile string
	var showColumns bool

	app := &cli.App{
		Name:  "unlschema",
		Usage: "Summarize the tables described by an export's DDL file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "schema",
				Aliases:     []string{"f"},
				Usage:       "DDL file written by the database unload (e.g. test_live.sql)",
				Required:    true,
				EnvVars:     []string{"UNLSCRUB_SCHEMA"},
				Destination: &schemaFile,
			},
			&cli.BoolFlag{
				Name:        "columns",
				Usage:       "List every column with its type",
				Destination: &showColumns,
			},
		},
		Action: func(c *cli.Context) error {
			catalog, err := db.ParseSchemaFile(schemaFile)
			if err != nil {
				return fmt.Errorf("failed to parse schema: %w", err)
			}

			totalColumns := 0
			for _, name := range catalog.Tables() {
				table, _ := catalog.Lookup(name)
				totalColumns += len(table.Columns)
				fmt.Printf("%-32s %-20s %3d columns\n", table.Name, table.DataFile, len(table.Columns))
				if !showColumns {
					continue
				}
				for _, col := range table.Columns {
					var flags []string
					if col.IsID {
						flags = append(flags, "id")
					}
					if !col.Nullable {
						flags = append(flags, "not null")
					}
					if col.MaxLength > 0 {
						flags = append(flags, fmt.Sprintf("max %d", col.MaxLength))
					}
					fmt.Printf("    %-28s %-10s %s\n", col.Name, col.Type, strings.Join(flags, ", "))
				}
			}
			fmt.Printf("\nFound %d tables with %d total columns\n", len(catalog), totalColumns)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
