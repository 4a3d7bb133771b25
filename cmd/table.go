package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"tablature/config"
	"tablature/core"
	"tablature/database"
	"tablature/i18n"
	"tablature/logger"
	"tablature/models"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var (
	scriptLang     string
	scriptCheck    bool
	rowsQ          string
	rowsChoices    string
	rowsOrderings  string
	rowsPage       int
	importFile     string
	importArray    string
	importFieldMap []string
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Inspect configured tables and load data into them",
}

// tableContext returns the service and the named definition with its stored layout.
func tableContext(ctx context.Context, name string) (*core.TableService, config.TableDefinition, *models.TableLayoutConfig, error) {
	svc := core.NewTableService(config.AppConfig.Tables)
	def, err := svc.Definition(name)
	if err != nil {
		return nil, def, nil, err
	}
	layout, ok, err := database.GetTableLayout(ctx, def.Name)
	if err != nil {
		logger.Error("table: Error loading layout for %s: %v", def.Name, err)
		return svc, def, nil, nil
	}
	if !ok {
		return svc, def, nil, nil
	}
	return svc, def, &layout, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var tableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured tables",
	Run: func(cmd *cobra.Command, args []string) {
		summaries := core.NewTableService(config.AppConfig.Tables).Summaries()
		if len(summaries) == 0 {
			fmt.Println("No tables are defined in the configuration.")
			return
		}

		writer := new(tabwriter.Writer)
		writer.Init(os.Stdout, 0, 8, 1, '\t', 0)
		fmt.Fprintln(writer, "NAME\tTITLE\tSOURCE\tCOLUMNS")
		fmt.Fprintln(writer, "----\t-----\t------\t-------")
		for _, s := range summaries {
			cols := strings.Join(s.Columns, ", ")
			if cols == "" {
				cols = "(all)"
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", s.Name, s.Title, s.Source, cols)
		}
		writer.Flush()
		logger.Info("Successfully listed %d tables", len(summaries))
	},
}

var tableConfigCmd = &cobra.Command{
	Use:   "config <name>",
	Short: "Print the widget configuration of a table as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, def, layout, err := tableContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cfg, err := svc.Config(cmd.Context(), def, layout)
		if err != nil {
			logger.Error("table config: %v", err)
			return err
		}
		return printJSON(cfg)
	},
}

var tableScriptCmd = &cobra.Command{
	Use:   "script <name>",
	Short: "Print the init script that constructs the widget for a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, def, layout, err := tableContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tableInit, err := svc.Init(cmd.Context(), def, layout)
		if err != nil {
			logger.Error("table script: %v", err)
			return err
		}

		emitter, err := cliEmitter(scriptLang)
		if err != nil {
			return err
		}
		script, err := emitter.Emit(tableInit)
		if err != nil {
			return err
		}
		if scriptCheck {
			if err := emitter.VerifyScript(script, tableInit); err != nil {
				logger.Error("table script: verification failed for %s: %v", def.Name, err)
				return err
			}
			fmt.Fprintln(os.Stderr, "Script verified: every literal decodes to its input.")
		}
		fmt.Print(script)
		return nil
	},
}

// cliEmitter builds an emitter for --lang, or the configured default locale.
func cliEmitter(lang string) (*core.TableConfigEmitter, error) {
	hook, err := core.ParseReadyHook(config.AppConfig.Widget.ReadyHook)
	if err != nil {
		return nil, fmt.Errorf("widget.ready_hook: %w", err)
	}
	catalog, err := i18n.Default()
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = config.AppConfig.I18n.DefaultLocale
	}
	tag, ok := catalog.ParseTag(lang)
	if !ok {
		logger.Warn("No translations for %q; labels stay untranslated", lang)
		tag = language.Und
	}
	return core.NewTableConfigEmitter(i18n.Printer(tag),
		core.WithSelector(config.AppConfig.Widget.Selector),
		core.WithReadyHook(hook)), nil
}

var tableRowsCmd = &cobra.Command{
	Use:   "rows <name>",
	Short: "Print one page of rows the way the widget would request it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, def, layout, err := tableContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		values := url.Values{}
		if rowsQ != "" {
			values.Set("q", rowsQ)
		}
		if rowsChoices != "" {
			values.Set("choices", rowsChoices)
		}
		if rowsOrderings != "" {
			values.Set("orderings", rowsOrderings)
		}
		values.Set("page", fmt.Sprint(rowsPage))

		dq, err := core.ParseDataQuery(values)
		if err != nil {
			return err
		}
		data, err := svc.Data(cmd.Context(), def, dq, layout)
		if err != nil {
			logger.Error("table rows: %v", err)
			return err
		}

		cfg, err := svc.Config(cmd.Context(), def, layout)
		if err != nil {
			return err
		}
		writer := new(tabwriter.Writer)
		writer.Init(os.Stdout, 0, 8, 1, '\t', 0)
		fmt.Fprintln(writer, strings.Join(cfg.Columns, "\t"))
		for _, row := range data.Results {
			fmt.Fprintln(writer, strings.Join(row, "\t"))
		}
		writer.Flush()
		fmt.Printf("%d of %d %s\n", len(data.Results), data.Count, core.PhraseResults)
		return nil
	},
}

var tableImportCmd = &cobra.Command{
	Use:   "import <name>",
	Short: "Load rows from a JSON file into the source table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, def, _, err := tableContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if importFile == "" {
			return fmt.Errorf("--file is required")
		}
		data, err := os.ReadFile(importFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", importFile, err)
		}

		fields := make(map[string]string, len(importFieldMap))
		for _, pair := range importFieldMap {
			col, path, ok := strings.Cut(pair, "=")
			if !ok || col == "" || path == "" {
				return fmt.Errorf("--field expects column=path, got %q", pair)
			}
			fields[col] = path
		}

		n, err := core.ImportJSON(cmd.Context(), def, data, core.ImportOptions{
			ArrayPath:  importArray,
			Fields:     fields,
			SourceName: filepath.Base(importFile),
		})
		if err != nil {
			logger.Error("table import: %v", err)
			return err
		}
		fmt.Printf("Imported %d rows into %s.\n", n, def.Source)
		logger.Info("Imported %d rows from %s into %s", n, importFile, def.Source)
		return nil
	},
}

var tableImportsCmd = &cobra.Command{
	Use:   "imports <name>",
	Short: "Show the import history of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, def, _, err := tableContext(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		records, err := database.ListImports(cmd.Context(), def.Source)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("No imports recorded for %s.\n", def.Source)
			return nil
		}
		writer := new(tabwriter.Writer)
		writer.Init(os.Stdout, 0, 8, 1, '\t', 0)
		fmt.Fprintln(writer, "ID\tSOURCE FILE\tROWS\tIMPORTED AT")
		fmt.Fprintln(writer, "--\t-----------\t----\t-----------")
		for _, r := range records {
			fmt.Fprintf(writer, "%d\t%s\t%d\t%s\n", r.ID, r.SourceName, r.RowsImported, r.ImportedAt.Format("2006-01-02 15:04:05"))
		}
		writer.Flush()
		return nil
	},
}

func init() {
	tableScriptCmd.Flags().StringVar(&scriptLang, "lang", "", "language for the widget labels (default is i18n.default_locale)")
	tableScriptCmd.Flags().BoolVar(&scriptCheck, "check", false, "re-parse the script and verify every literal")

	tableRowsCmd.Flags().StringVar(&rowsQ, "q", "", "search text")
	tableRowsCmd.Flags().StringVar(&rowsChoices, "choices", "", "comma-separated filter choice per column (empty for none)")
	tableRowsCmd.Flags().StringVar(&rowsOrderings, "orderings", "", "comma-separated -1/0/1 ordering per column")
	tableRowsCmd.Flags().IntVar(&rowsPage, "page", 0, "zero-based page number")

	tableImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "JSON file to import")
	tableImportCmd.Flags().StringVar(&importArray, "array-path", "", "gjson path of the row array (default is the document root)")
	tableImportCmd.Flags().StringArrayVar(&importFieldMap, "field", nil, "column=path mapping, repeatable")

	tableCmd.AddCommand(tableListCmd, tableConfigCmd, tableScriptCmd, tableRowsCmd, tableImportCmd, tableImportsCmd)
	rootCmd.AddCommand(tableCmd)
}
