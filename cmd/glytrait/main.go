package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"glytrait/internal/config"
	"glytrait/internal/database"
	"glytrait/internal/export"
	"glytrait/internal/formula"
	"glytrait/internal/glycan"
	"glytrait/internal/loader"
	"glytrait/internal/meta"
	"glytrait/internal/postfilter"
	"glytrait/internal/preprocess"
	"glytrait/internal/stats"
	"glytrait/internal/workflow"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "glytrait",
		Short: "Derive glycan traits from glycomics abundance tables",
	}
	cfgPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a YAML config file (optional)")

	runCmd.Flags().StringVarP(&runMode, "mode", "m", "structure", `Glycan representation, "structure" or "composition"`)
	runCmd.Flags().BoolVarP(&runSiaLinkage, "sia-linkage", "l", false, "Include sialic acid linkage traits")
	runCmd.Flags().Float64VarP(&runFilterRatio, "filter-glycan-ratio", "r", 1, "Drop glycans missing in more than this ratio of samples")
	runCmd.Flags().StringVarP(&runImpute, "impute-method", "i", "zero", "Imputation for missing values: zero, min, lod, mean or median")
	runCmd.Flags().BoolVar(&runNoFilter, "no-filter", false, "Keep uninformative and collinear traits")
	runCmd.Flags().Float64Var(&runCorrThresh, "corr-threshold", 1, "Correlation threshold for trait filtering, -1 keeps all correlated traits")
	runCmd.Flags().StringVar(&runCorrMethod, "corr-method", "pearson", "Correlation method for trait filtering: pearson or spearman")
	runCmd.Flags().StringVarP(&runFormulaFile, "formula-file", "f", "", "Custom trait formula file")
	runCmd.Flags().StringVarP(&runGroupFile, "group-file", "g", "", "CSV mapping samples to groups for differential analysis")
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "Directory for result files (default <input>_glytrait)")
	runCmd.Flags().StringVarP(&runDatabase, "database", "d", "", "Built-in library name or SQLite structure database")
	runCmd.Flags().StringVar(&runArchive, "archive", "", "SQLite file to archive this run into")

	dbCmd.PersistentFlags().StringVar(&dbFile, "db", "glytrait.db", "Path to the SQLite structure database")
	dbImportCmd.Flags().StringVarP(&dbName, "name", "n", "", "Library name (default: file name without extension)")

	formulaCmd.AddCommand(formulaExportCmd)
	formulaCmd.AddCommand(formulaTemplateCmd)
	dbCmd.AddCommand(dbImportCmd)
	dbCmd.AddCommand(dbListCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(formulaCmd)
	rootCmd.AddCommand(dbCmd)
}

var (
	runMode        string
	runSiaLinkage  bool
	runFilterRatio float64
	runImpute      string
	runNoFilter    bool
	runCorrThresh  float64
	runCorrMethod  string
	runFormulaFile string
	runGroupFile   string
	runOutputDir   string
	runDatabase    string
	runArchive     string
)

// applyRunFlags layers explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Run.Mode = runMode
	}
	if flags.Changed("sia-linkage") {
		cfg.Run.SiaLinkage = runSiaLinkage
	}
	if flags.Changed("filter-glycan-ratio") {
		cfg.Run.FilterMaxNA = runFilterRatio
	}
	if flags.Changed("impute-method") {
		cfg.Run.ImputeMethod = runImpute
	}
	if flags.Changed("no-filter") {
		cfg.Run.PostFiltering = !runNoFilter
	}
	if flags.Changed("corr-threshold") {
		cfg.Run.CorrThreshold = runCorrThresh
	}
	if flags.Changed("corr-method") {
		cfg.Run.CorrMethod = runCorrMethod
	}
	if flags.Changed("formula-file") {
		cfg.Paths.FormulaFile = runFormulaFile
	}
	if flags.Changed("group-file") {
		cfg.Paths.GroupFile = runGroupFile
	}
	if flags.Changed("output-dir") {
		cfg.Paths.OutputDir = runOutputDir
	}
	if flags.Changed("database") {
		cfg.Paths.Database = runDatabase
	}
	if flags.Changed("archive") {
		cfg.Paths.ArchiveDB = runArchive
	}
	if len(args) > 1 {
		cfg.Paths.StructureFile = args[1]
	}
}

// readStructurePath reads a structure CSV, or every CSV in a directory.
func readStructurePath(path string) ([]loader.StructureRow, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return loader.ReadStructureDir(path)
	}
	return loader.ReadStructureFile(path)
}

// openLibrary resolves a --database value. It is either the name of a
// built-in library, or a SQLite file written by "glytrait db import",
// optionally suffixed with ":<library>" when the file holds several.
func openLibrary(ctx context.Context, value string) ([]loader.StructureRow, error) {
	if rows, err := database.Builtin(value); err == nil {
		return rows, nil
	}

	path, lib := value, ""
	if i := strings.LastIndex(value, ":"); i > 0 {
		path, lib = value[:i], value[i+1:]
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no built-in library %q and no database file at %s (built-ins: %s)",
			value, path, strings.Join(database.BuiltinNames(), ", "))
	}

	store, err := database.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if lib == "" {
		infos, err := store.ListLibraries(ctx)
		if err != nil {
			return nil, err
		}
		switch len(infos) {
		case 0:
			return nil, fmt.Errorf("database %s holds no structure libraries", path)
		case 1:
			lib = infos[0].Name
		default:
			names := make([]string, len(infos))
			for i, li := range infos {
				names[i] = li.Name
			}
			return nil, fmt.Errorf("database %s holds several libraries, pick one as %s:<name> (available: %s)",
				path, path, strings.Join(names, ", "))
		}
	}
	return store.LoadLibrary(ctx, lib)
}

// loadStructures finds the structure source for a structure-mode run: the
// positional file or directory first, then the configured database.
func loadStructures(ctx context.Context, cfg *config.Config) ([]loader.StructureRow, error) {
	if cfg.Paths.StructureFile != "" {
		return readStructurePath(cfg.Paths.StructureFile)
	}
	if cfg.Paths.Database != "" {
		return openLibrary(ctx, cfg.Paths.Database)
	}
	return nil, fmt.Errorf("structure mode needs a structure file argument or --database")
}

// loadFormulas merges the built-in formulas for the mode with an optional
// custom formula file.
func loadFormulas(cfg *config.Config, mode meta.Mode) ([]*formula.Formula, error) {
	var customs []*formula.Formula
	if cfg.Paths.FormulaFile != "" {
		f, err := os.Open(cfg.Paths.FormulaFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		customs, err = formula.ParseFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", cfg.Paths.FormulaFile, err)
		}
	}

	set, warnings := formula.NewSet(formula.Builtin(mode), customs, cfg.Run.SiaLinkage)
	for _, w := range warnings {
		log.Printf("⚠️  %s", w)
	}
	return set.Formulas(), nil
}

// archiveRun records a finished run in the archive database. Archiving is
// best effort and never fails the run itself.
func archiveRun(ctx context.Context, path string, exp *workflow.Experiment, traits int, outDir string) {
	store, err := database.NewSQLiteStore(path)
	if err != nil {
		log.Printf("⚠️  Run archive unavailable: %v", err)
		return
	}
	defer store.Close()

	ab, err := exp.ProcessedAbundance()
	if err != nil {
		ab = exp.InputAbundance()
	}
	run := &database.RunRecord{
		Mode:      exp.Mode().String(),
		Samples:   len(ab.Samples),
		Glycans:   len(ab.Glycans),
		Traits:    traits,
		OutputDir: outDir,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		log.Printf("⚠️  Failed to archive run: %v", err)
		return
	}
	fmt.Printf("🗃️  Run archived as %s in %s\n", run.ID, path)
}

var runCmd = &cobra.Command{
	Use:   "run <abundance.csv> [structures.csv|dir]",
	Short: "Run the full trait derivation workflow on an abundance table",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		// 1. Load configuration, explicit flags win over the file
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		applyRunFlags(cmd, cfg, args)
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid options: %v", err)
		}
		mode, _ := meta.ParseMode(cfg.Run.Mode)
		impute, _ := preprocess.ParseImputeMethod(cfg.Run.ImputeMethod)
		corrMethod, _ := postfilter.ParseMethod(cfg.Run.CorrMethod)

		// 2. Read the abundance table
		abundancePath := args[0]
		fmt.Printf("📄 Reading abundance table: %s\n", abundancePath)
		ab, err := loader.ReadAbundanceFile(abundancePath)
		if err != nil {
			log.Fatalf("Failed to read abundance table: %v", err)
		}
		fmt.Printf("   %d samples, %d glycans\n", len(ab.Samples), len(ab.Glycans))

		// 3. Build the experiment for the selected mode
		var exp *workflow.Experiment
		var dropped []glycan.ItemError
		switch mode {
		case meta.StructureMode:
			rows, err := loadStructures(ctx, cfg)
			if err != nil {
				log.Fatalf("Failed to load structures: %v", err)
			}
			structures, parseErrs := workflow.ParseStructureRows(rows)
			for _, ie := range parseErrs {
				log.Printf("⚠️  %v", ie)
			}
			exp, dropped, err = workflow.NewStructureExperiment(ab, structures, cfg.Run.SiaLinkage)
			if err != nil {
				log.Fatalf("Failed to prepare experiment: %v", err)
			}
		case meta.CompositionMode:
			if cfg.Paths.StructureFile != "" {
				log.Printf("⚠️  Composition mode ignores the structure file %s", cfg.Paths.StructureFile)
			}
			exp, dropped, err = workflow.NewCompositionExperiment(ab, cfg.Run.SiaLinkage)
			if err != nil {
				log.Fatalf("Failed to prepare experiment: %v", err)
			}
		}
		for _, ie := range dropped {
			log.Printf("⚠️  Skipping %v", ie)
		}
		if len(dropped) > 0 {
			fmt.Printf("   %d glycans kept\n", len(exp.InputAbundance().Glycans))
		}

		// 4. Preprocess
		fmt.Printf("🧪 Preprocessing (max missing ratio %.2f, impute %s)...\n", cfg.Run.FilterMaxNA, impute)
		opts := preprocess.Options{MaxMissingRatio: cfg.Run.FilterMaxNA, Impute: impute}
		if err := exp.Preprocess(opts); err != nil {
			log.Fatalf("Preprocessing failed: %v", err)
		}
		processed, _ := exp.ProcessedAbundance()
		fmt.Printf("✅ %d glycans left after preprocessing\n", len(processed.Glycans))

		// 5. Derive traits
		formulas, err := loadFormulas(cfg, exp.Mode())
		if err != nil {
			log.Fatalf("Failed to load formulas: %v", err)
		}
		fmt.Printf("🚀 Deriving %d traits...\n", len(formulas))
		if err := exp.DeriveTraits(formulas); err != nil {
			log.Fatalf("Trait derivation failed: %v", err)
		}
		derived, _ := exp.DerivedTraits()

		// 6. Post-filter
		if cfg.Run.PostFiltering {
			if err := exp.PostFilter(cfg.Run.CorrThreshold, corrMethod); err != nil {
				log.Fatalf("Post-filtering failed: %v", err)
			}
			filtered, _ := exp.FilteredTraits()
			fmt.Printf("🔍 Post-filtering kept %d of %d traits\n", len(filtered.Traits), len(derived.Traits))
		}

		// 7. Differential analysis, when sample groups are given
		var diff []stats.DiffResult
		if cfg.Paths.GroupFile != "" {
			fmt.Printf("📊 Comparing groups from %s...\n", cfg.Paths.GroupFile)
			groups, err := loader.ReadGroupsFile(cfg.Paths.GroupFile)
			if err != nil {
				log.Fatalf("Failed to read group file: %v", err)
			}
			if cfg.Run.PostFiltering {
				if err := exp.DiffAnalysis(groups); err != nil {
					log.Fatalf("Differential analysis failed: %v", err)
				}
				diff, _ = exp.DiffResults()
			} else {
				// Without post-filtering the comparison runs on the full
				// trait table.
				diff, err = stats.Differential(derived, groups)
				if err != nil {
					log.Fatalf("Differential analysis failed: %v", err)
				}
			}
		}

		// 8. Export results
		outDir := cfg.Paths.OutputDir
		if outDir == "" {
			outDir = export.DefaultDir(abundancePath)
		}
		res := export.Results{Meta: exp.MetaProperties(), Abundance: processed, Derived: derived, Diff: diff}
		if mt, err := exp.MetaProperties().Select(processed.Glycans); err == nil {
			res.Meta = mt
		}
		if filtered, err := exp.FilteredTraits(); err == nil {
			res.Filtered = filtered
		}
		if err := export.Write(outDir, res); err != nil {
			log.Fatalf("Failed to write results: %v", err)
		}
		fmt.Printf("💾 Results written to %s\n", outDir)

		// 9. Archive the run
		if cfg.Paths.ArchiveDB != "" {
			archiveRun(ctx, cfg.Paths.ArchiveDB, exp, len(derived.Traits), outDir)
		}

		fmt.Println("🎉 Done.")
	},
}

var formulaCmd = &cobra.Command{
	Use:   "formulas",
	Short: "Inspect and scaffold trait formula files",
}

var formulaExportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write copies of the built-in formula files",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}

		files := []struct {
			name string
			text string
		}{
			{"struc_formulas.txt", formula.BuiltinText(meta.StructureMode)},
			{"comp_formulas.txt", formula.BuiltinText(meta.CompositionMode)},
		}
		for _, f := range files {
			path := filepath.Join(dir, f.name)
			if err := os.WriteFile(path, []byte(f.text), 0o644); err != nil {
				log.Fatalf("Failed to write %s: %v", path, err)
			}
			fmt.Printf("📄 %s\n", path)
		}
	},
}

var formulaTemplateCmd = &cobra.Command{
	Use:   "template [dir]",
	Short: "Write a commented template for custom formulas",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}

		path := filepath.Join(dir, "formula_template.txt")
		if err := os.WriteFile(path, []byte(formula.Template()), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("📄 %s\n", path)
	},
}

var (
	dbCmd = &cobra.Command{
		Use:   "db",
		Short: "Manage structure libraries and the run archive",
	}
	dbFile string
	dbName string
)

var dbImportCmd = &cobra.Command{
	Use:   "import <structures.csv|dir>",
	Short: "Import structure CSVs as a named library",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		rows, err := readStructurePath(args[0])
		if err != nil {
			log.Fatalf("Failed to read structures: %v", err)
		}

		name := dbName
		if name == "" {
			base := filepath.Base(args[0])
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}

		store, err := database.NewSQLiteStore(dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()

		if err := store.SaveLibrary(ctx, name, rows); err != nil {
			log.Fatalf("Failed to import library: %v", err)
		}
		fmt.Printf("✅ Imported %d structures as library %q into %s\n", len(rows), name, dbFile)
	},
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored libraries and archived runs",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		fmt.Printf("📚 Built-in libraries: %s\n", strings.Join(database.BuiltinNames(), ", "))

		store, err := database.NewSQLiteStore(dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()

		libs, err := store.ListLibraries(ctx)
		if err != nil {
			log.Fatalf("Failed to list libraries: %v", err)
		}
		if len(libs) == 0 {
			fmt.Printf("No libraries stored in %s.\n", dbFile)
		} else {
			fmt.Printf("Libraries in %s:\n", dbFile)
			for _, li := range libs {
				fmt.Printf("  %-20s %4d glycans  %s\n", li.Name, li.Glycans, li.CreatedAt.Format("2006-01-02 15:04"))
			}
		}

		runs, err := store.ListRuns(ctx)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) > 0 {
			fmt.Println("Archived runs:")
			for _, r := range runs {
				fmt.Printf("  %s  %-11s  %d samples, %d glycans, %d traits  %s\n",
					r.ID, r.Mode, r.Samples, r.Glycans, r.Traits, r.CreatedAt.Format("2006-01-02 15:04"))
			}
		}
	},
}
