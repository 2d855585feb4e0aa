// datasetctl drives the training-corpus pipeline end to end: harvest
// the repository export, download the balanced PDFs, extract and
// normalize text, clean records through a hosted LLM, assemble the
// generator fine-tuning set and train/compare the classifiers.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nahuelPanigo/document-extraction-llm/internal/bootstrap"
	"github.com/nahuelPanigo/document-extraction-llm/internal/config"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/usecase"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/classify"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/cleaner"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/generator"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/harvest"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/textnorm"
)

type cli struct {
	cfg config.DatasetTool
	app *bootstrap.DatasetApp
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	root := c.rootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("datasetctl: %v", err)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "datasetctl",
		Short:         "Build and curate the document-extraction training corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDatasetTool()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewDataset(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.app = app
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runMenu(cmd.Context())
		},
	}

	root.AddCommand(
		c.makeDatasetCommand(),
		c.downloadCommand(),
		c.queueCommand(),
		c.extractCommand(),
		c.normalizeCommand(),
		c.cleanCommand(),
		c.trainsetCommand(),
		c.trainCommand(),
		c.compareCommand(),
	)
	return root
}

func (c *cli) makeDatasetCommand() *cobra.Command {
	opts := usecase.DefaultHarvestOptions
	var csvPath string
	cmd := &cobra.Command{
		Use:   "make-dataset",
		Short: "Project the repository CSV export into a balanced, registered corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := os.Open(csvPath)
			if err != nil {
				return fmt.Errorf("open export: %w", err)
			}
			defer file.Close()

			tax, err := harvest.LoadTaxonomy(c.cfg.TaxonomyPath)
			if err != nil {
				return fmt.Errorf("load taxonomy: %w", err)
			}

			result, err := c.app.Dataset.Harvest(cmd.Context(), file, tax, opts)
			if err != nil {
				return err
			}
			fmt.Printf("selected %d documents (%d subjects, %d types)\n",
				result.Selected, countLabels(result.SubjectMapping), countLabels(result.TypeMapping))
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "path to the repository CSV export")
	cmd.Flags().IntVar(&opts.SubjectTarget, "subject-target", opts.SubjectTarget, "documents to keep per subject")
	cmd.Flags().IntVar(&opts.SubjectMinAvailable, "subject-min", opts.SubjectMinAvailable, "minimum documents a subject needs to participate")
	cmd.Flags().IntVar(&opts.PerType, "per-type", opts.PerType, "documents to keep per document type")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func (c *cli) downloadCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "download-pdfs",
		Short: "Download the PDF of every harvested document still missing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, err := c.app.Registry.ListByStatus(cmd.Context(), domain.StatusHarvested, limit)
			if err != nil {
				return err
			}
			ids := make([]string, len(docs))
			for i, doc := range docs {
				ids[i] = doc.ID
			}

			downloader := harvest.NewDownloader(c.cfg.RepositoryURL, c.app.Storage, c.app.Logger)
			downloaded, err := downloader.DownloadAll(cmd.Context(), ids, c.app.Registry)
			fmt.Printf("downloaded %d of %d documents\n", downloaded, len(ids))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of documents (0 = all)")
	return cmd
}

func (c *cli) queueCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Publish one extraction job per harvested document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queued, err := c.app.Dataset.QueueExtractions(cmd.Context(), limit)
			fmt.Printf("queued %d extraction jobs\n", queued)
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of jobs (0 = all)")
	return cmd
}

func (c *cli) extractCommand() *cobra.Command {
	workers := usecase.DefaultExtractionWorkers
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract both text views of every harvested document in-process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			extracted, err := c.app.Dataset.ExtractPending(cmd.Context(), workers)
			fmt.Printf("extracted %d documents\n", extracted)
			return err
		},
	}
	cmd.Flags().IntVar(&workers, "workers", workers, "extraction worker pool size")
	return cmd
}

func (c *cli) normalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Re-run OCR-artifact normalization over the extracted text cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repaired, err := c.app.Dataset.NormalizeTexts(cmd.Context())
			fmt.Printf("normalized %d documents\n", repaired)
			return err
		},
	}
}

func (c *cli) cleanCommand() *cobra.Command {
	var providerName string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean harvested records through the configured LLM provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, budget, err := c.cleanerProvider(providerName)
			if err != nil {
				return err
			}
			session := cleaner.NewSession(budget, cleaner.DefaultTokensPerItem, c.app.Logger)
			defer session.Close()

			inputDir := filepath.Join(c.cfg.DataDir, "jsons")
			outputDir := filepath.Join(c.cfg.DataDir, "cleaned")
			processed, err := cleaner.NewRunner(session, provider, c.app.Logger).Run(cmd.Context(), inputDir, outputDir)
			fmt.Printf("cleaned %d documents\n", processed)
			if err != nil {
				return err
			}

			ids, err := jsonIDs(outputDir)
			if err != nil {
				return err
			}
			return c.app.Dataset.MarkCleaned(cmd.Context(), ids)
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "genai", "cleaning provider: genai or openai")
	return cmd
}

func (c *cli) cleanerProvider(name string) (cleaner.Provider, cleaner.RateBudget, error) {
	var provider cleaner.Provider
	var configured cleaner.RateBudget
	switch name {
	case "genai":
		if c.cfg.GoogleAPIKey == "" {
			return nil, cleaner.RateBudget{}, fmt.Errorf("GOOGLE_API_KEY is not set")
		}
		provider = cleaner.NewGenaiProvider(c.cfg.GoogleAPIKey, c.app.Logger)
		configured = cleaner.RateBudget{
			ReqPerMin: c.cfg.GenAIReqPerMin,
			ReqPerDay: c.cfg.GenAIReqPerDay,
			TokPerMin: c.cfg.GenAITokPerMin,
		}
	case "openai":
		if c.cfg.OpenAIAPIKey == "" {
			return nil, cleaner.RateBudget{}, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		provider = cleaner.NewOpenAIProvider(c.cfg.OpenAIAPIKey, c.app.Logger)
		configured = cleaner.RateBudget{
			ReqPerMin: c.cfg.OpenAIReqPerMin,
			ReqPerDay: c.cfg.OpenAIReqPerDay,
			TokPerMin: c.cfg.OpenAITokPerMin,
		}
	default:
		return nil, cleaner.RateBudget{}, fmt.Errorf("unknown provider %q, want genai or openai", name)
	}
	return provider, mergeBudget(configured, provider.DefaultBudget()), nil
}

// mergeBudget fills unset or nonsense limits from the provider's
// documented quota.
func mergeBudget(configured, fallback cleaner.RateBudget) cleaner.RateBudget {
	if configured.ReqPerMin <= 0 {
		configured.ReqPerMin = fallback.ReqPerMin
	}
	if configured.ReqPerDay <= 0 {
		configured.ReqPerDay = fallback.ReqPerDay
	}
	if configured.TokPerMin <= 0 {
		configured.TokPerMin = fallback.TokPerMin
	}
	return configured
}

func (c *cli) trainsetCommand() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "trainset",
		Short: "Assemble the generator fine-tuning split from the cleaned store",
		RunE: func(_ *cobra.Command, _ []string) error {
			records, err := loadCleanedRecords(filepath.Join(c.cfg.DataDir, "cleaned"))
			if err != nil {
				return err
			}
			split, err := generator.BuildTrainingSet(records, generator.PairMode(mode))
			if err != nil {
				return err
			}

			outputDir := filepath.Join(c.cfg.DataDir, "generator")
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}
			for name, pairs := range map[string][]domain.TrainingPair{
				"training.jsonl":   split.Training,
				"test.jsonl":       split.Test,
				"validation.jsonl": split.Validation,
			} {
				if err := writeJSONL(filepath.Join(outputDir, name), pairs); err != nil {
					return err
				}
			}
			fmt.Printf("wrote %d/%d/%d pairs to %s\n",
				len(split.Training), len(split.Test), len(split.Validation), outputDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(generator.ModeSchema), "pair rendering mode: schema or prompt")
	return cmd
}

func (c *cli) trainCommand() *cobra.Command {
	var task, strategy string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train one classification strategy on the extracted corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, labels, err := c.loadTaskDataset(task)
			if err != nil {
				return err
			}

			learner, err := c.app.Strategies.New(strategy, bootstrap.ModelDir(c.cfg.ModelsDir, task, strategy))
			if err != nil {
				return err
			}
			accuracy, err := learner.Train(cmd.Context(), docs, labels)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s): test accuracy %.4f\n", learner.ModelName(), task, accuracy)
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "subject", "classification task: subject or type")
	cmd.Flags().StringVar(&strategy, "strategy", classify.KeySVM, "strategy key to train")
	return cmd
}

func (c *cli) compareCommand() *cobra.Command {
	var task, report string
	var keys []string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Evaluate every trained strategy on the shared test partition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			docs, labels, err := c.loadTaskDataset(task)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				keys = c.app.Strategies.Keys()
			}

			comparator := classify.NewComparator(c.app.Strategies, filepath.Join(c.cfg.ModelsDir, task), c.app.Logger)
			results, err := comparator.Run(cmd.Context(), keys, docs, labels)
			if err != nil {
				return err
			}
			for _, result := range results {
				if result.Skipped {
					fmt.Printf("%-28s skipped: %s\n", result.ModelName, result.SkipReason)
					continue
				}
				fmt.Printf("%-28s accuracy %.4f macro-F1 %.4f predict %s\n",
					result.ModelName, result.Metrics.Accuracy, result.Metrics.MacroF1, result.PredictTime)
			}
			if report != "" {
				if err := classify.WriteComparisonWorkbook(report, results); err != nil {
					return err
				}
				fmt.Printf("report written to %s\n", report)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "subject", "classification task: subject or type")
	cmd.Flags().StringVar(&report, "report", "", "write an xlsx comparison workbook to this path")
	cmd.Flags().StringSliceVar(&keys, "strategies", nil, "strategy keys to compare (default: all)")
	return cmd
}

// loadTaskDataset pairs the extracted text cache with the persisted
// label mapping for one task.
func (c *cli) loadTaskDataset(task string) ([]string, []string, error) {
	var mappingFile string
	switch task {
	case "subject":
		mappingFile = "subject_labels.json"
	case "type":
		mappingFile = "type_labels.json"
	default:
		return nil, nil, fmt.Errorf("unknown task %q, want subject or type", task)
	}

	raw, err := os.ReadFile(filepath.Join(c.cfg.DataDir, mappingFile))
	if err != nil {
		return nil, nil, fmt.Errorf("read label mapping: %w", err)
	}
	var mapping domain.LabelMapping
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, nil, fmt.Errorf("parse label mapping: %w", err)
	}

	dataset, err := classify.BuildDataset(mapping, filepath.Join(c.cfg.DataDir, "texts"), classify.DefaultDatasetOptions())
	if err != nil {
		return nil, nil, err
	}
	docs, labels, _ := classify.Columns(dataset)
	return docs, labels, nil
}

// runMenu offers the pipeline steps interactively when datasetctl is
// started without a subcommand.
func (c *cli) runMenu(ctx context.Context) error {
	steps := []struct {
		label string
		args  []string
	}{
		{"Harvest repository export (make-dataset)", nil},
		{"Download balanced PDFs", []string{"download-pdfs"}},
		{"Queue extraction jobs", []string{"queue"}},
		{"Extract text in-process", []string{"extract"}},
		{"Normalize extracted text", []string{"normalize"}},
		{"Clean records with LLM", []string{"clean"}},
		{"Assemble generator training set", []string{"trainset"}},
		{"Train a classifier", []string{"train"}},
		{"Compare trained classifiers", []string{"compare"}},
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println("\ndatasetctl pipeline:")
		for i, step := range steps {
			fmt.Printf("  %d. %s\n", i+1, step.label)
		}
		fmt.Print("step number (or q to quit): ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		choice := strings.TrimSpace(scanner.Text())
		if choice == "q" || choice == "quit" {
			return nil
		}

		index := -1
		for i := range steps {
			if choice == fmt.Sprintf("%d", i+1) {
				index = i
				break
			}
		}
		if index < 0 {
			fmt.Println("unknown step")
			continue
		}

		var cmd *cobra.Command
		var args []string
		if steps[index].args == nil {
			// make-dataset needs the export path.
			fmt.Print("path to CSV export: ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			cmd, args = c.makeDatasetCommand(), []string{"--csv", strings.TrimSpace(scanner.Text())}
		} else {
			name := steps[index].args[0]
			switch name {
			case "download-pdfs":
				cmd = c.downloadCommand()
			case "queue":
				cmd = c.queueCommand()
			case "extract":
				cmd = c.extractCommand()
			case "normalize":
				cmd = c.normalizeCommand()
			case "clean":
				cmd = c.cleanCommand()
			case "trainset":
				cmd = c.trainsetCommand()
			case "train":
				cmd = c.trainCommand()
			case "compare":
				cmd = c.compareCommand()
			}
			args = steps[index].args[1:]
		}

		cmd.SetContext(ctx)
		if err := cmd.ParseFlags(args); err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if err := cmd.RunE(cmd, nil); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// loadCleanedRecords reads every cleaned document into a source record
// for pair assembly, ordered by id for a reproducible split.
func loadCleanedRecords(dir string) ([]generator.SourceRecord, error) {
	ids, err := jsonIDs(dir)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	records := make([]generator.SourceRecord, 0, len(ids))
	for _, id := range ids {
		raw, err := os.ReadFile(filepath.Join(dir, id+".json"))
		if err != nil {
			return nil, err
		}
		var record domain.MetadataRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("parse %s: %w", id, err)
		}

		text, _ := record["original_text"].(string)
		metadata := record.Clone()
		delete(metadata, "original_text")

		records = append(records, generator.SourceRecord{
			ID:     id,
			Type:   domain.DocumentType(textnorm.CanonicalType(record.String(domain.FieldType))),
			Record: metadata,
			Text:   text,
		})
	}
	return records, nil
}

func jsonIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

func writeJSONL(path string, pairs []domain.TrainingPair) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, pair := range pairs {
		if err := encoder.Encode(pair); err != nil {
			return err
		}
	}
	return nil
}

func countLabels(mapping domain.LabelMapping) int {
	seen := make(map[string]struct{})
	for _, label := range mapping {
		seen[label] = struct{}{}
	}
	return len(seen)
}
