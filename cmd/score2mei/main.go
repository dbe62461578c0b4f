// Package main is the entry point for score2mei CLI
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/james-see/score2mei/internal/config"
	"github.com/james-see/score2mei/internal/logging"
	"github.com/james-see/score2mei/pkg/api"
	"github.com/james-see/score2mei/pkg/converter"
	"github.com/james-see/score2mei/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg *config.Config

	outputFile string
	outputDir  string
	idPrefix   string
	logLevel   string
	logFormat  string
	tempo      float64
	serverPort string
	jsonOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "score2mei",
	Short: "Convert MusicXML scores to MEI",
	Long: `score2mei converts MusicXML (.musicxml, .xml and compressed .mxl)
scores into MEI 5 documents. Ties, slurs and tuplets become id-referenced
control events and chords are assembled from their members. The converted
score can also be rendered as a Standard MIDI File.

Examples:
  score2mei convert song.musicxml -o song.mei
  score2mei convert a.musicxml b.mxl --out-dir build/
  score2mei mei song.mxl
  score2mei midi song.musicxml --tempo 96
  score2mei inspect song.musicxml
  score2mei tui
  score2mei serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>...",
	Short: "Convert scores, choosing the output format from the file extension",
	Long: `Converts one input to the file named by --output, whose extension
(.mei, .mid) selects the format, or several inputs into --out-dir as MEI.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

var meiCmd = &cobra.Command{
	Use:   "mei <input>",
	Short: "Convert a score to MEI",
	Args:  cobra.ExactArgs(1),
	RunE:  runMEI,
}

var midiCmd = &cobra.Command{
	Use:   "midi <input>",
	Short: "Render a score as a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMIDI,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Convert without writing and list the warnings",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&idPrefix, "id-prefix", "", "Prefix for generated xml:id values (default from SCORE2MEI_ID_PREFIX or \"conv\")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	// Convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (single input)")
	convertCmd.Flags().StringVar(&outputDir, "out-dir", "", "Output directory (any number of inputs, written as MEI)")
	convertCmd.MarkFlagsMutuallyExclusive("output", "out-dir")
	convertCmd.MarkFlagsOneRequired("output", "out-dir")

	// mei command
	meiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mei file path")

	// midi command
	midiCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	midiCmd.Flags().Float64Var(&tempo, "tempo", 0, "Initial tempo in beats per minute, used until the first metronome mark (default from SCORE2MEI_MIDI_TEMPO or 120)")

	// inspect command
	inspectCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print warnings as JSON")

	// serve command
	serveCmd.Flags().StringVarP(&serverPort, "port", "p", "", "Server port (default from SCORE2MEI_PORT or 8080)")

	// Add commands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(meiCmd)
	rootCmd.AddCommand(midiCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads .env and the environment config, then applies flag overrides.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	cfg = config.Load()

	if idPrefix != "" {
		cfg.IDPrefix = idPrefix
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if tempo > 0 {
		cfg.MIDITempo = tempo
	}
	if serverPort != "" {
		cfg.Port = serverPort
	}

	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))
	return nil
}

func newConverter() *converter.Converter {
	midi := converter.NewMIDIRenderer()
	midi.SetTempo(cfg.MIDITempo)
	conv := converter.New(converter.NewMEIRenderer(), midi)
	conv.SetIDPrefix(cfg.IDPrefix)
	return conv
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	return filepath.Join(filepath.Dir(input), converter.OutputName(input, defaultExt))
}

func runConvert(cmd *cobra.Command, args []string) error {
	conv := newConverter()

	if outputDir != "" {
		results, err := conv.ConvertFiles(args, outputDir, converter.FormatMEI)
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %s -> %s (%d warnings)\n", r.Input, r.Output, len(r.Warnings))
		}
		return err
	}

	if len(args) != 1 {
		return errors.New("--output takes a single input; use --out-dir for several")
	}
	return convertOne(cmd, conv, args[0], outputFile)
}

func runMEI(cmd *cobra.Command, args []string) error {
	return convertOne(cmd, newConverter(), args[0], getOutputPath(args[0], converter.Extension(converter.FormatMEI)))
}

func runMIDI(cmd *cobra.Command, args []string) error {
	return convertOne(cmd, newConverter(), args[0], getOutputPath(args[0], converter.Extension(converter.FormatMIDI)))
}

func convertOne(cmd *cobra.Command, conv *converter.Converter, input, output string) error {
	result, err := conv.ConvertFile(input, output)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s -> %s (%d warnings)\n", input, output, len(result.Warnings))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	conv := newConverter()
	result, err := conv.ConvertWithContext(conv.NewContext(), data, args[0], converter.FormatMEI)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	doc := result.Document
	fmt.Fprintf(out, "Title:    %s\n", doc.Head.Title)
	fmt.Fprintf(out, "Measures: %d\n", len(doc.Measures()))
	fmt.Fprintf(out, "Controls: %d\n", len(doc.Controls()))
	fmt.Fprintf(out, "Warnings: %d\n", len(result.Warnings))
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "  %s\n", w)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(newConverter())
}

func runServe(cmd *cobra.Command, args []string) error {
	return api.StartServer(cfg)
}
