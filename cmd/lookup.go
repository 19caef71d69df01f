/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/partyline/internal/config"
	"github.com/jfmyers9/partyline/internal/party"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup [query]",
	Short: "Resolve a track the way the server would",
	Long: `Resolve a search query (or, with --id, a track id) through the configured
resolver and print the result. Useful for checking resolver credentials and
the cache without connecting a client.

The output format can be customized in ~/.config/partyline/config.yaml
using a Go template. Available fields: .Title, .Artist, .Length, .Duration, .URL, .Art`,
	Args: cobra.ArbitraryArgs,
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().String("id", "", "Resolve by track id instead of query")
	lookupCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	lookupCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled)")
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if formatFlag, _ := cmd.Flags().GetString("format"); formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	id, _ := cmd.Flags().GetString("id")
	query := strings.Join(args, " ")
	if (id == "") == (strings.TrimSpace(query) == "") {
		return fmt.Errorf("provide either a query or --id")
	}

	res, closeResolver, err := buildResolver(cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() { _ = closeResolver() }()

	var track party.Track
	if id != "" {
		track, err = res.ResolveByID(ctx, id)
	} else {
		track, err = res.ResolveByQuery(ctx, query)
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	output, err := formatTrack(track, cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	fmt.Fprintln(cmd.OutOrStdout(), padToWidth(output, width))
	return nil
}

// formatTrack applies the template to the track data
func formatTrack(track party.Track, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, track); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)
	if currentWidth == width {
		return text
	}
	if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	ellipsis := "..."
	ellipsisWidth := runewidth.StringWidth(ellipsis)
	if width <= ellipsisWidth {
		return runewidth.Truncate(ellipsis, width, "")
	}

	result := runewidth.Truncate(text, width-ellipsisWidth, "") + ellipsis

	// Wide runes can leave the truncation one column short
	if resultWidth := runewidth.StringWidth(result); resultWidth < width {
		result += strings.Repeat(" ", width-resultWidth)
	}
	return result
}
