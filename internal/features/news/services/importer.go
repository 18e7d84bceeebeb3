package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"genienews/internal/core"
	"genienews/internal/features/news/models"
)

// sourcesFile is the YAML layout of a sources file
type sourcesFile struct {
	Sources []models.SourceCreate `yaml:"sources"`
}

// SourceImporter bulk-creates sources from a YAML file or from the plain
// "Name: URL" line format
type SourceImporter struct {
	sources *SourceService
	logger  *core.Logger
}

// NewSourceImporter creates a new source importer
func NewSourceImporter(sources *SourceService, logger *core.Logger) *SourceImporter {
	return &SourceImporter{
		sources: sources,
		logger:  logger,
	}
}

// Import creates every source of r whose feed URL is not yet known
func (i *SourceImporter) Import(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}

	entries, invalid := parseSources(data)
	result := &models.ImportResult{Invalid: invalid}

	for _, entry := range entries {
		created, err := i.sources.CreateIfAbsent(ctx, entry)
		if err != nil {
			var appErr *core.AppError
			if errors.As(err, &appErr) && appErr.Code == core.ErrCodeValidation {
				result.Invalid = append(result.Invalid, fmt.Sprintf("%s: %s", entry.Name, appErr.Message))
				continue
			}
			return result, err
		}

		if created {
			result.Created++
			i.logger.Info("Imported source", "name", entry.Name, "feed_url", entry.FeedURL)
		} else {
			result.Skipped++
			i.logger.Debug("Skipping known source", "name", entry.Name, "feed_url", entry.FeedURL)
		}
	}

	i.logger.Info("Source import completed",
		"created", result.Created, "skipped", result.Skipped, "invalid", len(result.Invalid))
	return result, nil
}

// parseSources reads the YAML layout when the document has a non-empty
// sources list, and the line format otherwise
func parseSources(data []byte) ([]models.SourceCreate, []string) {
	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err == nil && len(file.Sources) > 0 {
		return file.Sources, []string{}
	}
	return parseSourceLines(data)
}

func parseSourceLines(data []byte) ([]models.SourceCreate, []string) {
	var entries []models.SourceCreate
	invalid := []string{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "sk-") ||
			strings.HasPrefix(strings.ToLower(line), "sources") {
			continue
		}

		name, feedURL, ok := strings.Cut(line, ":")
		name, feedURL = strings.TrimSpace(name), strings.TrimSpace(feedURL)
		if !ok || name == "" {
			invalid = append(invalid, fmt.Sprintf("line %d: expected \"Name: URL\"", lineNum))
			continue
		}
		if !strings.HasPrefix(feedURL, "http") {
			invalid = append(invalid, fmt.Sprintf("line %d: invalid URL %q", lineNum, feedURL))
			continue
		}

		entries = append(entries, models.SourceCreate{Name: name, FeedURL: feedURL})
	}
	return entries, invalid
}
