package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/feedback"
)

// seedFile is the YAML layout accepted by the seed command:
//
//	feedback:
//	  - content: "Workers deploy fails with 500"
//	    source: github
//	    author: octocat
//	    timestamp: 2026-01-15T10:30:00Z
type seedFile struct {
	Feedback []seedEntry `yaml:"feedback"`
}

type seedEntry struct {
	ID        string    `yaml:"id"`
	Content   string    `yaml:"content"`
	Source    string    `yaml:"source"`
	Author    string    `yaml:"author"`
	Timestamp time.Time `yaml:"timestamp"`
}

// loadSeed decodes a seed file. Every entry needs content and source.
func loadSeed(r io.Reader) ([]feedback.Item, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	items := make([]feedback.Item, 0, len(file.Feedback))
	for i, e := range file.Feedback {
		content := strings.TrimSpace(e.Content)
		source := strings.ToLower(strings.TrimSpace(e.Source))
		if content == "" || source == "" {
			return nil, fmt.Errorf("seed entry %d: content and source are required", i+1)
		}

		item := feedback.Item{
			ID:        strings.TrimSpace(e.ID),
			Content:   content,
			Source:    source,
			Timestamp: e.Timestamp.UTC(),
		}
		if author := strings.TrimSpace(e.Author); author != "" {
			item.Author = &author
		}
		items = append(items, item)
	}
	return items, nil
}

// insertSeed stores items in order and stops at the first failure.
func insertSeed(ctx context.Context, store database.Store, items []feedback.Item) (int, error) {
	for i := range items {
		if err := store.InsertFeedback(ctx, &items[i]); err != nil {
			return i, err
		}
	}
	return len(items), nil
}
