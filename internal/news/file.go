package news

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	"kharcha/internal/core"
	"kharcha/internal/forecast"
)

// headlineFile is the on-disk layout:
//
//	[[headline]]
//	title = "Fuel prices increase by 2% this month"
//	impact = 0.6
//
//	[[months."2025-11"]]
//	title = "Diwali shopping surge"
//	impact = 0.8
type headlineFile struct {
	Headlines []forecast.Headline            `toml:"headline"`
	Months    map[string][]forecast.Headline `toml:"months"`
}

// FileSource serves headlines loaded from a TOML file. Month-specific
// entries replace the defaults for that month.
type FileSource struct {
	path     string
	defaults []forecast.Headline
	byMonth  map[core.Month][]forecast.Headline
}

// NewFileSource parses and validates path.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("news file path is empty")
	}
	var f headlineFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode news file %s: %w", path, err)
	}

	src := &FileSource{
		path:     path,
		defaults: f.Headlines,
		byMonth:  make(map[core.Month][]forecast.Headline, len(f.Months)),
	}
	if err := (forecast.Sentiment{Headlines: f.Headlines}).Validate(); err != nil {
		return nil, fmt.Errorf("news file %s: %w", path, err)
	}
	for key, hs := range f.Months {
		m, err := core.ParseMonth(key)
		if err != nil {
			return nil, fmt.Errorf("news file %s: month %q: %w", path, key, err)
		}
		if err := (forecast.Sentiment{Headlines: hs}).Validate(); err != nil {
			return nil, fmt.Errorf("news file %s: month %s: %w", path, key, err)
		}
		src.byMonth[m] = hs
	}
	return src, nil
}

func (s *FileSource) Sentiment(_ context.Context, month core.Month) (forecast.Sentiment, error) {
	hs, ok := s.byMonth[month]
	if !ok {
		hs = s.defaults
	}
	return forecast.Sentiment{
		Source:    string(KindFile),
		Headlines: append([]forecast.Headline(nil), hs...),
	}, nil
}
