// Package news supplies the sentiment signal the forecast estimator
// consumes. Every Source returns a forecast.Sentiment for a month; the
// estimator never reaches for news itself.
package news

import (
	"context"
	"fmt"

	"kharcha/internal/core"
	"kharcha/internal/forecast"
)

// Source yields the headlines that apply to a target month.
type Source interface {
	Sentiment(ctx context.Context, month core.Month) (forecast.Sentiment, error)
}

// Kind names a configured source.
type Kind string

const (
	KindStatic    Kind = "static"
	KindFile      Kind = "file"
	KindFeed      Kind = "feed"
	KindSimulated Kind = "simulated"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindStatic, KindFile, KindFeed, KindSimulated:
		return true
	default:
		return false
	}
}

// Kinds lists every valid kind.
func Kinds() []Kind {
	return []Kind{KindStatic, KindFile, KindFeed, KindSimulated}
}

// Options select and parameterise a Source.
type Options struct {
	Kind    Kind
	File    string
	FeedURL string
	Seed    int64
}

// New builds the Source described by opts.
func New(opts Options) (Source, error) {
	switch opts.Kind {
	case KindStatic, "":
		return StaticSource{}, nil
	case KindFile:
		src, err := NewFileSource(opts.File)
		if err != nil {
			return nil, err
		}
		return src, nil
	case KindFeed:
		if opts.FeedURL == "" {
			return nil, fmt.Errorf("news feed url is empty")
		}
		return NewFeedSource(opts.FeedURL, nil), nil
	case KindSimulated:
		return SimulatedSource{Seed: opts.Seed}, nil
	default:
		return nil, fmt.Errorf("unknown news source %q", opts.Kind)
	}
}

// Fallback tries primary first and uses secondary when primary errors.
type Fallback struct {
	Primary   Source
	Secondary Source
}

func (f Fallback) Sentiment(ctx context.Context, month core.Month) (forecast.Sentiment, error) {
	s, err := f.Primary.Sentiment(ctx, month)
	if err == nil {
		return s, nil
	}
	fallback, ferr := f.Secondary.Sentiment(ctx, month)
	if ferr != nil {
		return forecast.Sentiment{}, fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return fallback, nil
}
