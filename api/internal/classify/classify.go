package classify

import (
	"context"
	"errors"
	"strings"

	"nutrisnap/api/internal/logx"
	"nutrisnap/api/internal/nutrition"
)

// Label is a classifier's answer for one photo.
type Label struct {
	Food       string
	Confidence float64
}

type Engine interface {
	Name() string
	Classify(ctx context.Context, img nutrition.Image) (Label, error)
}

var ErrUnknownFood = errors.New("food not in table")

// Chain asks each engine in turn and returns the first label whose food is
// in foods. An engine error or an unknown label moves on to the next engine.
// Labels pass through Aliases first; nil means DefaultAliases.
type Chain struct {
	Engines []Engine
	Foods   []string
	Aliases map[string]string
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.Engines))
	for _, e := range c.Engines {
		names = append(names, e.Name())
	}
	return strings.Join(names, ">")
}

func (c *Chain) Classify(ctx context.Context, img nutrition.Image) (Label, error) {
	var lastErr error
	for _, e := range c.Engines {
		l, err := e.Classify(ctx, img)
		if err != nil {
			logx.Warn().Err(err).Str("engine", e.Name()).Str("file", img.Name).Msg("classify failed")
			lastErr = err
			continue
		}
		l.Food = Canonical(l.Food, c.aliases())
		if !c.known(l.Food) {
			logx.Debug().Str("engine", e.Name()).Str("food", l.Food).Msg("label outside table")
			lastErr = ErrUnknownFood
			continue
		}
		return l, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no classifier configured")
	}
	return Label{}, lastErr
}

func (c *Chain) aliases() map[string]string {
	if c.Aliases == nil {
		return DefaultAliases
	}
	return c.Aliases
}

func (c *Chain) known(food string) bool {
	if len(c.Foods) == 0 {
		return food != ""
	}
	for _, f := range c.Foods {
		if f == food {
			return true
		}
	}
	return false
}
