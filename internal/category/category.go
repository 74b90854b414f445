package category

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

// DefaultColor is used when a new category is created without a color.
const DefaultColor = "#4fc3f7"

// CreateFailedMessage is the alert shown when the upsert is rejected.
const CreateFailedMessage = "カテゴリ追加に失敗しました（同名が既にある可能性があります）"

var (
	ErrEmptyName    = errors.New("category name is empty")
	ErrInvalidName  = errors.New("category name must not contain " + model.TagSeparator)
	ErrInvalidColor = errors.New("category color must be #rgb or #rrggbb")
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Service reads and writes the categories table.
type Service struct {
	store store.Store
	seeds []model.Category
}

func NewService(st store.Store, seeds []model.Category) *Service {
	return &Service{store: st, seeds: seeds}
}

// Seed upserts the configured default categories. Running it repeatedly
// leaves one row per name.
func (s *Service) Seed(ctx context.Context) error {
	if len(s.seeds) == 0 {
		return nil
	}
	if err := s.store.UpsertCategories(ctx, s.seeds); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}

// List returns every category in creation order.
func (s *Service) List(ctx context.Context) ([]model.Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Colors builds the name->color mapping; later rows win on duplicate names.
func Colors(cats []model.Category) map[string]string {
	out := make(map[string]string, len(cats))
	for _, c := range cats {
		out[c.Name] = c.Color
	}
	return out
}

// Normalize trims and validates user input for a new category.
func Normalize(name, color string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, ErrEmptyName
	}
	if strings.Contains(name, model.TagSeparator) {
		return model.Category{}, ErrInvalidName
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = DefaultColor
	}
	if !colorPattern.MatchString(color) {
		return model.Category{}, ErrInvalidColor
	}
	return model.Category{Name: name, Color: strings.ToLower(color)}, nil
}

// Create validates and upserts a category (overwriting the color of an
// existing name).
func (s *Service) Create(ctx context.Context, name, color string) (model.Category, error) {
	c, err := Normalize(name, color)
	if err != nil {
		return model.Category{}, err
	}
	if err := s.store.UpsertCategories(ctx, []model.Category{c}); err != nil {
		appLog.Error("category upsert failed", err, "name", c.Name)
		return model.Category{}, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	appLog.Info("category saved", "name", c.Name, "color", c.Color)
	return c, nil
}
