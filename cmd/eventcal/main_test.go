package main

import (
	"context"
	"path/filepath"
	"testing"

	"eventcal/internal/config"
	"eventcal/internal/grid"
)

func tempConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Listen = "127.0.0.1:0"
	cfg.Database = filepath.Join(dir, "eventcal.db")
	cfg.MediaDir = filepath.Join(dir, "media")
	cfg.HolidayDir = filepath.Join(dir, "holidays")
	cfg.HolidayCacheDir = filepath.Join(dir, "holiday-cache")
	cfg.MirrorPath = filepath.Join(dir, "mirror.json")
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunReturnsCodeOnBadConfigPath(t *testing.T) {
	if code := run(flagConfig{configPath: ""}); code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestRunReturnsCodeOnStartupFailure(t *testing.T) {
	path := tempConfig(t, func(c *config.Config) {
		c.MirrorRefresh = "not a cron line"
	})
	if code := run(flagConfig{configPath: path}); code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestBuildSeedsCategories(t *testing.T) {
	path := tempConfig(t, nil)
	conf, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	a, err := build(context.Background(), conf)
	if err != nil {
		t.Fatal(err)
	}
	defer a.store.Close()

	cats, err := a.store.ListCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Fatalf("categories = %+v", cats)
	}
	if ws := weekStart(conf); ws != grid.Monday {
		t.Fatalf("week start = %s", ws)
	}
}
