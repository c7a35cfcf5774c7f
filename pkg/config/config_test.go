package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	c.Validate()
	if !reflect.DeepEqual(c, DefaultConfig()) {
		t.Errorf("Validate changed the defaults: %+v", c)
	}
	if c.WildcardRune() != '*' {
		t.Errorf("WildcardRune = %q", c.WildcardRune())
	}
}

func TestValidateResetsInvalid(t *testing.T) {
	c := DefaultConfig()
	c.Restore.Wildcard = "**"
	c.Restore.DefaultMode = "fast"
	c.Restore.Threshold = 2
	c.Fuzzy.MaxDistance = -1
	c.Fuzzy.TopK = 0
	c.Model.SmoothingK = 0
	c.Model.Encoding = "klingon"
	c.Server.MaxTextBytes = 0
	c.Server.MaxLimit = -3
	c.CLI.DefaultLimit = 0
	c.Redis.Key = ""

	c.Validate()
	if !reflect.DeepEqual(c, DefaultConfig()) {
		t.Errorf("invalid values survived: %+v", c)
	}
}

func TestLoadConfigPartialRecovery(t *testing.T) {
	path := writeConfig(t, `
[restore]
threshold = "high"
default_mode = "context"
wildcard = "?"

[fuzzy]
max_distance = 2
extra_confusables = [["5", "s"], ["8", "B"]]

[redis]
addr = "localhost:6379"
`)

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Restore.DefaultMode != "context" || c.Restore.Wildcard != "?" || c.WildcardRune() != '?' {
		t.Errorf("restore = %+v", c.Restore)
	}
	if c.Restore.Threshold != DefaultConfig().Restore.Threshold {
		t.Errorf("mistyped threshold = %v, want the default", c.Restore.Threshold)
	}
	if c.Fuzzy.MaxDistance != 2 || !reflect.DeepEqual(c.Fuzzy.ExtraConfusables, [][]string{{"5", "s"}, {"8", "B"}}) {
		t.Errorf("fuzzy = %+v", c.Fuzzy)
	}
	if !c.Redis.Enabled() || c.Redis.Key != "wordmend:vocab" {
		t.Errorf("redis = %+v", c.Redis)
	}
}

func TestLoadConfigGarbage(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "this = = is not toml ]["))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(c, DefaultConfig()) {
		t.Errorf("garbage config = %+v, want defaults", c)
	}
}

func TestInitConfigCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	c, err := InitConfig(path)
	if err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(c, reloaded) {
		t.Errorf("reloaded config differs:\n%+v\n%+v", c, reloaded)
	}
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c := DefaultConfig()
	th, dist, conf := 0.25, 3, false
	if err := c.Update(path, &th, &dist, &conf); err != nil {
		t.Fatalf("Update: %v", err)
	}
	saved, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if saved.Restore.Threshold != 0.25 || saved.Fuzzy.MaxDistance != 3 || saved.Fuzzy.Confusables {
		t.Errorf("saved = %+v %+v", saved.Restore, saved.Fuzzy)
	}

	bad := 5.0
	if err := c.Update(path, &bad, nil, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if c.Restore.Threshold != DefaultConfig().Restore.Threshold || c.Fuzzy.MaxDistance != 3 {
		t.Errorf("after invalid update = %+v %+v", c.Restore, c.Fuzzy)
	}
}

func TestRelation(t *testing.T) {
	fz := DefaultConfig().Fuzzy
	fz.ExtraConfusables = [][]string{{"5", "s"}, {"only one"}}
	rel := fz.Relation()
	for _, pair := range [][2]string{{"0", "o"}, {"rn", "m"}, {"5", "S"}} {
		if !rel.Equivalent(pair[0], pair[1]) {
			t.Errorf("%q and %q are not confusable", pair[0], pair[1])
		}
	}

	fz.Confusables = false
	if !fz.Relation().Empty() {
		t.Error("disabled relation is not empty")
	}
}
