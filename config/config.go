// Package config loads murmur's settings from config.yaml, .env files, MURMUR_*
// environment variables and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

type Remote struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
}

type Local struct {
	Model    string `mapstructure:"model" validate:"required"`
	Binary   string `mapstructure:"binary"`
	Language string `mapstructure:"language" validate:"required,min=2,max=5"`
}

type Audio struct {
	SampleRate int    `mapstructure:"sample_rate" validate:"oneof=8000 16000 22050 44100 48000"`
	Channels   int    `mapstructure:"channels" validate:"oneof=1 2"`
	Device     string `mapstructure:"device"`
}

type Widget struct {
	Visible  bool   `mapstructure:"visible"`
	X        int    `mapstructure:"x" validate:"min=0"`
	Y        int    `mapstructure:"y" validate:"min=0"`
	Renderer string `mapstructure:"renderer" validate:"oneof=tui overlay none"`
}

type Cues struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

type Insert struct {
	TypeDelay time.Duration `mapstructure:"type_delay" validate:"min=0,max=1s"`
}

type Text struct {
	Enabled  bool              `mapstructure:"enabled"`
	Keywords map[string]string `mapstructure:"keywords"`
}

type Config struct {
	Hotkey      string        `mapstructure:"hotkey" validate:"required"`
	Mode        Mode          `mapstructure:"mode" validate:"oneof=local remote"`
	Remote      Remote        `mapstructure:"remote"`
	Local       Local         `mapstructure:"local"`
	Audio       Audio         `mapstructure:"audio"`
	MinDuration time.Duration `mapstructure:"min_duration" validate:"min=0,max=10s"`
	ErrorHold   time.Duration `mapstructure:"error_hold" validate:"min=0,max=1m"`
	Widget      Widget        `mapstructure:"widget"`
	Cues        Cues          `mapstructure:"cues"`
	Insert      Insert        `mapstructure:"insert"`
	Text        Text          `mapstructure:"text"`
}

var defaults = map[string]any{
	"hotkey":            "ctrl+space",
	"mode":              string(ModeRemote),
	"remote.url":        "",
	"remote.token":      "",
	"remote.timeout":    "30s",
	"local.model":       "base",
	"local.binary":      "",
	"local.language":    "fr",
	"audio.sample_rate": 16000,
	"audio.channels":    1,
	"audio.device":      "",
	"min_duration":      "300ms",
	"error_hold":        "1500ms",
	"widget.visible":    true,
	"widget.x":          50,
	"widget.y":          50,
	"widget.renderer":   "tui",
	"cues.enabled":      true,
	"cues.dir":          "",
	"insert.type_delay": "10ms",
	"text.enabled":      false,
	"text.keywords":     map[string]string{},
}

// Source is the read side consumed by the recording pipeline.
type Source interface {
	Snapshot() Config
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		})
	})
	return validate
}

// Validate checks field constraints. A remote mode without remote.url is
// valid here; the backend then reports itself as not ready.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", keyPath(e.Namespace()), e.Tag(), e.Param(), e.Value()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// keyPath turns "Config.remote.url" into "remote.url".
func keyPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// NeedsAbort reports whether moving from old to c invalidates an in-flight session.
// Widget-only edits (such as a saved position) do not.
func (c Config) NeedsAbort(old Config) bool {
	return c.Hotkey != old.Hotkey ||
		c.Mode != old.Mode ||
		c.Remote != old.Remote ||
		c.Local != old.Local ||
		c.Audio != old.Audio
}
