// Package commands contains the command-line interface logic for the
// jffs2 reader.
package commands

import "github.com/ilyakaznacheev/cleanenv"

// Options control how an image is read and extracted. Environment
// variables provide the defaults; command-line flags override them.
type Options struct {
	// Workers bounds the extraction worker pool. 0 means one worker
	// per CPU.
	Workers int `env:"JFFS2_WORKERS" env-default:"0"`

	// Strict escalates recoverable diagnostics to a command error once
	// the full pass has completed.
	Strict bool `env:"JFFS2_STRICT" env-default:"false"`

	// Excludes and ExcludeFrom filter extracted paths with
	// gitignore-style patterns.
	Excludes    []string
	ExcludeFrom string
}

// LoadOptions reads option defaults from the environment. An unreadable
// environment falls back to zero values rather than failing the command.
func LoadOptions() Options {
	var opts Options
	if err := cleanenv.ReadEnv(&opts); err != nil {
		return Options{}
	}
	return opts
}
