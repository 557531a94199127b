package cli

import (
	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Root      string
	Dir       string
	Glob      string
	Strip     int
	Verbosity int
	Plain     bool
}

// BindFlags defines the command-line flags on fs, storing values in cfg.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Root, "root", "C", ".", "Directory the patches are applied to.")
	fs.StringVarP(&cfg.Dir, "dir", "d", "patches", "Directory scanned for diffs when no files are given (relative to --root).")
	fs.StringVarP(&cfg.Glob, "glob", "g", "*.diff", "File pattern of diffs inside --dir.")
	fs.IntVarP(&cfg.Strip, "strip", "p", -1, "Leading path components to strip from diff headers (-1 strips git a/ b/ prefixes).")
	fs.CountVarP(&cfg.Verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE).")
	fs.BoolVar(&cfg.Plain, "no-tui", false, "Print plain output instead of the interactive progress view.")
}

// Overrides returns configuration keys for the flags that were set
// explicitly, so they take precedence over config files and environment.
func Overrides(fs *pflag.FlagSet, cfg *Config) map[string]interface{} {
	overrides := make(map[string]interface{})
	if fs.Changed("dir") {
		overrides["patches.dir"] = cfg.Dir
	}
	if fs.Changed("glob") {
		overrides["patches.glob"] = cfg.Glob
	}
	if fs.Changed("strip") {
		overrides["patches.strip"] = cfg.Strip
	}
	if fs.Changed("verbose") {
		overrides["log.verbosity"] = cfg.Verbosity
	}
	if fs.Changed("no-tui") {
		overrides["ui.plain"] = cfg.Plain
	}
	return overrides
}
