package config

import "github.com/spf13/pflag"

// Flags are command-line overrides. Only flags set by the user replace
// values loaded from files.
type Flags struct {
	fs *pflag.FlagSet
	v  Config
}

func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs, v: Default()}
	fs.StringVar((*string)(&f.v.BranchesLayout), "branches-layout", string(f.v.BranchesLayout), "branches layout: list or tree")
	fs.StringVar((*string)(&f.v.FilesLayout), "files-layout", string(f.v.FilesLayout), "files layout: list, tree or auto")
	fs.BoolVar(&f.v.Compact, "compact", f.v.Compact, "collapse single-child folders")
	fs.IntVar(&f.v.DefaultItemLimit, "limit", f.v.DefaultItemLimit, "commits shown before paging (0 shows all)")
	fs.IntVar(&f.v.PageIncrement, "page-increment", f.v.PageIncrement, "commits added by each show more")
	fs.BoolVar(&f.v.IncludeWorkingTree, "working-tree", f.v.IncludeWorkingTree, "include uncommitted changes")
	fs.BoolVar(&f.v.AutoRefresh, "auto-refresh", f.v.AutoRefresh, "keep nodes subscribed to repository changes")
	fs.DurationVar(&f.v.DebounceDelay, "debounce", f.v.DebounceDelay, "delay used to batch change notifications")
	return f
}

// Apply copies the flags set on the command line onto cfg.
func (f *Flags) Apply(cfg *Config) error {
	set := map[string]func(){
		"branches-layout": func() { cfg.BranchesLayout = f.v.BranchesLayout },
		"files-layout":    func() { cfg.FilesLayout = f.v.FilesLayout },
		"compact":         func() { cfg.Compact = f.v.Compact },
		"limit":           func() { cfg.DefaultItemLimit = f.v.DefaultItemLimit },
		"page-increment":  func() { cfg.PageIncrement = f.v.PageIncrement },
		"working-tree":    func() { cfg.IncludeWorkingTree = f.v.IncludeWorkingTree },
		"auto-refresh":    func() { cfg.AutoRefresh = f.v.AutoRefresh },
		"debounce":        func() { cfg.DebounceDelay = f.v.DebounceDelay },
	}
	for name, apply := range set {
		if f.fs.Changed(name) {
			apply()
		}
	}
	return cfg.Validate()
}
