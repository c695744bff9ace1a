// Package buildinfo reports the version information recorded by the Go
// toolchain at build time.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
)

var readBuildInfo = debug.ReadBuildInfo

type Info struct {
	Version   string `json:"version" yaml:"version"`
	Revision  string `json:"revision,omitempty" yaml:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
	Tags      string `json:"tags,omitempty" yaml:"tags,omitempty"`
	GoVersion string `json:"go" yaml:"go"`
}

// Read collects the build information. Version is "dev" when the binary was
// not built from a tagged module.
func Read() Info {
	out := Info{Version: "dev"}
	info, ok := readBuildInfo()
	if !ok || info == nil {
		return out
	}
	out.GoVersion = info.GoVersion
	if v := info.Main.Version; v != "" && v != "(devel)" {
		out.Version = v
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "-tags":
			out.Tags = setting.Value
		case "vcs.revision":
			out.Revision = setting.Value
		case "vcs.modified":
			out.Modified = setting.Value == "true"
		}
	}
	return out
}

// Version returns the module version or "dev" when unset.
func Version() string { return Read().Version }

// String renders the version followed by the short revision and tags when
// known, e.g. "v1.2.0 (0123abcd, dirty, tags: debug)".
func (i Info) String() string {
	var extra []string
	if i.Revision != "" {
		rev := i.Revision
		if len(rev) > 8 {
			rev = rev[:8]
		}
		extra = append(extra, rev)
	}
	if i.Modified {
		extra = append(extra, "dirty")
	}
	if i.Tags != "" {
		extra = append(extra, "tags: "+i.Tags)
	}
	if len(extra) == 0 {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, strings.Join(extra, ", "))
}
