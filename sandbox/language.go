package sandbox

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// SandboxWorkdir is where the workspace is mounted inside every container
const SandboxWorkdir = "/app"

// Template placeholders understood by CommandTemplate.Render
const (
	PlaceholderSource = "{src}"  // in-sandbox path of the source file
	PlaceholderDir    = "{dir}"  // in-sandbox workspace directory
	PlaceholderName   = "{name}" // source file name without extension
)

// CommandTemplate is a shell fragment with placeholders for the source path
type CommandTemplate string

// Render substitutes the placeholders for the given in-sandbox source path
func (t CommandTemplate) Render(srcPath string) string {
	base := path.Base(srcPath)
	name := strings.TrimSuffix(base, path.Ext(base))
	return strings.NewReplacer(
		PlaceholderSource, srcPath,
		PlaceholderDir, path.Dir(srcPath),
		PlaceholderName, name,
	).Replace(string(t))
}

// OutputFilter rewrites captured stderr for a language before it is returned
type OutputFilter func(stderr string) string

// LanguageProfile describes how to build and run one supported language
type LanguageProfile struct {
	Key       string
	Extension string
	Image     string
	Compile   CommandTemplate // empty for interpreted languages
	Run       CommandTemplate
	Tier      Tier
	// EntryFile is used instead of a unique file name when the toolchain
	// requires the file name to match the entry point.
	EntryFile   string
	Environment map[string]string
	Filter      OutputFilter
}

// RequiresCompile reports whether the language has a separate build step
func (p LanguageProfile) RequiresCompile() bool {
	return p.Compile != ""
}

// SourceFileName returns the file name the submitted code is written to
func (p LanguageProfile) SourceFileName(uniqueID string) string {
	if p.EntryFile != "" {
		return p.EntryFile
	}
	return "Main_" + uniqueID + p.Extension
}

// Invocation returns the compile-then-run (or run-only) shell command for srcPath
func (p LanguageProfile) Invocation(srcPath string) string {
	if p.RequiresCompile() {
		return p.Compile.Render(srcPath) + " && " + p.Run.Render(srcPath)
	}
	return p.Run.Render(srcPath)
}

// FilterStderr applies the language output filter when one is set
func (p LanguageProfile) FilterStderr(stderr string) string {
	if p.Filter == nil || stderr == "" {
		return stderr
	}
	return p.Filter(stderr)
}

func (p LanguageProfile) validate() error {
	switch {
	case p.Key == "":
		return fmt.Errorf("language profile without key")
	case p.Extension == "":
		return fmt.Errorf("language %q: missing file extension", p.Key)
	case p.Image == "":
		return fmt.Errorf("language %q: missing isolation image", p.Key)
	case strings.TrimSpace(string(p.Run)) == "":
		return fmt.Errorf("language %q: missing run template", p.Key)
	}
	if !p.Tier.valid() {
		return fmt.Errorf("language %q: unknown resource tier %q", p.Key, p.Tier)
	}
	return nil
}

// Registry is an immutable table of language profiles built once at startup
type Registry struct {
	profiles map[string]LanguageProfile
}

// NewRegistry validates the profiles and returns a registry holding them
func NewRegistry(profiles ...LanguageProfile) (*Registry, error) {
	table := make(map[string]LanguageProfile, len(profiles))
	for _, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := table[p.Key]; dup {
			return nil, fmt.Errorf("language %q registered twice", p.Key)
		}
		table[p.Key] = p
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("at least one language must be registered")
	}
	return &Registry{profiles: table}, nil
}

// Resolve returns the profile for a language key
func (r *Registry) Resolve(language string) (LanguageProfile, error) {
	p, ok := r.profiles[language]
	if !ok {
		return LanguageProfile{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return p, nil
}

// Languages returns the registered keys in sorted order
func (r *Registry) Languages() []string {
	keys := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Language keys of the built-in table
const (
	LanguageC          = "c"
	LanguageCPP        = "cpp"
	LanguageCSharp     = "csharp"
	LanguageJava       = "java"
	LanguagePython     = "python3"
	LanguageNode       = "node"
	LanguageTypeScript = "typescript"
	LanguagePHP        = "php"
	LanguageSwift      = "swift"
	LanguageKotlin     = "kotlin"
	LanguageRuby       = "ruby"
	LanguageScala      = "scala"
	LanguageRust       = "rust"
)

// JVMKillOnOOM makes a heap exhaustion end the JVM with SIGKILL, so it is
// reported like a container memory kill instead of an OutOfMemoryError exit.
const JVMKillOnOOM = "-XX:OnOutOfMemoryError='kill -9 %p'"

// DefaultProfiles returns the built-in language table.
// Images are named <imagePrefix>:<key>.
func DefaultProfiles(imagePrefix string) []LanguageProfile {
	image := func(key string) string { return imagePrefix + ":" + key }

	return []LanguageProfile{
		{
			Key: LanguageC, Extension: ".c", Image: image(LanguageC),
			Compile: "gcc {src} -o {dir}/Main",
			Run:     "{dir}/Main",
			Tier:    TierStandard,
		},
		{
			Key: LanguageCPP, Extension: ".cpp", Image: image(LanguageCPP),
			Compile: "g++ {src} -o {dir}/Main -std=c++17",
			Run:     "{dir}/Main",
			Tier:    TierStandard,
		},
		{
			Key: LanguageCSharp, Extension: ".cs", Image: image(LanguageCSharp),
			Compile: "mcs {src} -out:{dir}/Main.exe",
			Run:     "mono {dir}/Main.exe",
			Tier:    TierHigh,
		},
		{
			Key: LanguageJava, Extension: ".java", Image: image(LanguageJava),
			Compile:   "javac {src}",
			Run:       CommandTemplate("java " + JVMKillOnOOM + " -cp {dir} {name}"),
			Tier:      TierHigh,
			EntryFile: "Main.java",
		},
		{
			Key: LanguagePython, Extension: ".py", Image: image(LanguagePython),
			Run:  "python3 {src}",
			Tier: TierStandard,
		},
		{
			Key: LanguageNode, Extension: ".js", Image: image(LanguageNode),
			Run:  "node {src}",
			Tier: TierStandard,
		},
		{
			Key: LanguageTypeScript, Extension: ".ts", Image: image(LanguageTypeScript),
			Compile: "esbuild {src} --outfile={dir}/{name}.js --platform=node --target=node18",
			Run:     "node {dir}/{name}.js",
			Tier:    TierHigh,
			Filter:  StripTranspilerNoise,
		},
		{
			Key: LanguagePHP, Extension: ".php", Image: image(LanguagePHP),
			Run:  "php {src}",
			Tier: TierStandard,
		},
		{
			Key: LanguageSwift, Extension: ".swift", Image: image(LanguageSwift),
			Run:  "swift {src}",
			Tier: TierStandard,
		},
		{
			Key: LanguageKotlin, Extension: ".kt", Image: image(LanguageKotlin),
			Compile: "kotlinc {src} -include-runtime -d {dir}/Main.jar",
			Run:     CommandTemplate("java " + JVMKillOnOOM + " -jar {dir}/Main.jar"),
			Tier:    TierHigh,
		},
		{
			Key: LanguageRuby, Extension: ".rb", Image: image(LanguageRuby),
			Run:  "ruby {src}",
			Tier: TierStandard,
		},
		{
			Key: LanguageScala, Extension: ".scala", Image: image(LanguageScala),
			Compile:   "scalac -d {dir} {src}",
			Run:       "scala -cp {dir} {name}",
			Tier:      TierJIT,
			EntryFile: "Main.scala",
		},
		{
			Key: LanguageRust, Extension: ".rs", Image: image(LanguageRust),
			Compile: "rustc {src} -o {dir}/Main",
			Run:     "{dir}/Main",
			Tier:    TierStandard,
		},
	}
}

// StripTranspilerNoise drops esbuild banner and artifact lines from stderr
func StripTranspilerNoise(stderr string) string {
	lines := strings.Split(stderr, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, ".js") || strings.Contains(line, "Done in") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
