package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/output"
	"github.com/AndreyAkinshin/qgate/internal/project"
)

// gitignoreMarker opens the block qgate appends to .gitignore.
const gitignoreMarker = "# qgate"

var gitignoreEntries = []string{
	gitignoreMarker,
	".qgate/venv-*/",
	"coverage.xml",
	".coverage",
}

// cmdInit creates .qgate/config.json for the repository in the current
// directory. Existing files are left untouched.
func cmdInit(args []string) int {
	for _, arg := range args {
		switch arg {
		case "-h", "--help":
			printInitUsage()
			return 0
		default:
			out.ErrorPrefix("init: unknown option %q", arg)
			return errors.ExitConfigError
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitGateFailure
	}

	configDir := filepath.Join(cwd, project.ConfigDirName)
	configPath := filepath.Join(configDir, project.ConfigFileName)

	var created []string
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := newProjectConfig(cwd)
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitGateFailure
		}
		data = append(data, '\n')

		if err := os.MkdirAll(configDir, 0755); err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitGateFailure
		}
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitGateFailure
		}
		created = append(created, ".qgate/config.json")
	}

	if updateGitignore(cwd) {
		created = append(created, ".gitignore entries")
	}

	out.Println("")
	if len(created) == 0 {
		out.Info("Project already initialized (nothing to do)")
		return 0
	}
	out.Success("Initialized qgate in %s", cwd)
	out.HelpSection("Created:")
	out.List(created)
	printNextSteps(out)
	return 0
}

// newProjectConfig builds a minimal configuration for the repository at
// root. Defaults are left implicit unless detection disagrees with them.
func newProjectConfig(root string) *config.Config {
	name := sanitizeProjectName(filepath.Base(root))
	cfg := &config.Config{Project: config.ProjectConfig{Name: name}}

	if pkg := detectPackageDirectory(root, name); pkg != "" && pkg != strings.ReplaceAll(name, "-", "_") {
		cfg.Project.Package = pkg
	}
	if data, err := os.ReadFile(filepath.Join(root, ".python-version")); err == nil {
		if v := strings.TrimSpace(string(data)); v != "" && v != config.DefaultPython {
			cfg.Environment = &config.EnvironmentConfig{Python: v}
		}
	}
	return cfg
}

// sanitizeProjectName converts a directory name to a valid project name.
func sanitizeProjectName(name string) string {
	name = strings.ToLower(name)

	var result strings.Builder
	prevHyphen := false
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			result.WriteRune(c)
			prevHyphen = false
		} else if !prevHyphen && result.Len() > 0 {
			result.WriteRune('-')
			prevHyphen = true
		}
	}

	s := strings.TrimSuffix(result.String(), "-")

	// Names must start with a letter.
	if len(s) > 0 && s[0] >= '0' && s[0] <= '9' {
		s = "project-" + s
	}
	if s == "" {
		s = "my-project"
	}
	return s
}

// detectPackageDirectory finds the import package of the repository: the
// directory named after the project if it holds an __init__.py, otherwise
// the first such directory at the root or under src/.
func detectPackageDirectory(root, name string) string {
	preferred := strings.ReplaceAll(name, "-", "_")
	for _, dir := range []string{preferred, filepath.Join("src", preferred)} {
		if isPythonPackage(filepath.Join(root, dir)) {
			return filepath.ToSlash(dir)
		}
	}

	for _, base := range []string{"", "src"} {
		entries, err := os.ReadDir(filepath.Join(root, base))
		if err != nil {
			continue
		}
		var candidates []string
		for _, entry := range entries {
			n := entry.Name()
			if !entry.IsDir() || strings.HasPrefix(n, ".") || n == config.DefaultTestsDirectory {
				continue
			}
			if isPythonPackage(filepath.Join(root, base, n)) {
				candidates = append(candidates, filepath.ToSlash(filepath.Join(base, n)))
			}
		}
		if len(candidates) > 0 {
			sort.Strings(candidates)
			return candidates[0]
		}
	}
	return ""
}

func isPythonPackage(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "__init__.py"))
	return err == nil
}

// updateGitignore appends qgate's entries to .gitignore unless present.
// Reports whether the file was changed.
func updateGitignore(root string) bool {
	gitignorePath := filepath.Join(root, ".gitignore")

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}
	if strings.Contains(existing, gitignoreMarker+"\n") {
		return false
	}

	var content strings.Builder
	if existing != "" {
		content.WriteString(existing)
		if !strings.HasSuffix(existing, "\n") {
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}
	for _, entry := range gitignoreEntries {
		content.WriteString(entry)
		content.WriteString("\n")
	}

	if err := os.WriteFile(gitignorePath, []byte(content.String()), 0644); err != nil {
		out.WarningSimple("could not update .gitignore: %v", err)
		return false
	}
	return true
}

// printNextSteps prints guidance after initialization.
func printNextSteps(w *output.Writer) {
	w.HelpSection("Next steps:")
	w.Println("  1. Review .qgate/config.json")
	w.Println("  2. Run 'qgate plan' to see the stage commands")
	w.Println("  3. Run 'qgate run' to run the quality gate")
	w.Println("  4. Run 'qgate github' to generate the CI workflow")
	w.Println("")
}

func printInitUsage() {
	w := output.New()

	w.HelpTitle("qgate init - initialize a repository")

	w.HelpSection("Usage:")
	w.HelpUsage("qgate init")

	w.HelpSection("Description:")
	w.Println("  Creates .qgate/config.json with the project name and detected package")
	w.Println("  directory, and adds qgate's scratch files to .gitignore.")
	w.Println("")
}
