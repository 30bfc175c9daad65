package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/afero"

	"github.com/relkit/relkit/internal/repository"
)

// UpdateChangelogUseCase renders a changelog section for a version from the
// commit subjects since the previous tag and prepends it to the changelog
// file. An existing top-level heading is kept above the new section.

type UpdateChangelogUseCase struct {
	GitRepo repository.GitRepository
	Fs      afero.Fs
}

const changelogFileMode = 0o644

const changelogSectionTemplate = `## {{.Version}} ({{.Date}})

{{range .Subjects}}- {{.}}
{{end}}`

type changelogSection struct {
	Version  string
	Date     string
	Subjects []string
}

// Execute renders the section for version and writes the updated changelog.
// sinceTag may be empty, in which case the whole history is included. The
// rendered section is returned so callers can reuse it as release notes.
func (uc *UpdateChangelogUseCase) Execute(ctx context.Context, path, version, sinceTag string) (string, error) {
	subjects, err := uc.GitRepo.CommitSubjectsSince(ctx, sinceTag)
	if err != nil {
		return "", fmt.Errorf("failed to collect commit subjects: %w", err)
	}
	section, err := renderChangelogSection(version, time.Now(), subjects)
	if err != nil {
		return "", err
	}
	if err := uc.prependSection(path, section); err != nil {
		return "", err
	}
	return section, nil
}

func renderChangelogSection(version string, date time.Time, subjects []string) (string, error) {
	cleaned := make([]string, 0, len(subjects))
	for _, s := range subjects {
		s = sanitizeSubject(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, "No changes recorded")
	}
	tmpl, err := template.New("changelog").Parse(changelogSectionTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse changelog template: %w", err)
	}
	var sb strings.Builder
	data := changelogSection{
		Version:  version,
		Date:     date.Format("2006-01-02"),
		Subjects: cleaned,
	}
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render changelog section: %w", err)
	}
	return sb.String(), nil
}

// sanitizeSubject strips control characters so a crafted commit subject
// cannot inject structure into the rendered markdown.
func sanitizeSubject(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}

func (uc *UpdateChangelogUseCase) prependSection(path, section string) error {
	existing, err := afero.ReadFile(uc.Fs, path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read changelog: %w", err)
	}
	content := string(existing)
	var sb strings.Builder
	header, rest, found := cutChangelogHeader(content)
	if found {
		sb.WriteString(header)
		sb.WriteString("\n")
		sb.WriteString(section)
		if rest != "" {
			sb.WriteString("\n")
			sb.WriteString(rest)
		}
	} else {
		sb.WriteString("# Changelog\n\n")
		sb.WriteString(section)
		if content != "" {
			sb.WriteString("\n")
			sb.WriteString(content)
		}
	}
	if err := afero.WriteFile(uc.Fs, path, []byte(sb.String()), changelogFileMode); err != nil {
		return fmt.Errorf("failed to write changelog: %w", err)
	}
	return nil
}

// cutChangelogHeader splits the file into a leading "# ..." heading block and
// the remaining sections. The heading block runs up to the first "## " line.
func cutChangelogHeader(content string) (header, rest string, found bool) {
	if !strings.HasPrefix(content, "# ") {
		return "", "", false
	}
	idx := strings.Index(content, "\n## ")
	if idx < 0 {
		return strings.TrimRight(content, "\n") + "\n", "", true
	}
	header = strings.TrimRight(content[:idx], "\n") + "\n"
	rest = strings.TrimLeft(content[idx:], "\n")
	return header, rest, true
}
