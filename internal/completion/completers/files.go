package completers

import (
	"context"
	"sort"
	"strings"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/shell"
)

// FileID identifies the FileProvider.
const FileID = "files"

// FileProviderConfig holds configuration for creating a FileProvider.
type FileProviderConfig struct {
	// Shell supplies the working directory when the editor context has none.
	Shell *shell.Shell

	// ShowHidden lists dot files even when the prefix does not start with a dot.
	ShowHidden bool
}

// FileProvider completes command arguments with file system paths.
type FileProvider struct {
	shell      *shell.Shell
	showHidden bool
}

// NewFileProvider creates a new FileProvider.
func NewFileProvider(cfg FileProviderConfig) *FileProvider {
	return &FileProvider{
		shell:      cfg.Shell,
		showHidden: cfg.ShowHidden,
	}
}

func (p *FileProvider) Identifier() string {
	return FileID
}

func (p *FileProvider) IsApplicable(ec *completion.EditorContext) bool {
	return isShellContext(ec)
}

func (p *FileProvider) Fetch(ctx context.Context, req completion.Request, ec *completion.EditorContext) (*completion.Reply, error) {
	lc := newLineContext(req.Text, req.Offset)
	reply := &completion.Reply{Start: lc.start, End: lc.end, Items: []completion.Item{}}

	if lc.isFirstWord() {
		return reply, nil
	}

	for _, path := range GetFileCompletions(unescapeWord(lc.word), workingDir(ec, p.shell), p.showHidden) {
		item := completion.Item{
			Label: path,
			Type:  "file",
		}
		if strings.HasSuffix(path, "/") {
			item.Type = "directory"
		}
		if strings.Contains(path, " ") {
			item.InsertText = strings.ReplaceAll(path, " ", `\ `)
		}
		reply.Items = append(reply.Items, item)
	}
	return reply, nil
}

func (p *FileProvider) ShouldShowContinuousHint(visible bool, change completion.ChangeEvent) bool {
	return change.Inserted == "/"
}

// GetFileCompletions lists paths matching prefix, resolved against pwd.
// Directories end with "/". Dot files are listed when the name being typed
// starts with "." or showHidden is set.
func GetFileCompletions(prefix string, pwd string, showHidden bool) []string {
	var dirPart, filePrefix string
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dirPart = prefix[:i+1]
		filePrefix = prefix[i+1:]
	} else {
		filePrefix = prefix
	}

	searchDir := "."
	if dirPart != "" {
		searchDir = dirPart
	}

	entries, err := osReadDir(resolveDir(searchDir, pwd))
	if err != nil {
		return []string{}
	}

	includeHidden := showHidden || strings.HasPrefix(filePrefix, ".")

	completions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) {
			continue
		}
		if strings.HasPrefix(name, ".") && !includeHidden {
			continue
		}

		path := dirPart + name
		if entry.IsDir() {
			path += "/"
		}
		completions = append(completions, path)
	}

	sort.Strings(completions)
	return completions
}
