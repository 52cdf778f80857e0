package agent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSystemPrompt is used when no prompt files are available.
const DefaultSystemPrompt = `You are a spreadsheet assistant working inside the user's workbook.
You can explain and write formulas, read and analyze data, fill ranges and build charts.

When the user asks for a change to the workbook, answer with one JavaScript block per
change in the form:

` + "```javascript" + `
Excel.run(async (context) => {
    // statements using context.workbook
    await context.sync();
});
` + "```" + `

Only use the workbook API through context. Never touch the page, the network or
eval. The user reviews each block and runs it explicitly, so describe what it does.
If a tool fits the request, call it instead of writing the block yourself.`

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetSystemPrompt joins the markdown files of the prompts directory.
// A missing or empty directory yields DefaultSystemPrompt.
func (pm *PromptManager) GetSystemPrompt() (string, error) {
	if pm == nil || pm.Directory == "" {
		return DefaultSystemPrompt, nil
	}

	files, err := os.ReadDir(pm.Directory)
	if os.IsNotExist(err) {
		return DefaultSystemPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %v", err)
	}

	order := map[string]int{
		"identity.md":     1,
		"capabilities.md": 2,
		"operations.md":   3,
		"user.md":         4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		contents = append(contents, string(data))
	}

	if len(contents) == 0 {
		return DefaultSystemPrompt, nil
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}
